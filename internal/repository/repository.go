// Package repository declares the storage interfaces the service layer
// depends on. Services receive these interfaces, never the concrete
// sqlite types — tests swap in mocks, and the storage backend can change
// without touching business logic.
package repository

import (
	"context"

	"github.com/sakif/dead-poets-society/internal/model"
)

// LikeState is the outcome of a like toggle: the resulting count and
// whether the caller ended up in the likes set.
type LikeState struct {
	Likes   int
	IsLiked bool
}

type UserRepository interface {
	// CreateUser persists a new user. The uniqueness check on username
	// is atomic with the insert (a UNIQUE column, not check-then-insert);
	// a collision yields apperror.ErrDuplicate.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

type PoemRepository interface {
	Create(ctx context.Context, poem *model.Poem) error

	// GetByID loads a poem with its author name, like count, comments,
	// and the viewer's like state. viewerID may be empty for callers
	// that only need ownership fields.
	GetByID(ctx context.Context, id, viewerID string) (*model.Poem, error)

	// List returns poems newest-first, annotated for viewerID.
	// authorID narrows the result to one author; empty means all poems.
	List(ctx context.Context, viewerID, authorID string) ([]model.Poem, error)

	// Update replaces title and content only; likes, comments and
	// created_at are untouched.
	Update(ctx context.Context, poem *model.Poem) error

	// Delete removes the poem together with its likes and comments as
	// a single unit.
	Delete(ctx context.Context, id string) error

	// ToggleLike flips userID's membership in the poem's likes set as
	// one atomic storage operation. Two concurrent toggles by different
	// users must both take effect.
	ToggleLike(ctx context.Context, poemID, userID string) (*LikeState, error)

	// AddComment appends a comment to the end of the poem's sequence.
	AddComment(ctx context.Context, comment *model.Comment) error

	// GetComment fetches one comment of the given poem.
	GetComment(ctx context.Context, poemID, commentID string) (*model.Comment, error)

	// DeleteComment removes exactly one comment, preserving the order
	// of the rest.
	DeleteComment(ctx context.Context, poemID, commentID string) error
}
