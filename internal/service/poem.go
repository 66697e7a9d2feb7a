// Package service — poem, like, and comment business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/dead-poets-society/internal/apperror"
	"github.com/sakif/dead-poets-society/internal/model"
	"github.com/sakif/dead-poets-society/internal/repository"
)

// Validation bounds for poem and comment content.
const (
	MaxTitleLength   = 200
	MaxPoemLength    = 20000
	MaxCommentLength = 2000
)

// PoemService applies ownership-checked mutations to poems and their
// comments. Every method takes the caller's identity explicitly — it is
// resolved once by the auth middleware and passed down, never re-derived
// here.
type PoemService struct {
	poems  repository.PoemRepository
	logger *slog.Logger
}

// NewPoemService creates a PoemService.
func NewPoemService(poems repository.PoemRepository, logger *slog.Logger) *PoemService {
	return &PoemService{
		poems:  poems,
		logger: logger,
	}
}

// canRemoveComment is the single authorization rule for comment
// removal: permitted iff the caller is the comment's author or the
// containing poem's owner. Every comment-mutating path goes through
// this predicate — the rule lives in one place, not scattered across
// handlers as ad hoc field comparisons.
func canRemoveComment(callerID string, poem *model.Poem, comment *model.Comment) bool {
	return callerID == comment.AuthorID || callerID == poem.AuthorID
}

// Create validates and publishes a new poem owned by authorID.
func (s *PoemService) Create(ctx context.Context, authorID, title, content string) (*model.Poem, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "poem title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("poem title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "poem content is required")
	}
	if len(content) > MaxPoemLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("poem content must be %d characters or less", MaxPoemLength))
	}

	poem := &model.Poem{
		Title:    title,
		Content:  content,
		AuthorID: authorID,
	}
	if err := s.poems.Create(ctx, poem); err != nil {
		return nil, fmt.Errorf("creating poem: %w", err)
	}

	s.logger.Info("poem created",
		slog.String("poemID", poem.ID),
		slog.String("authorID", authorID),
	)

	// Re-read to pick up the read-time annotations (author name, empty
	// likes/comments) so the response shape matches every other poem view.
	return s.poems.GetByID(ctx, poem.ID, authorID)
}

// Update replaces a poem's title and content. Only the owner may edit;
// likes, comments, and the creation timestamp are untouched.
func (s *PoemService) Update(ctx context.Context, callerID, poemID, title, content string) (*model.Poem, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "poem title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("poem title must be %d characters or less", MaxTitleLength))
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "poem content is required")
	}
	if len(content) > MaxPoemLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("poem content must be %d characters or less", MaxPoemLength))
	}

	poem, err := s.poems.GetByID(ctx, poemID, callerID)
	if err != nil {
		return nil, err
	}
	if poem.AuthorID != callerID {
		return nil, apperror.Forbidden("only the author may edit this poem")
	}

	poem.Title = title
	poem.Content = content
	if err := s.poems.Update(ctx, poem); err != nil {
		return nil, fmt.Errorf("updating poem %s: %w", poemID, err)
	}

	s.logger.Info("poem updated", slog.String("poemID", poemID))

	return poem, nil
}

// Delete removes a poem and its comments. Only the owner may delete.
func (s *PoemService) Delete(ctx context.Context, callerID, poemID string) error {
	poem, err := s.poems.GetByID(ctx, poemID, "")
	if err != nil {
		return err
	}
	if poem.AuthorID != callerID {
		return apperror.Forbidden("only the author may delete this poem")
	}

	if err := s.poems.Delete(ctx, poemID); err != nil {
		return fmt.Errorf("deleting poem %s: %w", poemID, err)
	}

	s.logger.Info("poem deleted", slog.String("poemID", poemID))
	return nil
}

// ToggleLike flips the caller's like on a poem and returns the
// resulting count and the caller's state. Liking twice in a row is a
// round trip back to not-liked; the storage layer guarantees two
// concurrent toggles by different users both take effect.
func (s *PoemService) ToggleLike(ctx context.Context, callerID, poemID string) (*repository.LikeState, error) {
	state, err := s.poems.ToggleLike(ctx, poemID, callerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("like toggled",
		slog.String("poemID", poemID),
		slog.String("userID", callerID),
		slog.Bool("isLiked", state.IsLiked),
	)

	return state, nil
}

// AddComment appends a comment by callerID to the poem's sequence and
// returns the created comment with its assigned id and timestamp.
func (s *PoemService) AddComment(ctx context.Context, callerID, poemID, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)

	if content == "" {
		return nil, apperror.ValidationFailed("content", "comment content is required")
	}
	if len(content) > MaxCommentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	comment := &model.Comment{
		PoemID:   poemID,
		AuthorID: callerID,
		Content:  content,
	}
	if err := s.poems.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.Info("comment added",
		slog.String("poemID", poemID),
		slog.String("commentID", comment.ID),
	)

	// Re-read for the author name annotation.
	return s.poems.GetComment(ctx, poemID, comment.ID)
}

// DeleteComment removes one comment, if the caller is allowed to
// (comment author or poem owner — see canRemoveComment). The order of
// the remaining comments is preserved.
func (s *PoemService) DeleteComment(ctx context.Context, callerID, poemID, commentID string) error {
	poem, err := s.poems.GetByID(ctx, poemID, "")
	if err != nil {
		return err
	}
	comment, err := s.poems.GetComment(ctx, poemID, commentID)
	if err != nil {
		return err
	}

	if !canRemoveComment(callerID, poem, comment) {
		return apperror.Forbidden("not authorized to delete this comment")
	}

	if err := s.poems.DeleteComment(ctx, poemID, commentID); err != nil {
		return err
	}

	s.logger.Info("comment deleted",
		slog.String("poemID", poemID),
		slog.String("commentID", commentID),
	)
	return nil
}

// List returns all poems newest-first, annotated with viewerID's like
// state. Read-only projection, no mutation.
func (s *PoemService) List(ctx context.Context, viewerID string) ([]model.Poem, error) {
	poems, err := s.poems.List(ctx, viewerID, "")
	if err != nil {
		return nil, fmt.Errorf("listing poems: %w", err)
	}
	return poems, nil
}

// ListByAuthor returns one author's poems newest-first, annotated for
// the viewer.
func (s *PoemService) ListByAuthor(ctx context.Context, viewerID, authorID string) ([]model.Poem, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return nil, apperror.ValidationFailed("userId", "author ID is required")
	}

	poems, err := s.poems.List(ctx, viewerID, authorID)
	if err != nil {
		return nil, fmt.Errorf("listing poems by author %s: %w", authorID, err)
	}
	return poems, nil
}
