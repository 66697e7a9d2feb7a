package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/dead-poets-society/internal/apperror"
	"github.com/sakif/dead-poets-society/internal/model"
	"github.com/sakif/dead-poets-society/internal/repository"
)

// compile-time check that *DB implements repository.PoemRepository
var _ repository.PoemRepository = (*DB)(nil)

// poemColumns is the projection shared by GetByID and List.
//
// The like count and the viewer's own like state are computed here, at
// read time, from the poem_likes table. They are never stored on the
// poem row — there is exactly one source of truth for likes.
const poemColumns = `
	p.id, p.title, p.content, p.author_id, u.username, p.created_at,
	(SELECT COUNT(*) FROM poem_likes l WHERE l.poem_id = p.id),
	EXISTS(SELECT 1 FROM poem_likes l WHERE l.poem_id = p.id AND l.user_id = ?)`

// Create inserts a new poem with an empty likes set and no comments
// (both live in their own tables, so there is nothing to initialise).
func (db *DB) Create(ctx context.Context, poem *model.Poem) error {
	poem.ID = xid.New().String()
	poem.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO poems (id, title, content, author_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		poem.ID,
		poem.Title,
		poem.Content,
		poem.AuthorID,
		poem.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting poem: %w", err)
	}

	return nil
}

// GetByID loads a single poem annotated for viewerID, including its
// comments in insertion order. viewerID may be empty when the caller
// only needs ownership fields (IsLiked is then simply false).
func (db *DB) GetByID(ctx context.Context, id, viewerID string) (*model.Poem, error) {
	var p model.Poem

	err := db.conn.QueryRowContext(ctx,
		`SELECT`+poemColumns+`
		 FROM poems p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = ?`,
		viewerID, id,
	).Scan(
		&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName,
		&p.CreatedAt, &p.Likes, &p.IsLiked,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("poem", id)
		}
		return nil, fmt.Errorf("sqlite: getting poem %s: %w", id, err)
	}

	comments, err := db.loadComments(ctx, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Comments = comments[p.ID]
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}

	return &p, nil
}

// List returns poems newest-first, annotated for viewerID.
// authorID narrows the result to one author; empty means all poems.
//
// The id is the ordering tiebreak: xid values are time-sortable, so two
// poems created in the same instant still come back in a stable order.
func (db *DB) List(ctx context.Context, viewerID, authorID string) ([]model.Poem, error) {
	query := `SELECT` + poemColumns + `
		 FROM poems p
		 JOIN users u ON u.id = p.author_id`
	args := []any{viewerID}

	if authorID != "" {
		query += ` WHERE p.author_id = ?`
		args = append(args, authorID)
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing poems: %w", err)
	}
	// sql.Rows holds a pooled connection — always close it.
	defer rows.Close()

	poems := []model.Poem{}
	ids := []string{}
	for rows.Next() {
		var p model.Poem
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.AuthorName,
			&p.CreatedAt, &p.Likes, &p.IsLiked,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning poem row: %w", err)
		}
		p.Comments = []model.Comment{}
		poems = append(poems, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating poems: %w", err)
	}

	// Attach comments with ONE query instead of one per poem.
	comments, err := db.loadComments(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range poems {
		if c := comments[poems[i].ID]; c != nil {
			poems[i].Comments = c
		}
	}

	return poems, nil
}

// loadComments fetches the comments for the given poems, grouped by
// poem id, ordered by insertion (the seq column).
func (db *DB) loadComments(ctx context.Context, poemIDs []string) (map[string][]model.Comment, error) {
	result := make(map[string][]model.Comment, len(poemIDs))
	if len(poemIDs) == 0 {
		return result, nil
	}

	// Build the IN (?, ?, ...) placeholder list. The ids come from our
	// own query above, but they still go through placeholders — never
	// concatenate values into SQL.
	placeholders := strings.Repeat("?,", len(poemIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(poemIDs))
	for i, id := range poemIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.poem_id, c.content, c.author_id, u.username, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.poem_id IN (`+placeholders+`)
		 ORDER BY c.seq`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.PoemID, &c.Content, &c.AuthorID, &c.AuthorName, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		result[c.PoemID] = append(result[c.PoemID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return result, nil
}

// Update replaces title and content in place. Likes, comments and
// created_at are untouched. RowsAffected == 0 means the poem vanished
// between the service's ownership check and this statement — still a
// clean NotFound, never a partial write.
func (db *DB) Update(ctx context.Context, poem *model.Poem) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE poems SET title = ?, content = ? WHERE id = ?`,
		poem.Title,
		poem.Content,
		poem.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating poem %s: %w", poem.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("poem", poem.ID)
	}

	return nil
}

// Delete removes a poem. The ON DELETE CASCADE clauses on poem_likes
// and comments make this one statement remove the poem, its likes set
// and its whole comment sequence as a single unit.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM poems WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting poem %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("poem", id)
	}

	return nil
}

// ToggleLike flips userID's membership in the poem's likes set.
//
// THE LOST-UPDATE TRAP, AND WHY THIS SHAPE AVOIDS IT:
// The naive implementation reads the poem's like list into memory,
// adds/removes the user, and writes the whole list back. Two users
// toggling concurrently both read the same list, and whichever write
// lands second silently erases the other's like.
//
// Here the likes set is a table keyed by (poem_id, user_id), and the
// flip is "DELETE my row; if it wasn't there, INSERT it" inside one
// transaction. Each caller only ever touches their own row, so two
// concurrent toggles by different users both land. The transaction
// starts as a writer (_txlock=immediate in the DSN), which means
// writers queue on the busy timeout rather than deadlocking on a
// read-to-write lock upgrade.
//
// Either the whole transaction commits or none of it does — a timed-out
// toggle is never half-applied.
func (db *DB) ToggleLike(ctx context.Context, poemID, userID string) (*repository.LikeState, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning toggle transaction: %w", err)
	}
	// Rollback is a no-op after Commit — safe to always defer.
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM poems WHERE id = ?)`, poemID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking poem %s: %w", poemID, err)
	}
	if !exists {
		return nil, apperror.NotFound("poem", poemID)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM poem_likes WHERE poem_id = ? AND user_id = ?`,
		poemID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: removing like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	liked := false
	if removed == 0 {
		// Not currently liked → like. The composite primary key makes a
		// duplicate insert impossible, so the set can never hold the
		// same user twice.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO poem_likes (poem_id, user_id) VALUES (?, ?)`,
			poemID, userID,
		); err != nil {
			return nil, fmt.Errorf("sqlite: adding like: %w", err)
		}
		liked = true
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM poem_likes WHERE poem_id = ?`, poemID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("sqlite: counting likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing toggle: %w", err)
	}

	return &repository.LikeState{Likes: count, IsLiked: liked}, nil
}

// AddComment appends a comment to the poem's sequence. The INSERT is a
// single element-level statement — two concurrent appends both land,
// ordered by the seq column they are assigned.
//
// The poem existence check and the insert happen in one transaction so
// a comment can't be attached to a poem deleted in between.
func (db *DB) AddComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning comment transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM poems WHERE id = ?)`, comment.PoemID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking poem %s: %w", comment.PoemID, err)
	}
	if !exists {
		return apperror.NotFound("poem", comment.PoemID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, poem_id, author_id, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.PoemID,
		comment.AuthorID,
		comment.Content,
		comment.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: inserting comment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing comment: %w", err)
	}

	return nil
}

// GetComment fetches one comment of the given poem. Scoping by poem id
// means a comment id from a different poem is a NotFound, not a leak.
func (db *DB) GetComment(ctx context.Context, poemID, commentID string) (*model.Comment, error) {
	var c model.Comment

	err := db.conn.QueryRowContext(ctx,
		`SELECT c.id, c.poem_id, c.content, c.author_id, u.username, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.id = ? AND c.poem_id = ?`,
		commentID, poemID,
	).Scan(
		&c.ID, &c.PoemID, &c.Content, &c.AuthorID, &c.AuthorName, &c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", commentID)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", commentID, err)
	}

	return &c, nil
}

// DeleteComment removes exactly one comment. The remaining rows keep
// their seq values, so the order of the rest is untouched.
func (db *DB) DeleteComment(ctx context.Context, poemID, commentID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ? AND poem_id = ?`,
		commentID, poemID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", commentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("comment", commentID)
	}

	return nil
}
