// Package model defines the data structures used throughout the application.
package model

import "time"

// Poem represents a published poem.
//
// AuthorID is set once at creation and never changes; only the author
// may edit or delete the poem. AuthorName is denormalised into the
// response at read time (SQL join on users), it is not stored on the
// poems table.
//
// Likes and IsLiked are read-time projections too: likes live in their
// own table keyed by (poem_id, user_id) and are counted per query, and
// IsLiked answers "is the viewer in the likes set?" for whoever made
// the request. Neither is a second source of truth on the poem row.
type Poem struct {
	ID         string    `json:"id"         db:"id"`
	Title      string    `json:"title"      db:"title"`
	Content    string    `json:"content"    db:"content"`
	AuthorID   string    `json:"authorId"   db:"author_id"`
	AuthorName string    `json:"authorName" db:"-"`
	Likes      int       `json:"likes"      db:"-"`
	IsLiked    bool      `json:"isLiked"    db:"-"`
	Comments   []Comment `json:"comments"   db:"-"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// Comment is owned by exactly one poem and lives only as part of that
// poem's comment sequence (deleting the poem removes its comments).
// Insertion order is display order.
type Comment struct {
	ID         string    `json:"id"         db:"id"`
	PoemID     string    `json:"poemId"     db:"poem_id"`
	Content    string    `json:"content"    db:"content"`
	AuthorID   string    `json:"authorId"   db:"author_id"`
	AuthorName string    `json:"authorName" db:"-"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}
