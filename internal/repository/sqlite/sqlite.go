// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// SCHEMA SHAPE:
// Likes and comments get their own tables instead of living inside the
// poem row. That is what makes the mutations composable: toggling a like
// is an element-level INSERT/DELETE on poem_likes keyed by
// (poem_id, user_id), not a read-modify-write of a likes array, so two
// concurrent toggles on the same poem never overwrite each other.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	// BLANK-ISH IMPORT:
	// Importing modernc.org/sqlite registers it with database/sql as a
	// driver named "sqlite" (via its init function); after this import,
	// sql.Open("sqlite", ...) works. We also use its Error type to
	// classify constraint failures, so the import isn't blank here.
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces (user methods in user.go, poem methods in poem.go).
type DB struct {
	conn *sql.DB
}

// dsn builds the SQLite connection string.
//
// PRAGMAS GO IN THE DSN, NOT IN Exec():
// database/sql manages a POOL of connections, and a PRAGMA executed with
// conn.Exec() configures only whichever pooled connection happened to run
// it. New pooled connections would come up without foreign keys or the
// busy timeout. The _pragma query parameters are applied by the driver to
// EVERY connection it opens.
//
//   - journal_mode(WAL): readers don't block the writer
//   - busy_timeout(5000): writers wait up to 5s for the write lock
//     instead of failing with SQLITE_BUSY
//   - foreign_keys(1): REFERENCES clauses are enforced
//   - _txlock=immediate: BeginTx takes the write lock up front, so a
//     transaction never deadlocks upgrading a read lock to a write lock
func dsn(path string) string {
	return "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/poems.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
//
// sql.Open() does NOT actually open a connection — it just creates a pool
// manager. We call Ping() to force an immediate connection and surface a
// bad path or permissions problem here instead of on the first query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory SQLite database exists per connection: with the
	// default pool, each new pooled connection would see an EMPTY
	// database, because migrations ran on a different one. A single
	// connection keeps every caller on the same database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
// Wherever you call New(), defer Close() — it flushes the WAL and
// releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS is idempotent,
// so this is safe to run on every start.
//
// comments.seq is an AUTOINCREMENT column recording insertion order.
// Comment ids (xid) are time-sortable, but two comments created in the
// same millisecond could tie — seq never ties, so display order is
// exactly append order.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS poems (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			author_id  TEXT NOT NULL REFERENCES users(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_poems_author_id ON poems(author_id);
		CREATE INDEX IF NOT EXISTS idx_poems_created_at ON poems(created_at);

		CREATE TABLE IF NOT EXISTS poem_likes (
			poem_id TEXT NOT NULL REFERENCES poems(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (poem_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS comments (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			poem_id    TEXT NOT NULL REFERENCES poems(id) ON DELETE CASCADE,
			author_id  TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_poem_id ON comments(poem_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure. modernc.org/sqlite surfaces the SQLite extended
// result code on its error type, so no string matching is needed.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
