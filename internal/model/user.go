// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// WHY json:"-" ON PasswordHash?
// The hash must never appear in an API response. The `json:"-"` tag tells
// encoding/json to skip the field entirely when marshalling, so even if a
// handler accidentally encodes a *User, the hash stays server-side.
// The raw password is never stored anywhere — only its bcrypt hash.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"` // unique, set at registration, immutable
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
