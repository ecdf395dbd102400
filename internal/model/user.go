package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types that never include the password
// hash or the session token.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	Token        – last issued bearer token; empty when the user never logged in.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Token        string    // users.token (nullable)
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// UserPatch carries the columns of a partial user update. Nil fields are
// left untouched.
type UserPatch struct {
	Token *string
}

// Credentials is the transient email/password pair submitted on register
// and login. It is never persisted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
