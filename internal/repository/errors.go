// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors. Both the MySQL
// repositories in this package and the in-memory store in memstore
// return them.
package repository

import "errors"

// ErrUserNotFound is returned when no user matches the lookup key
// (id, email or token).
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is
// already taken. Handlers should translate this into an HTTP 409
// response.
var ErrEmailExists = errors.New("email already exists")

// ErrMovieNotFound is returned when a movie cannot be found, or when
// an owner-scoped write matches no row because the movie belongs to
// someone else.
var ErrMovieNotFound = errors.New("movie not found")
