// Package queue defines message payloads exchanged over the message broker,
// the publisher used by the services and the background consumer that
// writes them to the event log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-catalog/internal/model"
)

// Event types published by the services.
const (
	UserRegistered = "user.registered"
	UserDeleted    = "user.deleted"
	MovieCreated   = "movie.created"
	MovieUpdated   = "movie.updated"
	MovieDeleted   = "movie.deleted"
)

// DefaultQueue is the durable queue the events are routed to.
const DefaultQueue = "catalog.events"

// CatalogEvent is published after a successful write. It contains enough
// information for downstream consumers to log, notify, or trigger analytics
// without querying the primary database. MovieID and Title are empty for
// user events.
type CatalogEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	MovieID    uint64    `json:"movie_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	IsPublic   bool      `json:"is_public"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent builds an event about a user.
func NewUserEvent(eventType string, userID uint64) CatalogEvent {
	return CatalogEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// NewMovieEvent builds an event about m. For deletions userID is the caller
// who removed the movie, which is always its owner.
func NewMovieEvent(eventType string, userID uint64, m model.Movie) CatalogEvent {
	return CatalogEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		MovieID:    m.ID,
		Title:      m.Title,
		IsPublic:   m.IsPublic,
		OccurredAt: time.Now().UTC(),
	}
}
