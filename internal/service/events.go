package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/movie-catalog/internal/queue"
)

const publishTimeout = 5 * time.Second

// EventPublisher hands domain events to the broker. *queue.Publisher
// implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.CatalogEvent) error
}

// publish sends ev in the background, detached from the request context.
// A nil publisher drops the event.
func publish(ctx context.Context, events EventPublisher, logger *slog.Logger, ev queue.CatalogEvent) {
	if events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := events.Publish(ctx, ev); err != nil {
			logger.DebugContext(ctx, "event dropped", slog.String("type", ev.Type), slog.Any("error", err))
		}
	}()
}
