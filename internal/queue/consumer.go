package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogFileName is the file inside the log directory that receives one line
// per consumed event.
const LogFileName = "catalog.log"

// defaultRequeueDelay is how long a delivery whose line could not be written
// is held before it goes back to the queue.
const defaultRequeueDelay = time.Second

// errMalformed marks a payload that can never be handled.
var errMalformed = errors.New("malformed event")

// Consumer listens to the catalog queue and appends each event to
// <logDir>/catalog.log in a single-line, human-friendly format.
type Consumer struct {
	url    string
	queue  string
	logDir string
	logger *slog.Logger

	requeueDelay time.Duration

	mu sync.Mutex // serializes writes to the log file
}

// NewConsumer builds a Consumer. An empty queue name selects DefaultQueue.
func NewConsumer(url, queue, logDir string, logger *slog.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Consumer{url: url, queue: queue, logDir: logDir, logger: logger, requeueDelay: defaultRequeueDelay}
}

// Run connects to RabbitMQ, declares the queue and consumes messages until
// ctx is cancelled. It runs a reconnect loop with exponential backoff and
// only returns once ctx is done. A malformed message is rejected without
// requeue so it cannot spin the loop; a valid event whose line could not be
// written goes back to the queue after a short delay.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.DialConfig(c.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		if err != nil {
			c.logger.Warn("event-consumer: failed to dial broker",
				slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("event-consumer: consume loop ended, reconnecting", slog.Any("error", err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("event-consumer: set QoS failed", slog.Any("error", err))
	}
	if err := declareQueue(ch, c.queue); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(ctx, d)
		}
	}
}

// settle handles d and acknowledges it accordingly.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	err := c.handleMessage(d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errMalformed):
		c.logger.Error("event-consumer: dropping malformed message", slog.Any("error", err))
		_ = d.Nack(false, false)
	default:
		c.logger.Warn("event-consumer: write failed, requeueing",
			slog.Any("error", err), slog.Duration("retry_in", c.requeueDelay))
		sleep(ctx, c.requeueDelay)
		_ = d.Nack(false, true)
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev CatalogEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.Type == "" {
		return fmt.Errorf("%w: no type", errMalformed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one log line terminated by a newline.
func FormatLine(ev CatalogEvent) string {
	ts := ev.OccurredAt.UTC().Format(time.RFC3339)
	if ev.MovieID == 0 {
		return fmt.Sprintf("[%s] %s | event_id=%s | user_id=%d\n", ts, ev.Type, ev.ID, ev.UserID)
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | user_id=%d | movie_id=%d | title=%q | public=%t\n",
		ts, ev.Type, ev.ID, ev.UserID, ev.MovieID, ev.Title, ev.IsPublic)
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
