package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "sahara/pkg/platform/audit"
)

// Producer sends one outbox entry to the event stream.
type Producer interface {
	Send(ctx context.Context, key string, eventType string, payload []byte) error
}

// Worker relays outbox entries to a Producer. Entries are marked published only
// after the producer acknowledges them, so delivery is at-least-once.
type Worker struct {
	outbox    audit.Outbox
	producer  Producer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox audit.Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil {
				w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were marked published.
// A producer failure stops the batch; entries sent before it are still marked.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	sent := make([]uuid.UUID, 0, len(entries))
	var sendErr error
	for _, e := range entries {
		if sendErr = w.producer.Send(ctx, e.Key, e.EventType, e.Payload); sendErr != nil {
			break
		}
		sent = append(sent, e.ID)
	}

	if err := w.outbox.MarkPublished(ctx, sent); err != nil {
		return 0, err
	}
	return len(sent), sendErr
}
