package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Publisher delivers a message to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Store is the persistence the relay needs; Repository satisfies it.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id, reason string, maxAttempts int) error
}

// Relay moves pending outbox rows to the Publisher.
type Relay struct {
	store       Store
	publisher   Publisher
	log         *zap.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(store Store, publisher Publisher, log *zap.Logger, interval time.Duration) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		store:       store,
		publisher:   publisher,
		log:         log,
		interval:    interval,
		batchSize:   50,
		maxAttempts: 5,
	}
}

// WithLimits overrides the batch size and the attempts before a row is dead.
func (r *Relay) WithLimits(batchSize, maxAttempts int) *Relay {
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if maxAttempts > 0 {
		r.maxAttempts = maxAttempts
	}
	return r
}

// Run processes batches every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			n, err := r.ProcessBatch(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.log.Error("outbox relay batch failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Debug("outbox relay batch delivered", zap.Int("count", n))
			}
		}
	}
}

// ProcessBatch claims one batch and publishes it, returning the number of
// messages delivered.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msgs, err := r.store.ClaimBatch(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	delivered := 0
	for _, msg := range msgs {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.log.Warn("outbox publish failed",
				zap.String("id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Int("attempts", msg.Attempts+1),
				zap.Error(err),
			)
			if err := r.store.MarkFailed(ctx, tx, msg.ID, err.Error(), r.maxAttempts); err != nil {
				return delivered, err
			}
			continue
		}
		if err := r.store.MarkProcessed(ctx, tx, msg.ID); err != nil {
			return delivered, err
		}
		delivered++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("outbox: commit tx: %w", err)
	}
	return delivered, nil
}
