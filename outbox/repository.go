package outbox

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer appends messages inside the caller's transaction so the event
// commits or rolls back together with the state change it describes.
type Writer interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// Repository implements Writer and the relay Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue inserts a pending message.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	if topic == "" {
		return fmt.Errorf("outbox: empty topic")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, string(body)); err != nil {
		return fmt.Errorf("outbox: insert message: %w", err)
	}
	return nil
}

// Begin starts a relay transaction.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ClaimBatch locks up to limit pending messages, oldest first. Rows locked by
// another relay are skipped.
func (r *Repository) ClaimBatch(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, topic, payload, status, attempts, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim batch: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate batch: %w", err)
	}
	return msgs, nil
}

// MarkProcessed records a successful publish.
func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, id string) error {
	const update = `
		UPDATE outbox
		SET status = 'processed', attempts = attempts + 1, processed_at = now(), last_error = NULL
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, id); err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	return nil
}

// MarkFailed records a failed publish; the row turns dead once maxAttempts is reached.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id, reason string, maxAttempts int) error {
	const update = `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE 'pending' END
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, id, reason, maxAttempts); err != nil {
		return fmt.Errorf("outbox: mark failed: %w", err)
	}
	return nil
}
