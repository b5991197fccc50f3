// Package dbtest provides transaction fakes for service unit tests.
package dbtest

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool hands out Tx fakes and remembers them.
type Pool struct {
	mu       sync.Mutex
	Txs      []*Tx
	BeginErr error
}

func (p *Pool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	tx := &Tx{}
	p.Txs = append(p.Txs, tx)
	return tx, nil
}

// Last returns the most recent transaction, or nil.
func (p *Pool) Last() *Tx {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Txs) == 0 {
		return nil
	}
	return p.Txs[len(p.Txs)-1]
}

// Tx records commit and rollback; every query method panics.
type Tx struct {
	Rolled    bool
	Committed bool
}

func (f *Tx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("dbtest: nested transactions are not supported")
}

func (f *Tx) Commit(context.Context) error {
	f.Committed = true
	return nil
}

func (f *Tx) Rollback(context.Context) error {
	if !f.Committed {
		f.Rolled = true
	}
	return nil
}

func (f *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *Tx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *Tx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *Tx) Conn() *pgx.Conn {
	return nil
}

// Event is one message captured by Outbox.
type Event struct {
	Topic   string
	Payload map[string]any
}

// Outbox records enqueued events instead of writing them.
type Outbox struct {
	mu     sync.Mutex
	Events []Event
}

func (o *Outbox) Enqueue(_ context.Context, _ pgx.Tx, topic string, payload map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, Event{Topic: topic, Payload: payload})
	return nil
}

// Topics lists the recorded topics in order.
func (o *Outbox) Topics() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.Events))
	for _, e := range o.Events {
		out = append(out, e.Topic)
	}
	return out
}
