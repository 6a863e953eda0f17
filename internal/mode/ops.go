package mode

import (
	"context"
	"errors"

	"github.com/roach88/kindred/internal/metrics"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// Create inserts r into the active store, assigning an identifier if r has
// none. During a transition the write is deferred. r itself is not modified.
//
// Validation runs immediately, so a deferred write never fails replay for
// invalid input.
func (c *Controller) Create(ctx context.Context, r record.Record) (Receipt, error) {
	rec, err := c.prepare(r, true)
	if err != nil {
		return Receipt{}, err
	}
	return c.write(ctx, "create", rec.Kind(), rec.RecordID(), func(ctx context.Context, b Backend) error {
		return b.Create(ctx, rec)
	})
}

// Update overwrites the record with r's identifier in the active store.
func (c *Controller) Update(ctx context.Context, r record.Record) (Receipt, error) {
	rec, err := c.prepare(r, false)
	if err != nil {
		return Receipt{}, err
	}
	return c.write(ctx, "update", rec.Kind(), rec.RecordID(), func(ctx context.Context, b Backend) error {
		return b.Update(ctx, rec)
	})
}

// Delete removes a record from the active store only; the other store is
// never touched.
func (c *Controller) Delete(ctx context.Context, kind record.Kind, id string) (Receipt, error) {
	if id == "" {
		return Receipt{}, &record.ValidationError{Kind: kind, Message: "id", Err: record.ErrMissingID}
	}
	if _, err := record.New(kind); err != nil {
		return Receipt{}, &store.PersistenceError{Op: "delete", Kind: kind, ID: id, Err: err}
	}
	return c.write(ctx, "delete", kind, id, func(ctx context.Context, b Backend) error {
		return b.Delete(ctx, kind, id)
	})
}

// Get reads one record from the active store.
func (c *Controller) Get(ctx context.Context, kind record.Kind, id string) (record.Record, error) {
	var out record.Record
	err := c.read(func(b Backend) error {
		var err error
		out, err = b.Get(ctx, kind, id)
		return err
	})
	return out, err
}

// Fetch returns every record of kind accepted by pred from the active store.
func (c *Controller) Fetch(ctx context.Context, kind record.Kind, pred store.Predicate) ([]record.Record, error) {
	return c.FetchLimit(ctx, kind, pred, 0)
}

// FetchLimit is Fetch returning at most limit records; limit <= 0 means all.
func (c *Controller) FetchLimit(ctx context.Context, kind record.Kind, pred store.Predicate, limit int) ([]record.Record, error) {
	var out []record.Record
	err := c.read(func(b Backend) error {
		var err error
		out, err = b.FetchLimit(ctx, kind, pred, limit)
		return err
	})
	return out, err
}

// Count returns the number of records of kind in the active store.
func (c *Controller) Count(ctx context.Context, kind record.Kind) (int, error) {
	var n int
	err := c.read(func(b Backend) error {
		var err error
		n, err = b.Count(ctx, kind)
		return err
	})
	return n, err
}

// prepare copies, identifies, normalizes and validates r.
func (c *Controller) prepare(r record.Record, assign bool) (record.Record, error) {
	if r == nil {
		return nil, &store.PersistenceError{Op: "write", Err: errors.New("nil record")}
	}
	rec := r.Clone()
	if assign {
		record.AssignID(rec, c.ids)
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// write runs work against the active store, or queues it while a transition
// is in flight.
func (c *Controller) write(ctx context.Context, op string, kind record.Kind, id string, work Work) (Receipt, error) {
	c.gate.RLock()
	defer c.gate.RUnlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Receipt{}, ErrClosed
	}
	state, active := c.state, c.active
	if state.Switching() {
		t := c.queue.Enqueue(Task{
			Author:   authorFrom(ctx),
			Op:       op,
			Kind:     string(kind),
			RecordID: id,
			Queued:   c.now(),
			Work:     work,
		})
		c.mu.Unlock()

		c.metrics.Deferred(metrics.TaskQueued)
		c.logger.Info("write deferred during transition",
			"task_id", t.ID, "op", op, "kind", kind, "id", id, "state", state)
		return Receipt{ID: id, Deferred: true, TaskID: t.ID}, nil
	}
	c.mu.Unlock()

	if err := work(ctx, active); err != nil {
		return Receipt{}, err
	}
	return Receipt{ID: id}, nil
}

func (c *Controller) read(fn func(Backend) error) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	active := c.active
	c.mu.Unlock()

	return fn(active)
}
