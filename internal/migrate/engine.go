package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/kindred/internal/merge"
	"github.com/roach88/kindred/internal/metrics"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// Reader is the read side of a store as seen by a pass.
// Implemented by *store.Store.
type Reader interface {
	Scan(ctx context.Context, kind record.Kind, fn func(page []record.Record) error) error
	Lookup(ctx context.Context, kind record.Kind, ids []string) (map[string]record.Record, error)
}

// Writer is a store a pass can write into.
// Implemented by *store.Store.
type Writer interface {
	Reader
	Commit(ctx context.Context, b store.Batch) error
}

// stages lists the kinds of each stage. Kinds within a stage have no
// dependency on each other and run concurrently.
var stages = []struct {
	stage Stage
	kinds []record.Kind
}{
	{StageOwners, []record.Kind{record.KindContact, record.KindHoliday}},
	{StageHistory, []record.Kind{record.KindCard, record.KindCongrats}},
}

// Engine runs migration passes. It is stateless between passes and safe for
// concurrent use, though passes against the same target should not overlap.
type Engine struct {
	policies merge.Table
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records per-kind outcomes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPolicies replaces the merge policy table.
func WithPolicies(t merge.Table) Option {
	return func(e *Engine) { e.policies = t }
}

// New creates an engine using the default merge policies.
func New(opts ...Option) *Engine {
	e := &Engine{
		policies: merge.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reconciles src into dst. It returns a *MigrationError if a store-level
// failure aborted the pass; the report then reflects the work done so far.
func (e *Engine) Run(ctx context.Context, src Reader, dst Writer) (*Report, error) {
	start := time.Now()
	rep := newReport()

	for _, st := range stages {
		g, gctx := errgroup.WithContext(ctx)
		for _, kind := range st.kinds {
			kind := kind
			kr := rep.Kinds[kind]
			g.Go(func() error {
				if err := e.migrateKind(gctx, kind, src, dst, kr); err != nil {
					return wrapError(kind, st.stage, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			e.logger.Error("migration aborted", "stage", st.stage, "error", err)
			return rep, err
		}
	}

	for _, kr := range rep.Kinds {
		rep.Cleared += kr.Cleared
	}

	if err := e.restoreRelationships(ctx, src, dst, rep); err != nil {
		e.logger.Error("migration aborted", "stage", StageRelationships, "error", err)
		return rep, err
	}

	for _, k := range record.Kinds {
		kr := rep.Kinds[k]
		e.metrics.Migrated(string(k), metrics.OutcomeCreated, kr.Created)
		e.metrics.Migrated(string(k), metrics.OutcomeMerged, kr.Merged)
		e.metrics.Migrated(string(k), metrics.OutcomeUnchanged, kr.Unchanged)
		e.metrics.Migrated(string(k), metrics.OutcomeFailed, kr.Failed)
	}

	e.logger.Info("migration pass finished",
		"written", rep.Written(),
		"failed", rep.Failed(),
		"restored", rep.Restored,
		"orphaned", rep.Orphaned,
		"duration", time.Since(start),
	)
	return rep, nil
}

// migrateKind copies or merges every source record of one kind, a page at a
// time, committing each page in one save.
func (e *Engine) migrateKind(ctx context.Context, kind record.Kind, src Reader, dst Writer, kr *KindReport) error {
	var lookupErr, commitErr error

	err := src.Scan(ctx, kind, func(page []record.Record) error {
		ids := make([]string, len(page))
		for i, r := range page {
			ids[i] = r.RecordID()
		}

		existing, err := dst.Lookup(ctx, kind, ids)
		if err != nil {
			lookupErr = fmt.Errorf("lookup target: %w", err)
			return lookupErr
		}

		var batch store.Batch
		for _, r := range page {
			kr.Scanned++

			cur, ok := existing[r.RecordID()]
			if !ok {
				cp := r.Clone()
				e.clearHolidayLink(kr, kind, cp)
				if err := cp.Validate(); err != nil {
					e.recordFailed(kr, kind, r.RecordID(), err)
					continue
				}
				batch.Creates = append(batch.Creates, cp)
				kr.Created++
				continue
			}

			merged, changed, err := e.policies.Merge(r, cur)
			if err != nil {
				e.recordFailed(kr, kind, r.RecordID(), err)
				continue
			}
			if !changed {
				kr.Unchanged++
				continue
			}
			e.clearHolidayLink(kr, kind, merged)
			if err := merged.Validate(); err != nil {
				e.recordFailed(kr, kind, r.RecordID(), err)
				continue
			}
			batch.Updates = append(batch.Updates, merged)
			kr.Merged++
		}

		if err := dst.Commit(ctx, batch); err != nil {
			commitErr = fmt.Errorf("commit target: %w", err)
			return commitErr
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, lookupErr), errors.Is(err, commitErr):
		return err
	default:
		return fmt.Errorf("scan source: %w", err)
	}
}

func (e *Engine) clearHolidayLink(kr *KindReport, kind record.Kind, r record.Record) {
	if dropHolidayLink(r) {
		kr.Cleared++
		e.logger.Warn("dropped holiday link of history item owned by a contact",
			"kind", kind, "id", r.RecordID())
	}
}

func (e *Engine) recordFailed(kr *KindReport, kind record.Kind, id string, err error) {
	kr.Failed++
	e.logger.Warn("record not migrated", "kind", kind, "id", id, "error", err)
}

// wrapError attributes err to a kind and stage unless it already is a
// MigrationError.
func wrapError(kind record.Kind, stage Stage, err error) error {
	var me *MigrationError
	if errors.As(err, &me) {
		return err
	}
	return &MigrationError{Kind: kind, Stage: stage, Err: err}
}
