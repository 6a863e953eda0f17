package mode

import (
	"context"
	"log/slog"

	"github.com/roach88/kindred/internal/migrate"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// Backend is a record store the controller can make active.
// Implemented by *store.Store.
type Backend interface {
	migrate.Writer

	Create(ctx context.Context, r record.Record) error
	Update(ctx context.Context, r record.Record) error
	Delete(ctx context.Context, kind record.Kind, id string) error
	Get(ctx context.Context, kind record.Kind, id string) (record.Record, error)
	FetchLimit(ctx context.Context, kind record.Kind, pred store.Predicate, limit int) ([]record.Record, error)
	Count(ctx context.Context, kind record.Kind) (int, error)
	Path() string
	Close() error
}

// OpenFunc opens the backend of a role.
type OpenFunc func(ctx context.Context, role store.Role) (Backend, error)

// Account reports the sign-in state and checks that the remote store is
// reachable for the signed-in account.
type Account interface {
	SignedIn() bool
	CheckAccount(ctx context.Context) error
}

// StoreOpener opens role files inside dir with one-shot recovery from
// incompatible files.
func StoreOpener(dir string, logger *slog.Logger, opts ...store.Option) OpenFunc {
	return func(ctx context.Context, role store.Role) (Backend, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := store.OpenRoleWithRecovery(dir, role, logger, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type authorKey struct{}

// WithAuthor tags writes issued with ctx, so deferred tasks can be traced
// back to the consumer that issued them.
func WithAuthor(ctx context.Context, author string) context.Context {
	return context.WithValue(ctx, authorKey{}, author)
}

func authorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(authorKey{}).(string); ok && a != "" {
		return a
	}
	return "unknown"
}
