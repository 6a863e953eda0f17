package mode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAccount is an Account whose check can be held open to keep the
// controller in SwitchingToRemote.
type testAccount struct {
	signedIn atomic.Bool
	checkErr error

	mu      sync.Mutex
	hold    chan struct{} // when set, CheckAccount waits for it to close
	entered chan struct{}
	checks  atomic.Int32
}

func signedIn() *testAccount {
	a := &testAccount{}
	a.signedIn.Store(true)
	return a
}

func (a *testAccount) SignedIn() bool { return a.signedIn.Load() }

func (a *testAccount) CheckAccount(ctx context.Context) error {
	a.checks.Add(1)
	a.mu.Lock()
	hold, entered := a.hold, a.entered
	a.hold, a.entered = nil, nil
	a.mu.Unlock()

	if hold != nil {
		close(entered)
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return a.checkErr
}

// holdCheck makes the next CheckAccount call block until the returned release
// func is called. The returned channel closes once the check is entered.
func (a *testAccount) holdCheck() (entered <-chan struct{}, release func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hold = make(chan struct{})
	a.entered = make(chan struct{})
	hold := a.hold
	var once sync.Once
	return a.entered, func() { once.Do(func() { close(hold) }) }
}

// opener wraps StoreOpener, counting opens per role and allowing remote
// backends to be swapped for failing ones.
type opener struct {
	dir    string
	opens  map[store.Role]int
	mu     sync.Mutex
	wrap   func(Backend) Backend
	remote error
	before func(store.Role) // runs ahead of every open
}

func newOpener(t *testing.T) *opener {
	return &opener{dir: t.TempDir(), opens: make(map[store.Role]int)}
}

func (o *opener) open(ctx context.Context, role store.Role) (Backend, error) {
	o.mu.Lock()
	o.opens[role]++
	wrap, remoteErr, before := o.wrap, o.remote, o.before
	o.mu.Unlock()

	if before != nil {
		before(role)
	}

	if role == store.RoleRemote && remoteErr != nil {
		return nil, remoteErr
	}
	b, err := StoreOpener(o.dir, quietLogger())(ctx, role)
	if err != nil {
		return nil, err
	}
	if role == store.RoleRemote && wrap != nil {
		return wrap(b), nil
	}
	return b, nil
}

// holdLocal makes the next local open block until release is called. The
// returned channel closes once that open is entered.
func (o *opener) holdLocal() (entered <-chan struct{}, release func()) {
	in, hold := make(chan struct{}), make(chan struct{})
	var once sync.Once
	o.mu.Lock()
	o.before = func(role store.Role) {
		if role != store.RoleLocal {
			return
		}
		o.mu.Lock()
		o.before = nil
		o.mu.Unlock()
		close(in)
		<-hold
	}
	o.mu.Unlock()
	return in, func() { once.Do(func() { close(hold) }) }
}

func (o *opener) count(role store.Role) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[role]
}

// peek opens a role file directly, outside the controller.
func (o *opener) peek(t *testing.T, role store.Role) *store.Store {
	t.Helper()
	s, err := store.OpenRole(o.dir, role)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// failingCommit is a backend whose Commit always fails.
type failingCommit struct {
	Backend
}

var errCommit = errors.New("remote commit failed")

func (f failingCommit) Commit(context.Context, store.Batch) error {
	return errCommit
}

func newController(t *testing.T, o *opener, acct Account, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c, err := New(context.Background(), o.open, acct, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitEvent(t *testing.T, ch <-chan ModeChanged) ModeChanged {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ModeChanged")
		return ModeChanged{}
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func contact(id, name string) *record.Contact {
	return &record.Contact{ID: id, Name: name}
}
