package mode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/kindred/internal/metrics"
	"github.com/roach88/kindred/internal/migrate"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// DefaultEventBuffer is the channel capacity of each subscriber.
const DefaultEventBuffer = 8

// Receipt describes how a write was handled.
type Receipt struct {
	// ID is the identifier of the written record.
	ID string `json:"id"`
	// Deferred is true when the write was queued behind a transition.
	Deferred bool `json:"deferred"`
	// TaskID identifies the queued task when Deferred is true.
	TaskID string `json:"task_id,omitempty"`
}

// Controller owns the active backend and runs mode transitions.
//
// Locking: gate orders writes against hand-offs. Writes and reads hold it
// shared; the controller holds it exclusively to flip state, swap the active
// backend and replay deferred writes. mu guards the fields below it and is
// never held across I/O.
type Controller struct {
	open    OpenFunc
	account Account
	engine  *migrate.Engine
	ids     record.IDGenerator
	logger  *slog.Logger
	metrics *metrics.Recorder
	queue   *taskQueue
	events  *bus
	now     func() time.Time

	gate sync.RWMutex

	mu     sync.Mutex
	state  State
	active Backend
	idle   chan struct{} // closed while no transition is in flight
	closed bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records transitions and deferred writes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithIDGenerator sets the identifier generator for created records.
// Default is record.UUIDv7Generator.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(c *Controller) { c.ids = g }
}

// WithEngine replaces the migration engine.
func WithEngine(e *migrate.Engine) Option {
	return func(c *Controller) { c.engine = e }
}

// WithEventBuffer sets the per-subscriber channel capacity.
func WithEventBuffer(n int) Option {
	return func(c *Controller) { c.events.buffer = max(n, 1) }
}

// WithClock sets the time source used for event and task timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New opens the local backend and returns a controller in Local.
func New(ctx context.Context, open OpenFunc, account Account, opts ...Option) (*Controller, error) {
	c := &Controller{
		open:    open,
		account: account,
		ids:     record.UUIDv7Generator{},
		logger:  slog.Default(),
		queue:   newTaskQueue(),
		events:  newBus(DefaultEventBuffer, nil),
		now:     time.Now,
		state:   Local,
		idle:    closedChan(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events.logger = c.logger
	if c.engine == nil {
		c.engine = migrate.New(migrate.WithLogger(c.logger), migrate.WithMetrics(c.metrics))
	}

	local, err := open(ctx, store.RoleLocal)
	if err != nil {
		return nil, err
	}
	c.active = local
	c.metrics.SetRemote(false)
	c.logger.Info("mode controller started", "mode", Local, "path", local.Path())
	return c, nil
}

// Mode returns the store serving reads: Local or Remote.
func (c *Controller) Mode() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.mode()
}

// State returns the full state, including transition states.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InTransition reports whether a transition is in flight.
func (c *Controller) InTransition() bool {
	return c.State().Switching()
}

// Idle returns a channel that is closed once no transition is in flight.
func (c *Controller) Idle() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idle
}

// Pending returns the number of deferred writes waiting for replay.
func (c *Controller) Pending() int {
	return c.queue.Len()
}

// Subscribe returns a channel of ModeChanged events and a func that cancels
// the subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan ModeChanged, func()) {
	return c.events.subscribe()
}

// Close waits for an in-flight transition to finish, so its deferred writes
// are replayed, then closes the active backend and every subscription.
func (c *Controller) Close() error {
	for {
		c.gate.Lock()
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			c.gate.Unlock()
			return nil
		}
		if !c.state.Switching() {
			break
		}
		idle := c.idle
		c.mu.Unlock()
		c.gate.Unlock()

		c.logger.Info("close waiting for mode transition", "state", c.State())
		<-idle
	}
	defer c.gate.Unlock()

	c.closed = true
	active := c.active
	c.mu.Unlock()

	if n := c.queue.Len(); n > 0 {
		c.logger.Warn("dropping deferred writes on close", "count", n)
	}
	c.events.close()
	return active.Close()
}

// EnableRemote migrates the local store into the remote store and hands off
// to it.
//
// It is a no-op when already Remote or when a transition is in flight.
// Failures leave the controller in Local with the local store active:
// *SignInRequiredError when no account is signed in, *RemoteUnavailableError
// when the account check fails, *store.StoreOpenError when the remote file
// cannot be opened, and *migrate.MigrationError when the pass fails.
func (c *Controller) EnableRemote(ctx context.Context) error {
	if c.State() == Remote {
		return nil
	}
	if s := c.State(); s.Switching() {
		c.logger.Warn("transition already in flight, request ignored",
			"state", s, "requested", direction(SwitchingToRemote))
		c.metrics.Transition(direction(SwitchingToRemote), metrics.ResultIgnored, 0)
		return nil
	}
	if !c.account.SignedIn() {
		c.logger.Info("remote sync requested without sign-in")
		return &SignInRequiredError{}
	}
	if ok, err := c.begin(Local, SwitchingToRemote); !ok {
		return err
	}
	start := c.now()

	remote, rep, err := c.prepareRemote(ctx)
	if err != nil {
		c.abort(ctx, Local, err, start)
		return err
	}

	c.handOff(ctx, remote, Remote, rep, start)
	return nil
}

// DisableRemote hands back to a freshly opened local store. No migration
// runs. It is a no-op unless the controller is Remote.
func (c *Controller) DisableRemote(ctx context.Context) error {
	if ok, err := c.begin(Remote, SwitchingToLocal); !ok {
		return err
	}
	start := c.now()

	local, err := c.open(ctx, store.RoleLocal)
	if err != nil {
		c.abort(ctx, Remote, err, start)
		return err
	}

	c.handOff(ctx, local, Local, nil, start)
	return nil
}

// begin flips from -> to if the controller is in from. It returns false when
// the request must not run: a transition is in flight, the controller is
// already past from, or it is closed.
func (c *Controller) begin(from, to State) (bool, error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		return false, ErrClosed
	case c.state.Switching():
		c.logger.Warn("transition already in flight, request ignored",
			"state", c.state, "requested", direction(to))
		c.metrics.Transition(direction(to), metrics.ResultIgnored, 0)
		return false, nil
	case c.state != from:
		c.logger.Debug("transition not needed", "state", c.state, "requested", direction(to))
		return false, nil
	}

	c.state = to
	c.idle = make(chan struct{})
	c.logger.Info("mode transition started", "from", from, "to", to)
	return true, nil
}

// prepareRemote checks the account, opens the remote backend and migrates the
// active local backend into it. On failure the remote backend is closed.
func (c *Controller) prepareRemote(ctx context.Context) (Backend, *migrate.Report, error) {
	if err := c.account.CheckAccount(ctx); err != nil {
		return nil, nil, &RemoteUnavailableError{Err: err}
	}

	remote, err := c.open(ctx, store.RoleRemote)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	local := c.active
	c.mu.Unlock()

	rep, err := c.engine.Run(ctx, local, remote)
	if err != nil {
		if cerr := remote.Close(); cerr != nil {
			c.logger.Warn("close remote store after failed migration", "error", cerr)
		}
		return nil, nil, err
	}
	return remote, rep, nil
}

// handOff makes next the active backend, replays deferred writes against it,
// closes the previous backend and broadcasts the change.
func (c *Controller) handOff(ctx context.Context, next Backend, to State, rep *migrate.Report, start time.Time) {
	c.gate.Lock()

	c.mu.Lock()
	prev := c.active
	previous := c.state.mode()
	c.active = next
	c.state = to
	c.mu.Unlock()

	replayed, failed := c.replay(ctx, next)

	if err := prev.Close(); err != nil {
		c.logger.Warn("close previous store", "path", prev.Path(), "error", err)
	}

	c.mu.Lock()
	close(c.idle)
	c.mu.Unlock()
	c.gate.Unlock()

	elapsed := c.now().Sub(start)
	c.metrics.Transition(direction(to), metrics.ResultSuccess, elapsed.Seconds())
	c.metrics.SetRemote(to == Remote)
	c.logger.Info("mode changed",
		"from", previous, "to", to, "path", next.Path(),
		"replayed", replayed, "failed", len(failed), "duration", elapsed)

	c.events.publish(ModeChanged{
		Mode:     to,
		Previous: previous,
		At:       c.now(),
		Replayed: replayed,
		Failed:   failed,
		Report:   rep,
	})
}

// abort returns to back, keeping the active backend, and replays deferred
// writes against it.
func (c *Controller) abort(ctx context.Context, back State, cause error, start time.Time) {
	c.gate.Lock()

	c.mu.Lock()
	active := c.active
	c.state = back
	c.mu.Unlock()

	replayed, failed := c.replay(ctx, active)

	c.mu.Lock()
	close(c.idle)
	c.mu.Unlock()
	c.gate.Unlock()

	elapsed := c.now().Sub(start)
	c.metrics.Transition(direction(back.other()), metrics.ResultAborted, elapsed.Seconds())
	c.logger.Error("mode transition aborted",
		"state", back, "replayed", replayed, "failed", len(failed), "error", cause)
}

// replay drains the deferred queue against b, in issue order. Each task runs
// in its own save; a failure is logged and does not stop later tasks.
// Must be called with gate held exclusively.
func (c *Controller) replay(ctx context.Context, b Backend) (int, []TaskFailure) {
	ctx = context.WithoutCancel(ctx)

	var (
		n      int
		failed []TaskFailure
	)
	for {
		t, ok := c.queue.TryDequeue()
		if !ok {
			break
		}
		n++
		if err := t.Work(ctx, b); err != nil {
			c.metrics.Deferred(metrics.TaskFailed)
			c.logger.Warn("deferred write failed",
				"task_id", t.ID, "author", t.Author, "op", t.Op,
				"kind", t.Kind, "id", t.RecordID, "error", err)
			failed = append(failed, TaskFailure{TaskID: t.ID, Op: t.Op, Kind: t.Kind, ID: t.RecordID, Err: err})
			continue
		}
		c.metrics.Deferred(metrics.TaskReplayed)
		c.logger.Debug("deferred write replayed", "task_id", t.ID, "op", t.Op, "kind", t.Kind, "id", t.RecordID)
	}
	return n, failed
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
