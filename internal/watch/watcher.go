// Package watch turns sign-in and remote-availability signals into mode
// transition requests.
package watch

import (
	"context"
	"log/slog"

	"github.com/roach88/kindred/internal/mode"
)

// Signals is one observation of the account and the remote store.
type Signals struct {
	SignedIn        bool `yaml:"signed_in"        json:"signed_in"`
	RemoteAvailable bool `yaml:"remote_available" json:"remote_available"`
}

// Source delivers signals until ctx is done. The channel is closed when the
// source stops.
type Source interface {
	Watch(ctx context.Context) (<-chan Signals, error)
}

// Controller is the part of *mode.Controller the watcher drives.
type Controller interface {
	State() mode.State
	Idle() <-chan struct{}
	EnableRemote(ctx context.Context) error
	DisableRemote(ctx context.Context) error
}

// Watcher requests transitions as signals change:
//
//   - sign-in, or remote available while signed in and Local: EnableRemote
//   - sign-out or remote unavailable while Remote: DisableRemote
//
// While the controller is mid-transition the watcher only remembers that a
// follow-up is pending, and re-evaluates the latest signals once the
// transition settles.
type Watcher struct {
	ctl    Controller
	logger *slog.Logger
}

// New creates a watcher for ctl. A nil logger means slog.Default().
func New(ctl Controller, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{ctl: ctl, logger: logger}
}

// Run consumes src until ctx is done or src closes its channel. Transition
// errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context, src Source) error {
	signals, err := src.Watch(ctx)
	if err != nil {
		return err
	}

	var (
		applied Signals // last signals acted upon
		latest  Signals
		settled <-chan struct{} // non-nil while a follow-up is pending
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-signals:
			if !ok {
				return nil
			}
			latest = s
			w.logger.Debug("signals changed", "signed_in", s.SignedIn, "remote_available", s.RemoteAvailable)
			applied, settled = w.evaluate(ctx, applied, latest)
		case <-settled:
			w.logger.Debug("transition settled, re-evaluating signals")
			applied, settled = w.evaluate(ctx, applied, latest)
		}
	}
}

// evaluate acts on cur given the previously applied signals. It returns the
// signals now considered applied and, if a follow-up is pending, a channel
// that closes when the controller settles.
func (w *Watcher) evaluate(ctx context.Context, prev, cur Signals) (Signals, <-chan struct{}) {
	state := w.ctl.State()
	if state.Switching() {
		w.logger.Info("transition in flight, follow-up pending", "state", state)
		return prev, w.ctl.Idle()
	}

	signedInNow := cur.SignedIn && !prev.SignedIn
	switch {
	case state == mode.Local && cur.SignedIn && (signedInNow || cur.RemoteAvailable):
		if err := w.ctl.EnableRemote(ctx); err != nil {
			w.logger.Warn("enable remote failed", "error", err)
		}
	case state == mode.Remote && (!cur.SignedIn || !cur.RemoteAvailable):
		if err := w.ctl.DisableRemote(ctx); err != nil {
			w.logger.Warn("disable remote failed", "error", err)
		}
	}

	// Another caller may have started a transition that swallowed ours.
	if w.ctl.State().Switching() {
		return prev, w.ctl.Idle()
	}
	return cur, nil
}
