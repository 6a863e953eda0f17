package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kindred/internal/api"
	"github.com/roach88/kindred/internal/metrics"
	"github.com/roach88/kindred/internal/mode"
	"github.com/roach88/kindred/internal/store"
	"github.com/roach88/kindred/internal/watch"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string // overrides the config listen address
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mode controller and its HTTP API",
		Long: `Open the local store, watch the account signals file and serve the
HTTP API until interrupted. Signing in (signed_in: true in the signals
file) migrates the local store into the remote-synced store and switches
to it; signing out switches back.

Example:
  kindred serve
  kindred serve --listen 127.0.0.1:9090 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, logger, err := opts.load(cmd, f)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	signals := watch.NewFileSource(cfg.SignalsFile, logger)
	ctl, err := mode.New(ctx,
		mode.StoreOpener(cfg.DataDir, logger, store.WithPageSize(cfg.PageSize)),
		signals,
		mode.WithLogger(logger),
		mode.WithMetrics(metrics.New(reg)),
		mode.WithEventBuffer(cfg.EventBuffer),
	)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open local store", err)
	}
	defer func() {
		if closeErr := ctl.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	events, cancel := ctl.Subscribe()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logEvents(gctx, logger, events)
		return nil
	})
	g.Go(func() error {
		return watch.New(ctl, logger).Run(gctx, signals)
	})
	g.Go(func() error {
		return api.New(ctl, api.WithLogger(logger), api.WithGatherer(reg)).Run(gctx, cfg.Listen)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return f.Fail(ExitFailure, ErrCodeServe, "server stopped", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// logEvents logs mode changes until ctx is done or the subscription closes.
func logEvents(ctx context.Context, logger *slog.Logger, events <-chan mode.ModeChanged) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			attrs := []any{"mode", ev.Mode, "previous", ev.Previous, "replayed", ev.Replayed}
			if ev.Report != nil {
				attrs = append(attrs, "written", ev.Report.Written(), "failed", ev.Report.Failed())
			}
			logger.Info("mode changed", attrs...)
			for _, failure := range ev.Failed {
				logger.Warn("deferred write failed", "task_id", failure.TaskID, "error", failure.Err)
			}
		}
	}
}
