// Package watch reruns the meal pipeline on a cron schedule and publishes
// each successful schedule to the optional HTTP server.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mealcal/internal/config"
	appLog "mealcal/internal/log"
	"mealcal/internal/pipeline"
	"mealcal/internal/web"
)

// Status describes the most recent run.
type Status struct {
	Runs      int
	Failures  int
	LastRunAt time.Time
	LastErr   error
	Last      *pipeline.Result
}

// Watcher owns the refresh loop.
type Watcher struct {
	cfg    *config.Config
	opts   pipeline.Options
	server *web.Server

	mu     sync.Mutex
	status Status
}

// New builds a Watcher. server may be nil, in which case results are only
// written to the output file.
func New(cfg *config.Config, opts pipeline.Options, server *web.Server) *Watcher {
	return &Watcher{cfg: cfg, opts: opts, server: server}
}

// Status returns a snapshot of the run counters.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// RunOnce executes one pipeline run. A failed run is logged and returned;
// the previously published schedule stays in place.
func (w *Watcher) RunOnce(ctx context.Context) error {
	res, err := pipeline.Run(ctx, w.cfg, w.opts)

	w.mu.Lock()
	w.status.Runs++
	w.status.LastRunAt = time.Now()
	w.status.LastErr = err
	if err != nil {
		w.status.Failures++
	} else {
		w.status.Last = res
	}
	w.mu.Unlock()

	if err != nil {
		appLog.Error("scheduled run failed", err)
		return err
	}
	if w.server != nil {
		w.server.SetSchedule(res.Schedule, time.Now())
	}
	return nil
}

// Run executes the pipeline immediately and then on cfg.RefreshCron until
// ctx is canceled. When cfg.Listen is set and a server was supplied, the
// server runs alongside.
//
// A configuration error on the first run is returned immediately; any other
// failure is logged and the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.RunOnce(ctx); err != nil && errors.Is(err, config.ErrConfiguration) {
		return err
	}

	c := cron.New(
		cron.WithLocation(w.cfg.Location()),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := c.AddFunc(w.cfg.RefreshCron, func() { _ = w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("%w: refresh %q: %v", config.ErrConfiguration, w.cfg.RefreshCron, err)
	}
	c.Start()
	appLog.Info("watch started", "refresh", w.cfg.RefreshCron, "timezone", w.cfg.Timezone)

	serverErr := make(chan error, 1)
	if w.server != nil && w.cfg.Listen != "" {
		go func() { serverErr <- w.server.ListenAndServe(ctx) }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("http server: %w", err)
		}
	}

	// Wait for an in-flight run to finish before returning.
	<-c.Stop().Done()
	appLog.Info("watch stopped")
	return err
}

// cronLogger routes robfig/cron's internal logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
