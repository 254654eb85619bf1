// Package server runs the loot server's long-lived services together and
// shuts them down on a termination signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunFunc is a long-running service body. It must return once ctx is done.
type RunFunc func(ctx context.Context) error

// Lifecycle runs named services concurrently. The first failure cancels the
// rest. Stop hooks run in reverse registration order after every service
// has returned.
type Lifecycle struct {
	logger   *zap.Logger
	mu       sync.Mutex
	services []namedService
	hooks    []namedHook
	signals  []os.Signal
}

type namedService struct {
	name string
	run  RunFunc
}

type namedHook struct {
	name string
	stop func()
}

// NewLifecycle creates a Lifecycle that stops on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger, signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM}}
}

// Add registers a named service.
//
// Precondition: name must be non-empty; run must be non-nil.
func (l *Lifecycle) Add(name string, run RunFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, run: run})
}

// OnStop registers a hook run during shutdown.
func (l *Lifecycle) OnStop(name string, stop func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, namedHook{name: name, stop: stop})
}

// Run starts all services and blocks until a termination signal arrives,
// ctx is cancelled, or a service fails.
//
// Postcondition: every service has returned and every stop hook has run.
// Returns the first service error; a clean shutdown returns nil.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, l.signals...)
	defer stop()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	hooks := append([]namedHook(nil), l.hooks...)
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range services {
		g.Go(func() error {
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			err := ns.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				return fmt.Errorf("service %s: %w", ns.name, err)
			}
			l.logger.Info("service stopped",
				zap.String("service", ns.name),
				zap.Duration("uptime", time.Since(svcStart)),
			)
			return nil
		})
	}
	l.logger.Info("all services started", zap.Int("count", len(services)))

	err := g.Wait()
	if err == nil {
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		hookStart := time.Now()
		h.stop()
		l.logger.Info("stop hook finished",
			zap.String("hook", h.name),
			zap.Duration("elapsed", time.Since(hookStart)),
		)
	}
	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return err
}
