package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/voskstream/pkg/logging"
)

type stopHook struct {
	name string
	fn   func(ctx context.Context) error
}

// Lifecycle collects shutdown hooks for long-lived collaborators (metrics, history,
// publisher, tracer) and runs them once, newest first.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []stopHook
	once    sync.Once
	stopErr error
	timeout time.Duration
	logger  *slog.Logger
}

func NewLifecycle(timeout time.Duration, logger *slog.Logger) *Lifecycle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Lifecycle{timeout: timeout, logger: logging.NewComponentLogger(logger, "lifecycle")}
}

// OnStop registers fn to run during Stop.
func (l *Lifecycle) OnStop(name string, fn func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, stopHook{name: name, fn: fn})
}

// Stop runs every hook in reverse registration order. Each hook gets its own timeout.
// Calling Stop again returns the first result.
func (l *Lifecycle) Stop() error {
	l.once.Do(func() {
		l.mu.Lock()
		hooks := append([]stopHook(nil), l.hooks...)
		l.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
			err := runHook(ctx, h)
			cancel()
			if err != nil {
				l.logger.Warn("stop_hook_failed", slog.String("hook", h.name), slog.Any("error", err))
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
				continue
			}
			l.logger.Debug("stop_hook_done", slog.String("hook", h.name))
		}
		l.stopErr = errors.Join(errs...)
	})
	return l.stopErr
}

func runHook(ctx context.Context, h stopHook) error {
	done := make(chan error, 1)
	go func() { done <- h.fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("stop timeout")
	}
}
