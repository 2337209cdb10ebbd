package transports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harunnryd/voskstream/pkg/errorsx"
	"github.com/harunnryd/voskstream/pkg/resilience"
)

// BreakerDialer stops dialing an endpoint after repeated connection failures.
// Each endpoint has its own breaker.
type BreakerDialer struct {
	inner     Dialer
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

func NewBreakerDialer(inner Dialer, threshold int, cooldown time.Duration) *BreakerDialer {
	return &BreakerDialer{
		inner:     inner,
		threshold: threshold,
		cooldown:  cooldown,
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
}

func (d *BreakerDialer) Name() string { return d.inner.Name() }

func (d *BreakerDialer) Dial(ctx context.Context, endpoint string) (Session, error) {
	var sess Session
	err := d.breaker(endpoint).Call(func() error {
		var err error
		sess, err = d.inner.Dial(ctx, endpoint)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, errorsx.Wrap(fmt.Errorf("dial %s: %w", endpoint, err), errorsx.ReasonConnect)
	}
	return sess, err
}

func (d *BreakerDialer) breaker(endpoint string) *resilience.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.breakers[endpoint]
	if !ok {
		cb = resilience.NewCircuitBreaker(d.threshold, d.cooldown, errorsx.IsConnection)
		d.breakers[endpoint] = cb
	}
	return cb
}
