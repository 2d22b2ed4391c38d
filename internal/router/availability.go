package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
	"golang.org/x/sync/singleflight"

	"github.com/web3-frozen/tron-source-router/internal/metrics"
)

// DefaultProbeTimeout bounds the first-contact probe of the primary backend.
const DefaultProbeTimeout = 5 * time.Second

// State is the latched availability of the primary backend.
type State int32

const (
	StateUnknown State = iota
	StateAvailable
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// ProbeFunc performs one cheap request against the primary backend, typically
// fetching the latest block.
type ProbeFunc func(ctx context.Context) error

// Availability tracks whether the primary backend should be attempted. The
// first Check probes; every later Check returns the latched answer. A failed
// primary is never retried unless a cool-down is configured or Reset is called.
type Availability struct {
	probe    ProbeFunc
	executor failsafe.Executor[any]
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger

	state    atomic.Int32
	downedAt atomic.Int64
	sf       singleflight.Group
	mu       sync.Mutex
}

// AvailabilityOption customises an Availability.
type AvailabilityOption func(*Availability)

// WithProbeTimeout replaces DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) AvailabilityOption {
	return func(a *Availability) {
		if d > 0 {
			a.executor = failsafe.NewExecutor[any](timeout.Builder[any](d).Build())
		}
	}
}

// WithCooldown lets an unavailable primary be probed again once d has elapsed
// since it was marked down. Zero keeps the latch one-way.
func WithCooldown(d time.Duration) AvailabilityOption {
	return func(a *Availability) { a.cooldown = d }
}

// WithClock injects the time source used for the cool-down.
func WithClock(now func() time.Time) AvailabilityOption {
	return func(a *Availability) { a.now = now }
}

// WithLogger sets the logger for latch transitions.
func WithLogger(l *slog.Logger) AvailabilityOption {
	return func(a *Availability) { a.logger = l }
}

// NewAvailability returns a prober in the unknown state.
func NewAvailability(probe ProbeFunc, opts ...AvailabilityOption) *Availability {
	a := &Availability{
		probe:    probe,
		executor: failsafe.NewExecutor[any](timeout.Builder[any](DefaultProbeTimeout).Build()),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	metrics.PrimaryAvailability.Set(-1)
	return a
}

// State returns the current latched state without probing.
func (a *Availability) State() State {
	return State(a.state.Load())
}

// Check reports whether the primary should be attempted, probing it on first
// use. Concurrent first calls share one probe.
func (a *Availability) Check(ctx context.Context) bool {
	switch a.State() {
	case StateAvailable:
		return true
	case StateUnavailable:
		if !a.cooledDown() {
			return false
		}
	}

	v, _, _ := a.sf.Do("probe", func() (any, error) {
		// Another caller may have resolved the state while we waited.
		if s := a.State(); s == StateAvailable {
			return true, nil
		} else if s == StateUnavailable && !a.cooledDown() {
			return false, nil
		}
		err := a.runProbe(ctx)
		if err != nil {
			a.logger.Warn("primary probe failed", "error", err)
			a.MarkUnavailable()
			return false, nil
		}
		a.set(StateAvailable)
		return true, nil
	})
	ok, _ := v.(bool)
	return ok
}

func (a *Availability) runProbe(ctx context.Context) error {
	if a.probe == nil {
		return errors.New("no primary probe configured")
	}
	// Detach from the caller so one cancelled request cannot decide the
	// outcome for everyone sharing the probe.
	pctx := context.WithoutCancel(ctx)
	_, err := a.executor.
		WithContext(pctx).
		GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
			return nil, a.probe(exec.Context())
		})
	if errors.Is(err, timeout.ErrExceeded) {
		return fmt.Errorf("probe timed out: %w", err)
	}
	return err
}

// MarkUnavailable latches the primary as down.
func (a *Availability) MarkUnavailable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downedAt.Store(a.now().UnixNano())
	if a.State() != StateUnavailable {
		a.logger.Warn("primary marked unavailable")
	}
	a.set(StateUnavailable)
}

// Reset returns the latch to unknown so the next Check probes again.
func (a *Availability) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downedAt.Store(0)
	a.set(StateUnknown)
	a.logger.Info("primary availability reset")
}

func (a *Availability) cooledDown() bool {
	if a.cooldown <= 0 {
		return false
	}
	downed := a.downedAt.Load()
	return a.now().Sub(time.Unix(0, downed)) >= a.cooldown
}

func (a *Availability) set(s State) {
	a.state.Store(int32(s))
	switch s {
	case StateAvailable:
		metrics.PrimaryAvailability.Set(1)
	case StateUnavailable:
		metrics.PrimaryAvailability.Set(0)
	default:
		metrics.PrimaryAvailability.Set(-1)
	}
}
