// Package router dispatches one operation across the primary, gateway and
// explorer backends in a fixed order and returns the first success.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/tron-source-router/internal/metrics"
	"github.com/web3-frozen/tron-source-router/internal/source"
)

// Thunk performs an operation against one backend.
type Thunk[T any] func(ctx context.Context) (T, error)

// Candidates holds the backends able to serve one call. A nil field means the
// backend does not take part.
type Candidates[T any] struct {
	Primary  Thunk[T]
	Gateway  Thunk[T]
	Explorer Thunk[T]
}

func (c Candidates[T]) ordered() []candidate[T] {
	return []candidate[T]{
		{source.Primary, c.Primary},
		{source.Gateway, c.Gateway},
		{source.Explorer, c.Explorer},
	}
}

type candidate[T any] struct {
	id source.ID
	fn Thunk[T]
}

// errPrimarySkipped is recorded when the latch removed the primary.
var errPrimarySkipped = errors.New("skipped (marked unavailable)")

// ErrZeroEstimate marks a live estimate that returned no energy.
var ErrZeroEstimate = errors.New("returned zero energy")

// Router owns the primary availability latch and the per-attempt timeout.
type Router struct {
	avail          *Availability
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// Option customises a Router.
type Option func(*Router)

// WithAttemptTimeout bounds each backend attempt. Zero leaves the caller's
// deadline as the only bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Router) { r.attemptTimeout = d }
}

// WithRouterLogger sets the router's logger.
func WithRouterLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New builds a router around avail. A nil avail always attempts the primary.
func New(avail *Availability, opts ...Option) *Router {
	r := &Router{avail: avail, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Availability returns the injected latch.
func (r *Router) Availability() *Availability { return r.avail }

// Execute tries each candidate in order and returns the first success along
// with the backend that produced it. Attempts never overlap. If every
// candidate fails the error is an *source.ErrAllSourcesFailed naming op and
// every backend's reason.
func Execute[T any](ctx context.Context, r *Router, op source.Operation, c Candidates[T]) (T, source.ID, error) {
	var zero T
	if op.IsWrite() {
		c.Explorer = nil
	}

	var attempts []source.Attempt
	first := true
	for _, cand := range c.ordered() {
		if cand.fn == nil {
			continue
		}
		if cand.id == source.Primary && r.avail != nil && !r.avail.Check(ctx) {
			attempts = append(attempts, source.Attempt{Source: source.Primary, Err: errPrimarySkipped})
			metrics.AttemptsTotal.WithLabelValues(op.String(), source.Primary.String(), "skipped").Inc()
			first = false
			continue
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, source.Attempt{Source: cand.id, Err: err})
			break
		}

		v, err := attempt(ctx, r, op, cand.id, cand.fn)
		if err == nil {
			if !first {
				metrics.FallbacksTotal.WithLabelValues(op.String(), cand.id.String()).Inc()
			}
			return v, cand.id, nil
		}
		first = false
		attempts = append(attempts, source.Attempt{Source: cand.id, Err: err})
		r.logger.Warn("backend attempt failed",
			"operation", op,
			"source", cand.id,
			"error", err,
		)
		if cand.id == source.Primary && r.avail != nil && latches(err) {
			r.avail.MarkUnavailable()
		}
	}

	metrics.AllSourcesFailedTotal.WithLabelValues(op.String()).Inc()
	return zero, "", source.NewErrAllSourcesFailed(op, attempts)
}

func attempt[T any](ctx context.Context, r *Router, op source.Operation, id source.ID, fn Thunk[T]) (T, error) {
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}
	start := time.Now()
	v, err := fn(ctx)
	metrics.AttemptDuration.WithLabelValues(op.String(), id.String()).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.AttemptsTotal.WithLabelValues(op.String(), id.String(), outcome).Inc()
	return v, err
}

// latches reports whether a primary failure should mark it down. Any
// failure latches except rejections of the caller's own arguments, an
// operation the primary does not offer, and a zero energy estimate: the node
// answered in each of those cases.
func latches(err error) bool {
	return !errors.Is(err, ErrZeroEstimate) &&
		!source.HasCode(err, source.CodeInvalidParameter) &&
		!source.HasCode(err, source.CodeInvalidAddress) &&
		!source.HasCode(err, source.CodeUnsupportedOperation)
}

// Estimate is the outcome of ExecuteEstimate.
type Estimate struct {
	Energy int64
	Source source.ID
	// Failure holds the aggregated live failures when Source is Heuristic.
	Failure error
}

// Live reports whether the energy figure came from a backend.
func (e Estimate) Live() bool { return e.Source != source.Heuristic }

// ExecuteEstimate runs an energy estimate through Execute, treating a
// non-positive figure as a failure. When every backend fails it returns
// fallback() tagged with source.Heuristic. It never returns an error.
func ExecuteEstimate(ctx context.Context, r *Router, c Candidates[int64], fallback func() int64) Estimate {
	energy, src, err := Execute(ctx, r, source.OpEstimateEnergy, Candidates[int64]{
		Primary:  positive(c.Primary),
		Gateway:  positive(c.Gateway),
		Explorer: positive(c.Explorer),
	})
	if err == nil {
		return Estimate{Energy: energy, Source: src}
	}
	metrics.HeuristicEstimatesTotal.Inc()
	r.logger.Info("energy estimate fell back to heuristic", "error", err)
	return Estimate{Energy: fallback(), Source: source.Heuristic, Failure: err}
}

func positive(fn Thunk[int64]) Thunk[int64] {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (int64, error) {
		v, err := fn(ctx)
		if err != nil {
			return 0, err
		}
		if v <= 0 {
			return 0, fmt.Errorf("%w (%d)", ErrZeroEstimate, v)
		}
		return v, nil
	}
}
