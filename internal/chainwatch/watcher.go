// Package chainwatch keeps a background view of the chain head and the
// energy price. Requests never wait for it: until the first refresh resolves
// the watcher reports PhasePending and callers use their defaults.
package chainwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/tron-source-router/internal/metrics"
	"github.com/web3-frozen/tron-source-router/internal/normalize"
)

const defaultInterval = 1 * time.Minute

// Phase is the watcher's initialization state.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// Fetcher supplies the data the watcher tracks. Implementations go through
// the source router, so the answer may come from any backend.
type Fetcher interface {
	LatestBlock(ctx context.Context) (normalize.BlockResult, error)
	ChainParameters(ctx context.Context) (normalize.ChainParameters, error)
}

// Status is a point-in-time copy of what the watcher knows.
type Status struct {
	Phase        Phase     `json:"phase"`
	HeadBlock    int64     `json:"headBlock,omitempty"`
	HeadSource   string    `json:"headSource,omitempty"`
	EnergyFeeSun int64     `json:"energyFeeSun,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

type Watcher struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
	ready  chan struct{}
	once   sync.Once
}

func New(f Fetcher, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Watcher{
		fetcher:  f,
		interval: interval,
		logger:   logger,
		status:   Status{Phase: PhasePending},
		ready:    make(chan struct{}),
	}
}

// Run refreshes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}

// Refresh performs one update. The block and the parameters are fetched
// independently; the watcher is ready once both have been seen.
func (w *Watcher) Refresh(ctx context.Context) {
	blk, blkErr := w.fetcher.LatestBlock(ctx)
	params, paramErr := w.fetcher.ChainParameters(ctx)

	w.mu.Lock()
	now := time.Now()
	if blkErr == nil {
		w.status.HeadBlock = blk.Number
		w.status.HeadSource = string(blk.Source)
		w.status.UpdatedAt = now
		metrics.HeadBlock.Set(float64(blk.Number))
	}
	if paramErr == nil {
		if fee := params.EnergyFee(); fee > 0 {
			w.status.EnergyFeeSun = fee
			metrics.EnergyFeeSun.Set(float64(fee))
		}
		w.status.UpdatedAt = now
	}

	var firstErr error
	if blkErr != nil {
		firstErr = blkErr
	} else if paramErr != nil {
		firstErr = paramErr
	}

	switch {
	case firstErr == nil:
		w.status.Phase = PhaseReady
		w.status.LastError = ""
		metrics.WatchTotal.WithLabelValues("success").Inc()
		metrics.WatchLastSuccess.Set(float64(now.Unix()))
	case w.status.HeadBlock > 0 && w.status.EnergyFeeSun > 0:
		// Keep serving the last good values.
		w.status.LastError = firstErr.Error()
		metrics.WatchTotal.WithLabelValues("stale").Inc()
	default:
		w.status.Phase = PhaseFailed
		w.status.LastError = firstErr.Error()
		metrics.WatchTotal.WithLabelValues("error").Inc()
	}
	status := w.status
	w.mu.Unlock()

	w.once.Do(func() { close(w.ready) })

	if firstErr != nil {
		w.logger.Warn("chain watch refresh failed", "phase", status.Phase, "error", firstErr)
		return
	}
	w.logger.Debug("chain watch refreshed",
		"head", status.HeadBlock,
		"source", status.HeadSource,
		"energy_fee_sun", status.EnergyFeeSun,
	)
}

// Status returns a copy of the current state.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Resolved is closed once the first refresh has finished, whatever its
// outcome.
func (w *Watcher) Resolved() <-chan struct{} { return w.ready }

// EnergyPrice returns the live getEnergyFee when the watcher is ready, and
// fallback otherwise.
func (w *Watcher) EnergyPrice(fallback int64) int64 {
	if w == nil {
		return fallback
	}
	s := w.Status()
	if s.Phase == PhaseReady && s.EnergyFeeSun > 0 {
		return s.EnergyFeeSun
	}
	return fallback
}
