package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Loader builds a fresh AnalysisContext from the configured sources.
type Loader func(ctx context.Context) (*AnalysisContext, error)

// Holder publishes the current AnalysisContext. Readers never block: a
// refresh builds a complete new context and swaps it in, and requests already
// holding the old one keep using it.
type Holder struct {
	current atomic.Pointer[AnalysisContext]
	load    Loader
	log     *zap.Logger
}

// NewHolder performs the initial load.
func NewHolder(ctx context.Context, load Loader) (*Holder, error) {
	if load == nil {
		return nil, eris.New("pipeline: nil loader")
	}
	h := &Holder{load: load, log: zap.L().With(zap.String("component", "pipeline.holder"))}
	if err := h.Refresh(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Current returns the context requests should use.
func (h *Holder) Current() *AnalysisContext {
	return h.current.Load()
}

// Refresh reloads and swaps the context. On failure the previous context
// stays in place.
func (h *Holder) Refresh(ctx context.Context) error {
	start := time.Now()
	ac, err := h.load(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: refresh")
	}
	h.current.Store(ac)
	h.log.Info("analysis context loaded",
		zap.Int("communities", len(ac.Snapshot.Communities)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Watch refreshes the context every interval until ctx is done. Failed
// reloads are logged and the previous context is kept. A non-positive
// interval returns immediately.
func (h *Holder) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Refresh(ctx); err != nil {
				h.log.Warn("refresh failed, keeping previous context", zap.Error(err))
			}
		}
	}
}
