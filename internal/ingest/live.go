package ingest

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// LiveConfig parameterizes the poll-driven live entry point.
type LiveConfig struct {
	PollInterval time.Duration
	// SignatureLookback bounds how many of the newest signatures are
	// fetched per poll tick, per pool.
	SignatureLookback int
	// Concurrency bounds how many pools are processed in parallel
	// within one poll tick.
	Concurrency int
}

func (c LiveConfig) withDefaults() LiveConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.SignatureLookback <= 0 {
		c.SignatureLookback = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	return c
}

// RunLive polls getSignaturesForAddress once per tick, newest-first,
// for every pool the registry names, and drains each pool's backlog
// through ProcessSignatureForPool. It runs until ctx is cancelled.
func (e *Engine) RunLive(ctx context.Context, registry PoolRegistry, cfg LiveConfig) error {
	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.pollOnce(ctx, registry.PoolIDs(), cfg); err != nil && ctx.Err() == nil {
				e.Log.WithError(err).Warn("ingest: live poll tick failed")
			}
			e.sampleLag(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context, pools []domain.PubKey, cfg LiveConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for _, pool := range pools {
		pool := pool
		g.Go(func() error {
			return e.drainPool(gctx, pool, cfg.SignatureLookback)
		})
	}
	return g.Wait()
}

// drainPool fetches the newest signatures for a pool and processes
// each one not already seen, oldest-first within the page so slot
// ordering within a tick is preserved.
func (e *Engine) drainPool(ctx context.Context, pool domain.PubKey, limit int) error {
	sigs, err := e.Client.GetSignaturesForAddress(ctx, pool, rpcclient.SignaturesOpts{Limit: limit})
	if err != nil {
		return err
	}
	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i].Signature
		if _, err := e.ProcessSignatureForPool(ctx, pool, sig); err != nil {
			if !errors.Is(err, ErrTransient) {
				e.Log.WithError(err).WithField("sig", sig).WithField("pool", pool).Error("ingest: processing failed")
			}
			continue
		}
	}
	return nil
}

// sampleLag reports the distance between the chain head and the last
// slot this engine fully processed, when a gauge is wired.
func (e *Engine) sampleLag(ctx context.Context) {
	if e.IngestLagSlots == nil {
		return
	}
	head, err := e.Client.GetSlot(ctx)
	if err != nil {
		return
	}
	last := e.LastProcessedSlot()
	if last == 0 || head <= last {
		e.IngestLagSlots.Set(0)
		return
	}
	e.IngestLagSlots.Set(float64(head - last))
}
