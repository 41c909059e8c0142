package ingest

import (
	"context"
	"time"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// CompactorConfig parameterizes the slot-watermarked dedup-set sweep:
// an unbounded dedup set is a slow memory leak, so entries older than
// a safety window behind the current chain head are periodically
// discarded. Compaction never touches the trade rings themselves,
// only the (signature, pool) seen-set.
type CompactorConfig struct {
	Interval          time.Duration
	SafetyWindowSlots uint64
}

func (c CompactorConfig) withDefaults() CompactorConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.SafetyWindowSlots == 0 {
		c.SafetyWindowSlots = 150_000 // roughly a day of slots at ~0.4-0.6s/slot
	}
	return c
}

// RunCompactor drives the periodic sweep from the same process that
// drives live polling, so the dedup set never grows beyond what a
// single safety window of chain history needs.
func (e *Engine) RunCompactor(ctx context.Context, store *tradestore.Store, cfg CompactorConfig) error {
	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			head, err := e.Client.GetSlot(ctx)
			if err != nil {
				if !rpcclient.IsTransient(err) {
					e.Log.WithError(err).Warn("ingest: compactor could not read chain head")
				}
				continue
			}
			if head <= cfg.SafetyWindowSlots {
				continue
			}
			watermark := head - cfg.SafetyWindowSlots
			removed := store.CompactBefore(watermark)
			if removed > 0 {
				e.Log.WithField("removed", removed).WithField("watermark", watermark).Debug("ingest: compacted dedup set")
			}
		}
	}
}
