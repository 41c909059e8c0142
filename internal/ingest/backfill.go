package ingest

import (
	"context"
	"errors"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// BackfillConfig parameterizes the historical backfill entry point.
type BackfillConfig struct {
	// PageSize bounds each getSignaturesForAddress page; capped at
	// 1000 regardless of what's requested.
	PageSize int
	// MaxSignatures bounds the total number of signatures walked per
	// pool before backfill stops, even if older pages remain. Zero
	// means unbounded (walk to the oldest available signature).
	MaxSignatures int
}

func (c BackfillConfig) pageSize() int {
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return 1000
	}
	return c.PageSize
}

// Backfill walks a single pool's signature history oldest-ward from
// the most recent confirmed signature, paginating with the `before`
// cursor, processing every signature through the same pipeline the
// live and subscription drivers use. It returns the count of
// signatures walked.
func (e *Engine) Backfill(ctx context.Context, pool domain.PubKey, cfg BackfillConfig) (int, error) {
	var before domain.Signature
	walked := 0
	for {
		if ctx.Err() != nil {
			return walked, ctx.Err()
		}
		page, err := e.Client.GetSignaturesForAddress(ctx, pool, rpcclient.SignaturesOpts{
			Limit:  cfg.pageSize(),
			Before: before,
		})
		if err != nil {
			return walked, err
		}
		if len(page) == 0 {
			return walked, nil
		}
		// pages arrive newest-first; walk each one oldest-first so slot
		// ordering within a page is preserved, same as drainPool.
		for i := len(page) - 1; i >= 0; i-- {
			sig := page[i].Signature
			if _, err := e.ProcessSignatureForPool(ctx, pool, sig); err != nil {
				if !errors.Is(err, ErrTransient) {
					e.Log.WithError(err).WithField("sig", sig).WithField("pool", pool).Error("ingest: backfill processing failed")
				}
			}
			walked++
			if cfg.MaxSignatures > 0 && walked >= cfg.MaxSignatures {
				return walked, nil
			}
		}
		before = page[len(page)-1].Signature
		if len(page) < cfg.pageSize() {
			return walked, nil
		}
	}
}
