package candles

import (
	"context"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/bignum"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// CandleReader returns the most recent persisted buckets for a pool's
// timeframe, ascending by bucketStartSec.
type CandleReader interface {
	RecentCandles(ctx context.Context, pool domain.PubKey, tf domain.Timeframe, limit int) ([]*domain.Candle, error)
}

// ReadCandles implements the read contract: fetch the persisted tail,
// gap-fill any missing bucket between two present ones with a flat
// candle carrying the previous close, and fall back to this
// aggregator's in-memory current bucket when persistence has nothing
// at all for the pool/timeframe.
func (a *Aggregator) ReadCandles(ctx context.Context, reader CandleReader, pool domain.PubKey, tf domain.Timeframe, limit int) ([]*domain.Candle, error) {
	persisted, err := reader.RecentCandles(ctx, pool, tf, limit)
	if err != nil {
		return nil, err
	}
	if len(persisted) == 0 {
		a.mu.Lock()
		cur := a.current[bucketKey{pool: pool, tf: tf}]
		a.mu.Unlock()
		if cur == nil {
			return nil, nil
		}
		return []*domain.Candle{cur}, nil
	}
	return gapFill(persisted, tf), nil
}

func gapFill(in []*domain.Candle, tf domain.Timeframe) []*domain.Candle {
	if len(in) < 2 {
		return in
	}
	step := tf.Seconds()
	out := make([]*domain.Candle, 0, len(in))
	out = append(out, in[0])
	for i := 1; i < len(in); i++ {
		prev := out[len(out)-1]
		cur := in[i]
		for next := prev.BucketStartSec + step; next < cur.BucketStartSec; next += step {
			out = append(out, &domain.Candle{
				PoolID:         cur.PoolID,
				Timeframe:      tf,
				BucketStartSec: next,
				Open:           prev.Close,
				High:           prev.Close,
				Low:            prev.Close,
				Close:          prev.Close,
				VolumeQuote:    bignum.Zero(),
				TradesCount:    0,
			})
		}
		out = append(out, cur)
	}
	return out
}
