// Package volume implements the Volume Aggregator: a rolling
// quote-denominated sum per (pool, timeframe), entirely in-memory.
package volume

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/bignum"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/poolcache"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// Timeframes is the fixed set of rolling windows this aggregator
// maintains; it includes 24h in addition to the candle set.
var Timeframes = append(append([]domain.Timeframe{}, domain.CandleTimeframes...), domain.TF24h)

type point struct {
	tsSec int64
	ui    *big.Float
}

type windowKey struct {
	pool domain.PubKey
	tf   domain.Timeframe
}

// Window is a read-only snapshot of one rolling volume window.
type Window struct {
	PoolID      domain.PubKey
	Timeframe   domain.Timeframe
	VolumeQuote *big.Float
	TradesCount int
}

// Aggregator holds, per (pool, timeframe), the sliding list of trade
// points still inside the window; points older than the window width
// are evicted lazily on read and on every applied trade.
type Aggregator struct {
	mu     sync.Mutex
	points map[windowKey][]point
	pools  *poolcache.Reader
	log    *logrus.Logger
}

// NewAggregator constructs an empty Aggregator.
func NewAggregator(pools *poolcache.Reader, log *logrus.Logger) *Aggregator {
	return &Aggregator{
		points: make(map[windowKey][]point),
		pools:  pools,
		log:    log,
	}
}

// Run subscribes to the trade store and folds every trade into its
// pool's rolling windows as it arrives. It runs until ctx is
// cancelled.
func (a *Aggregator) Run(ctx context.Context, store *tradestore.Store) error {
	trades := store.Subscribe(256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			a.applyTrade(ctx, t)
		}
	}
}

func (a *Aggregator) applyTrade(ctx context.Context, t *domain.Trade) {
	pool, err := a.pools.ReadPool(ctx, t.PoolID)
	if err != nil {
		a.log.WithError(err).WithField("pool", t.PoolID).Warn("volume: drop tick, pool unavailable")
		return
	}

	var quoteUI *big.Float
	switch {
	case t.InMint == pool.BaseMint && t.OutMint == pool.QuoteMint:
		quoteUI = bignum.ToUI(t.AmountOut, pool.QuoteDecimals)
	case t.InMint == pool.QuoteMint && t.OutMint == pool.BaseMint:
		quoteUI = bignum.ToUI(t.AmountIn, pool.QuoteDecimals)
	default:
		return
	}

	tsSec := nowOr(t.BlockTime)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tf := range Timeframes {
		key := windowKey{pool: t.PoolID, tf: tf}
		pts := append(a.points[key], point{tsSec: tsSec, ui: quoteUI})
		a.points[key] = evict(pts, tsSec, tf.Seconds())
	}
}

// Read returns the current rolling sum for (pool, timeframe), evicting
// expired points first.
func (a *Aggregator) Read(pool domain.PubKey, tf domain.Timeframe) Window {
	now := time.Now().Unix()
	a.mu.Lock()
	defer a.mu.Unlock()
	key := windowKey{pool: pool, tf: tf}
	pts := evict(a.points[key], now, tf.Seconds())
	a.points[key] = pts

	sum := bignum.Zero()
	for _, p := range pts {
		sum = bignum.Add(sum, p.ui)
	}
	return Window{PoolID: pool, Timeframe: tf, VolumeQuote: sum, TradesCount: len(pts)}
}

func evict(pts []point, nowSec int64, windowSec int64) []point {
	cutoff := nowSec - windowSec
	i := 0
	for i < len(pts) && pts[i].tsSec < cutoff {
		i++
	}
	if i == 0 {
		return pts
	}
	out := make([]point, len(pts)-i)
	copy(out, pts[i:])
	return out
}

func nowOr(blockTime *int64) int64 {
	if blockTime != nil {
		return *blockTime
	}
	return time.Now().Unix()
}
