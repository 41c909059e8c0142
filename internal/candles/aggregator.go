// Package candles implements the Candle Aggregator: it folds trades
// into OHLCV buckets per (pool, timeframe), keeping a dirty set that a
// periodic flush persists in a batched idempotent upsert.
package candles

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

// CandleWriter persists a batch of candle buckets in one call, keyed
// on (pool, timeframe, bucketStartSec).
type CandleWriter interface {
	UpsertCandles(ctx context.Context, candles []*domain.Candle) error
}

// Config parameterizes the flush cadence.
type Config struct {
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	return c
}

type bucketKey struct {
	pool domain.PubKey
	tf   domain.Timeframe
}

type dirtyKey struct {
	pool           domain.PubKey
	tf             domain.Timeframe
	bucketStartSec int64
}

// Aggregator owns the in-memory current-bucket state for every pool it
// has seen a trade for, and the dirty set awaiting flush.
type Aggregator struct {
	mu      sync.Mutex
	current map[bucketKey]*domain.Candle
	dirty   map[dirtyKey]*domain.Candle

	pools  *poolcache.Reader
	writer CandleWriter
	log    *logrus.Logger
}

// NewAggregator constructs an Aggregator. It does not start consuming
// trades until Run is called with a trade feed.
func NewAggregator(pools *poolcache.Reader, writer CandleWriter, log *logrus.Logger) *Aggregator {
	return &Aggregator{
		current: make(map[bucketKey]*domain.Candle),
		dirty:   make(map[dirtyKey]*domain.Candle),
		pools:   pools,
		writer:  writer,
		log:     log,
	}
}

// Run subscribes to the trade store and applies every trade to this
// pool's current buckets as it arrives, flushing the dirty set every
// cfg.FlushInterval. It runs until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, store *tradestore.Store, cfg Config) error {
	cfg = cfg.withDefaults()
	trades := store.Subscribe(256)
	ticker := time.NewTicker(cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush(context.Background())
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			a.applyTrade(ctx, t)
		case <-ticker.C:
			a.flush(ctx)
		}
	}
}

// applyTrade implements the tick-application algorithm: compute the
// tick, locate or open the current bucket for every maintained
// timeframe, and fold the tick in.
func (a *Aggregator) applyTrade(ctx context.Context, t *domain.Trade) {
	pool, err := a.pools.ReadPool(ctx, t.PoolID)
	if err != nil {
		a.log.WithError(err).WithField("pool", t.PoolID).Warn("candles: drop tick, pool unavailable")
		return
	}

	inIsBase := t.InMint == pool.BaseMint
	switch {
	case inIsBase && t.OutMint == pool.QuoteMint:
	case t.InMint == pool.QuoteMint && t.OutMint == pool.BaseMint:
	default:
		return
	}

	amountInUI := bignum.ToUI(t.AmountIn, decimalsOf(t.InMint, pool))
	amountOutUI := bignum.ToUI(t.AmountOut, decimalsOf(t.OutMint, pool))
	price := bignum.Price(amountInUI, amountOutUI, inIsBase)

	var volumeQuote *big.Float
	if inIsBase {
		volumeQuote = amountOutUI
	} else {
		volumeQuote = amountInUI
	}

	tsSec := nowOr(t.BlockTime)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tf := range domain.CandleTimeframes {
		bucketStart := tf.BucketStart(tsSec)
		key := bucketKey{pool: t.PoolID, tf: tf}
		cur := a.current[key]
		if cur == nil || cur.BucketStartSec != bucketStart {
			cur = &domain.Candle{
				PoolID:         t.PoolID,
				Timeframe:      tf,
				BucketStartSec: bucketStart,
				Open:           price,
				High:           price,
				Low:            price,
				Close:          price,
				VolumeQuote:    volumeQuote,
				TradesCount:    1,
			}
		} else {
			cur.High = bignum.Max(cur.High, price)
			cur.Low = bignum.Min(cur.Low, price)
			cur.Close = price
			cur.VolumeQuote = bignum.Add(cur.VolumeQuote, volumeQuote)
			cur.TradesCount++
		}
		cur.UpdatedAtMs = time.Now().UnixMilli()
		a.current[key] = cur
		a.dirty[dirtyKey{pool: t.PoolID, tf: tf, bucketStartSec: bucketStart}] = cur
	}
}

func decimalsOf(mint domain.PubKey, pool *domain.Pool) int {
	if mint == pool.BaseMint {
		return pool.BaseDecimals
	}
	return pool.QuoteDecimals
}

// nowOr substitutes the current wall-clock second when blockTime is
// absent; a trade's effective timestamp must never be zero.
func nowOr(blockTime *int64) int64 {
	if blockTime != nil {
		return *blockTime
	}
	return time.Now().Unix()
}

func (a *Aggregator) flush(ctx context.Context) {
	a.mu.Lock()
	if len(a.dirty) == 0 {
		a.mu.Unlock()
		return
	}
	batch := make([]*domain.Candle, 0, len(a.dirty))
	for k, c := range a.dirty {
		batch = append(batch, c)
		delete(a.dirty, k)
	}
	a.mu.Unlock()

	if err := a.writer.UpsertCandles(ctx, batch); err != nil {
		a.log.WithError(err).Error("candles: flush failed, re-marking dirty")
		a.mu.Lock()
		for _, c := range batch {
			a.dirty[dirtyKey{pool: c.PoolID, tf: c.Timeframe, bucketStartSec: c.BucketStartSec}] = c
		}
		a.mu.Unlock()
	}
}
