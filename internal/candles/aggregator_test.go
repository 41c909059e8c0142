package candles

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/poolcache"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

func key32(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func buildPoolAccountRaw() []byte {
	raw := make([]byte, 296)
	copy(raw[8:40], key32(0x01))
	copy(raw[40:72], key32(0x02))
	copy(raw[72:104], key32(0x03))
	copy(raw[104:136], key32(0x04))
	binary.LittleEndian.PutUint64(raw[286:294], 1)
	raw[294] = 9
	raw[295] = 6
	return raw
}

type fakeCandleWriter struct {
	mu    sync.Mutex
	calls int
	last  []*domain.Candle
	err   error
}

func (f *fakeCandleWriter) UpsertCandles(_ context.Context, candles []*domain.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = candles
	return f.err
}

func newTestAggregator(t *testing.T) (*Aggregator, *fakeCandleWriter, domain.PubKey) {
	t.Helper()
	client := rpcclient.NewFakeClient()
	client.Accounts["poolX"] = buildPoolAccountRaw()
	pools := poolcache.NewReader(client, poolcache.DefaultTTL)
	w := &fakeCandleWriter{}
	log := logrus.New()
	log.SetOutput(discardWriter{})
	return NewAggregator(pools, w, log), w, "poolX"
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func baseToQuoteTrade(pool domain.PubKey, amountIn, amountOut int64, blockTime int64) *domain.Trade {
	return &domain.Trade{
		PoolID:    pool,
		InMint:    domain.PubKey(pubkeyFromByte(0x01)),
		OutMint:   domain.PubKey(pubkeyFromByte(0x02)),
		AmountIn:  big.NewInt(amountIn),
		AmountOut: big.NewInt(amountOut),
		BlockTime: &blockTime,
	}
}

func pubkeyFromByte(b byte) string {
	// base58 of 32 bytes all equal to b; mirrors buildPoolAccountRaw's
	// mint keys via the same encoding poolcache.DecodePoolAccount uses.
	return base58.Encode(key32(b))
}

func TestApplyTradeOpensBucketPerTimeframe(t *testing.T) {
	agg, writer, pool := newTestAggregator(t)
	trade := baseToQuoteTrade(pool, 100_000_000_000, 200_000_000, 1_700_000_000)

	agg.applyTrade(context.Background(), trade)
	agg.flush(context.Background())

	if writer.calls != 1 {
		t.Fatalf("got %d flush calls, want 1", writer.calls)
	}
	if len(writer.last) != len(domain.CandleTimeframes) {
		t.Fatalf("got %d candles, want one per timeframe (%d)", len(writer.last), len(domain.CandleTimeframes))
	}
}

func TestApplyTradeIgnoresUnrelatedMints(t *testing.T) {
	agg, writer, pool := newTestAggregator(t)
	blockTime := int64(1_700_000_000)
	trade := &domain.Trade{
		PoolID:    pool,
		InMint:    "some-other-mint",
		OutMint:   "another-mint",
		AmountIn:  big.NewInt(1),
		AmountOut: big.NewInt(1),
		BlockTime: &blockTime,
	}
	agg.applyTrade(context.Background(), trade)
	agg.flush(context.Background())
	if writer.calls != 0 {
		t.Fatal("expected no flush when the trade's mints don't match the pool")
	}
}

func TestFlushIsNoOpWhenNothingDirty(t *testing.T) {
	agg, writer, _ := newTestAggregator(t)
	agg.flush(context.Background())
	if writer.calls != 0 {
		t.Fatal("expected flush to be a no-op with nothing dirty")
	}
}

func TestFlushRemarksDirtyOnWriterError(t *testing.T) {
	agg, writer, pool := newTestAggregator(t)
	writer.err = errBoom
	trade := baseToQuoteTrade(pool, 100, 200, 1_700_000_000)
	agg.applyTrade(context.Background(), trade)

	agg.flush(context.Background())
	if len(agg.dirty) == 0 {
		t.Fatal("expected dirty entries to be re-marked after a failed flush")
	}
}

var errBoom = errors.New("boom")
