package candles

import (
	"context"
	"math/big"
	"testing"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

type fakeCandleReader struct {
	candles []*domain.Candle
}

func (f *fakeCandleReader) RecentCandles(context.Context, domain.PubKey, domain.Timeframe, int) ([]*domain.Candle, error) {
	return f.candles, nil
}

func bucket(start int64, closePrice float64) *domain.Candle {
	p := big.NewFloat(closePrice)
	return &domain.Candle{
		PoolID:         "poolX",
		Timeframe:      domain.TF1m,
		BucketStartSec: start,
		Open:           p,
		High:           p,
		Low:            p,
		Close:          p,
		VolumeQuote:    big.NewFloat(1),
		TradesCount:    1,
	}
}

func TestReadCandlesGapFillsMissingBuckets(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	reader := &fakeCandleReader{candles: []*domain.Candle{
		bucket(0, 2.5),
		bucket(180, 3.0), // buckets at 60 and 120 are missing
	}}

	out, err := agg.ReadCandles(context.Background(), reader, "poolX", domain.TF1m, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("got %d candles, want 4 (two real plus two synthesized)", len(out))
	}
	for i, want := range []int64{0, 60, 120, 180} {
		if out[i].BucketStartSec != want {
			t.Fatalf("bucket %d starts at %d, want %d", i, out[i].BucketStartSec, want)
		}
	}
	gap := out[1]
	if gap.TradesCount != 0 || gap.VolumeQuote.Sign() != 0 {
		t.Fatalf("synthesized bucket must be flat and empty, got %+v", gap)
	}
	if gap.Open.Cmp(big.NewFloat(2.5)) != 0 || gap.Close.Cmp(big.NewFloat(2.5)) != 0 {
		t.Fatal("synthesized bucket must carry the previous close")
	}
}

func TestReadCandlesFallsBackToInMemoryBucket(t *testing.T) {
	agg, _, pool := newTestAggregator(t)
	trade := baseToQuoteTrade(pool, 100_000_000_000, 200_000_000, 1_700_000_000)
	agg.applyTrade(context.Background(), trade)

	out, err := agg.ReadCandles(context.Background(), &fakeCandleReader{}, pool, domain.TF1m, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d candles, want the single in-memory current bucket", len(out))
	}
	if out[0].TradesCount != 1 {
		t.Fatalf("got %+v, want the bucket the applied trade opened", out[0])
	}
}

func TestReadCandlesEmptyEverywhere(t *testing.T) {
	agg, _, _ := newTestAggregator(t)
	out, err := agg.ReadCandles(context.Background(), &fakeCandleReader{}, "poolX", domain.TF1m, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d candles, want none", len(out))
	}
}
