package poolcache

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

func TestReaderReadPoolCachesResult(t *testing.T) {
	client := rpcclient.NewFakeClient()
	raw := buildPoolAccount(t, 0x01, 0x02, big.NewInt(1))
	client.Accounts["poolX"] = raw

	r := NewReader(client, time.Minute)
	pool, err := r.ReadPool(context.Background(), "poolX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.PoolID != "poolX" {
		t.Fatalf("got pool id %s", pool.PoolID)
	}

	// Mutate the backing store; the cached value must not change.
	client.Accounts["poolX"] = nil
	cached, err := r.ReadPool(context.Background(), "poolX")
	if err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if cached != pool {
		t.Fatal("expected the cached pool pointer to be returned on a hit")
	}
}

func TestReaderReadPoolMissingAccount(t *testing.T) {
	client := rpcclient.NewFakeClient()
	r := NewReader(client, time.Minute)
	_, err := r.ReadPool(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for a pool with no account data")
	}
}

func TestReaderMintDecimalsBatchesMisses(t *testing.T) {
	client := rpcclient.NewFakeClient()
	mintRaw := make([]byte, mintAccountLen)
	mintRaw[mintDecimalsOffset] = 6
	client.Accounts["mintA"] = mintRaw

	r := NewReader(client, time.Minute)
	out, err := r.MintDecimals(context.Background(), []domain.PubKey{"mintA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["mintA"] != 6 {
		t.Fatalf("got %d, want 6", out["mintA"])
	}

	// Second call should be served from the mint cache without touching
	// the client's backing map.
	client.Accounts["mintA"] = nil
	out2, err := r.MintDecimals(context.Background(), []domain.PubKey{"mintA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out2["mintA"] != 6 {
		t.Fatalf("expected cached decimals to persist, got %d", out2["mintA"])
	}
}
