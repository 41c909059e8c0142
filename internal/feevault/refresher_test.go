package feevault

import (
	"context"
	"encoding/binary"
	"math/big"
	"testing"
	"time"

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

func buildPoolAccountRaw(creator, holders, nft []byte) []byte {
	raw := make([]byte, 296)
	copy(raw[8:40], key32(0x01))
	copy(raw[40:72], key32(0x02))
	copy(raw[72:104], key32(0x03))
	copy(raw[104:136], key32(0x04))
	copy(raw[136:168], key32(0x0E))
	copy(raw[168:200], creator)
	copy(raw[200:232], holders)
	copy(raw[232:264], nft)
	binary.LittleEndian.PutUint64(raw[286:294], 1)
	raw[294] = 9
	raw[295] = 6
	return raw
}

func buildTokenAccountRaw(mint []byte, amount uint64) []byte {
	raw := make([]byte, 165)
	copy(raw[0:32], mint)
	binary.LittleEndian.PutUint64(raw[64:72], amount)
	return raw
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type fakeFeeWriter struct {
	got       chan domain.FeeUI
	liquidity chan [2]*big.Float
}

func newFakeFeeWriter() *fakeFeeWriter {
	return &fakeFeeWriter{
		got:       make(chan domain.FeeUI, 8),
		liquidity: make(chan [2]*big.Float, 8),
	}
}

func (f *fakeFeeWriter) UpdatePoolFees(_ context.Context, _ domain.PubKey, fees domain.FeeUI) error {
	f.got <- fees
	return nil
}

func (f *fakeFeeWriter) UpdatePoolLiquidity(_ context.Context, _ domain.PubKey, liquidityQuote, tvlLockedQuote *big.Float) error {
	f.liquidity <- [2]*big.Float{liquidityQuote, tvlLockedQuote}
	return nil
}

func newTestRefresher(t *testing.T, cfg Config) (*Refresher, *fakeFeeWriter, domain.PubKey) {
	t.Helper()
	creatorVault := key32(0x10)
	holdersVault := key32(0x11)
	nftVault := key32(0x12)
	mintBytes := key32(0x20)

	client := rpcclient.NewFakeClient()
	client.Accounts["poolX"] = buildPoolAccountRaw(creatorVault, holdersVault, nftVault)
	creatorKey := domain.PubKey(base58.Encode(creatorVault))
	holdersKey := domain.PubKey(base58.Encode(holdersVault))
	nftKey := domain.PubKey(base58.Encode(nftVault))
	client.Accounts[creatorKey] = buildTokenAccountRaw(mintBytes, 1_000_000_000)
	client.Accounts[holdersKey] = buildTokenAccountRaw(mintBytes, 2_000_000_000)
	client.Accounts[nftKey] = buildTokenAccountRaw(mintBytes, 3_000_000_000)

	mintRaw := make([]byte, 82)
	mintRaw[44] = 9
	client.Accounts[domain.PubKey(base58.Encode(mintBytes))] = mintRaw

	pools := poolcache.NewReader(client, poolcache.DefaultTTL)
	writer := newFakeFeeWriter()
	log := logrus.New()
	log.SetOutput(discardWriter{})

	r := NewRefresher(client, pools, writer, log, cfg)
	return r, writer, "poolX"
}

func TestOnTradeTriggersRefreshAfterDebounce(t *testing.T) {
	r, writer, pool := newTestRefresher(t, Config{DebounceMs: 10, MinIntervalMs: 10})
	r.OnTrade(context.Background(), pool)

	select {
	case fees := <-writer.got:
		if fees.Creator.Sign() <= 0 {
			t.Fatal("expected a positive creator fee balance")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a debounced refresh")
	}
}

func TestOnTradeCollapsesBurstIntoOneRefresh(t *testing.T) {
	r, writer, pool := newTestRefresher(t, Config{DebounceMs: 30, MinIntervalMs: 10})
	for i := 0; i < 5; i++ {
		r.OnTrade(context.Background(), pool)
	}

	select {
	case <-writer.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the collapsed refresh")
	}
	select {
	case <-writer.got:
		t.Fatal("expected only one refresh for a burst within the debounce window")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRefreshWritesReserveLiquidity(t *testing.T) {
	r, writer, pool := newTestRefresher(t, Config{DebounceMs: 10, MinIntervalMs: 10})

	// register the reserve vaults the pool account names (0x03/0x04)
	// so the refresher's batch read finds balances for them.
	mintBytes := key32(0x20)
	baseVaultKey := domain.PubKey(base58.Encode(key32(0x03)))
	quoteVaultKey := domain.PubKey(base58.Encode(key32(0x04)))
	r.client.(*rpcclient.FakeClient).Accounts[baseVaultKey] = buildTokenAccountRaw(mintBytes, 5_000_000_000)
	r.client.(*rpcclient.FakeClient).Accounts[quoteVaultKey] = buildTokenAccountRaw(mintBytes, 7_000_000)

	r.OnTrade(context.Background(), pool)

	select {
	case liq := <-writer.liquidity:
		// pool decimals: quote has 6, so 7_000_000 atoms is 7 UI units;
		// the test pool's stored price is zero, so TVL equals the quote
		// reserve alone.
		if liq[0].Cmp(big.NewFloat(7)) != 0 {
			t.Fatalf("got liquidity %s, want 7", liq[0].Text('f', -1))
		}
		if liq[1].Cmp(big.NewFloat(7)) != 0 {
			t.Fatalf("got tvl %s, want 7", liq[1].Text('f', -1))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the liquidity write")
	}
}

func TestRefreshSkippedWhenPoolUnavailable(t *testing.T) {
	client := rpcclient.NewFakeClient()
	pools := poolcache.NewReader(client, poolcache.DefaultTTL)
	writer := newFakeFeeWriter()
	log := logrus.New()
	log.SetOutput(discardWriter{})
	r := NewRefresher(client, pools, writer, log, Config{DebounceMs: 5, MinIntervalMs: 5})

	r.OnTrade(context.Background(), "missing-pool")

	select {
	case <-writer.got:
		t.Fatal("expected no refresh write when the pool account is missing")
	case <-time.After(200 * time.Millisecond):
	}
}
