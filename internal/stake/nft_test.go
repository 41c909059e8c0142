package stake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/decoder"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

const testScanAddress = domain.PubKey("nftVaultScan")

func newTestNFTIndexer(t *testing.T, cfg NFTVaultConfig) (*NFTIndexer, *fakeStore, *rpcclient.FakeClient) {
	t.Helper()
	client := rpcclient.NewFakeClient()
	store := newFakeStore()
	if cfg.ScanAddress == "" {
		cfg.ScanAddress = testScanAddress
	}
	idx := NewNFTIndexer(cfg, client, store, store, testLogger())
	return idx, store, client
}

func encodeEventLog(t *testing.T, name string, fields map[string]any) string {
	t.Helper()
	disc := decoder.Discriminator(name)
	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	raw := append(disc[:], body...)
	return "Program data: " + base64.StdEncoding.EncodeToString(raw)
}

func stakedEventLog(t *testing.T, mint, owner string) string {
	return encodeEventLog(t, "NftStaked", map[string]any{"nftMint": mint, "owner": owner})
}

func unstakedEventLog(t *testing.T, mint, owner string) string {
	return encodeEventLog(t, "NftUnstaked", map[string]any{"nftMint": mint, "owner": owner})
}

func TestProcessSignatureAppliesStakedEvent(t *testing.T) {
	idx, store, client := newTestNFTIndexer(t, NFTVaultConfig{UnlockWindowSec: 3600})
	blockTime := int64(1_700_000_000)
	client.Txs["sig-1"] = &domain.Transaction{
		BlockTime:   &blockTime,
		LogMessages: []string{stakedEventLog(t, "mintA", "ownerA")},
	}

	if err := idx.processSignature(context.Background(), "sig-1"); err != nil {
		t.Fatalf("processSignature returned error: %v", err)
	}
	if len(store.nftStakes) != 1 {
		t.Fatalf("got %d nft stake writes, want 1", len(store.nftStakes))
	}
	row := store.nftStakes[0]
	if row.NFTMint != "mintA" || row.Owner != "ownerA" {
		t.Fatalf("got row %+v, want mint=mintA owner=ownerA", row)
	}
	if row.Status != NFTStatusActive {
		t.Fatalf("got status %v, want active", row.Status)
	}
	if row.UnlockAtSec == nil || *row.UnlockAtSec != blockTime+3600 {
		t.Fatalf("got unlock %v, want %d", row.UnlockAtSec, blockTime+3600)
	}
	if _, ok := idx.seenSignatures["sig-1"]; !ok {
		t.Fatal("expected sig-1 to be marked seen")
	}
}

func TestProcessSignatureCarriesStakeAccountDurationAndPool(t *testing.T) {
	idx, store, client := newTestNFTIndexer(t, NFTVaultConfig{UnlockWindowSec: 3600})
	blockTime := int64(1_700_000_000)
	client.Txs["sig-1"] = &domain.Transaction{
		BlockTime: &blockTime,
		LogMessages: []string{encodeEventLog(t, "NftStaked", map[string]any{
			"nftMint":         "mintA",
			"owner":           "ownerA",
			"stakeAccount":    "stakeAcctA",
			"lockDurationSec": float64(7200),
			"associatedPool":  "poolA",
		})},
	}

	if err := idx.processSignature(context.Background(), "sig-1"); err != nil {
		t.Fatalf("processSignature returned error: %v", err)
	}
	if len(store.nftStakes) != 1 {
		t.Fatalf("got %d nft stake writes, want 1", len(store.nftStakes))
	}
	row := store.nftStakes[0]
	if row.StakeAccount != "stakeAcctA" {
		t.Fatalf("got stake account %q, want stakeAcctA", row.StakeAccount)
	}
	if row.LockDurationSec != 7200 {
		t.Fatalf("got lock duration %d, want 7200", row.LockDurationSec)
	}
	if row.AssociatedPool != "poolA" {
		t.Fatalf("got associated pool %q, want poolA", row.AssociatedPool)
	}
	// the event's lock duration wins over the configured window.
	if row.UnlockAtSec == nil || *row.UnlockAtSec != blockTime+7200 {
		t.Fatalf("got unlock %v, want %d", row.UnlockAtSec, blockTime+7200)
	}
}

func TestInt64FieldAcceptsNumberAndString(t *testing.T) {
	data := map[string]any{"n": float64(42), "s": "99", "bad": "nope"}
	if got := int64Field(data, "n"); got != 42 {
		t.Fatalf("got %d, want 42 for a JSON number", got)
	}
	if got := int64Field(data, "s"); got != 99 {
		t.Fatalf("got %d, want 99 for a decimal string", got)
	}
	if got := int64Field(data, "bad"); got != 0 {
		t.Fatalf("got %d, want 0 for a non-numeric string", got)
	}
	if got := int64Field(data, "missing"); got != 0 {
		t.Fatalf("got %d, want 0 for a missing key", got)
	}
}

func TestProcessSignatureAppliesUnstakedEvent(t *testing.T) {
	idx, store, client := newTestNFTIndexer(t, NFTVaultConfig{})
	blockTime := int64(1_700_000_100)
	client.Txs["sig-2"] = &domain.Transaction{
		BlockTime:   &blockTime,
		LogMessages: []string{unstakedEventLog(t, "mintB", "ownerB")},
	}

	if err := idx.processSignature(context.Background(), "sig-2"); err != nil {
		t.Fatalf("processSignature returned error: %v", err)
	}
	if len(store.nftStakes) != 1 {
		t.Fatalf("got %d nft stake writes, want 1", len(store.nftStakes))
	}
	if store.nftStakes[0].Status != NFTStatusWithdrawn {
		t.Fatalf("got status %v, want withdrawn", store.nftStakes[0].Status)
	}
}

func TestProcessSignatureDedupsAlreadySeenNFT(t *testing.T) {
	idx, store, client := newTestNFTIndexer(t, NFTVaultConfig{})
	idx.seenSignatures["sig-1"] = struct{}{}
	client.Txs["sig-1"] = &domain.Transaction{LogMessages: []string{stakedEventLog(t, "mintA", "ownerA")}}

	if err := idx.processSignature(context.Background(), "sig-1"); err != nil {
		t.Fatalf("processSignature returned error: %v", err)
	}
	if len(store.nftStakes) != 0 {
		t.Fatal("expected an already-seen signature to produce no writes")
	}
}

func TestProcessSignatureIgnoresUnrelatedEventNames(t *testing.T) {
	idx, store, client := newTestNFTIndexer(t, NFTVaultConfig{})
	client.Txs["sig-1"] = &domain.Transaction{
		LogMessages: []string{encodeEventLog(t, "SwapExecuted", map[string]any{"nftMint": "mintA", "owner": "ownerA"})},
	}

	if err := idx.processSignature(context.Background(), "sig-1"); err != nil {
		t.Fatalf("processSignature returned error: %v", err)
	}
	if len(store.nftStakes) != 0 {
		t.Fatal("expected an unrelated event name to produce no writes")
	}
}

func TestEventMintOwnerMissingFieldsYieldsEmpty(t *testing.T) {
	mint, owner := eventMintOwner(domain.Event{Name: "NftStaked", Data: map[string]any{}})
	if mint != "" || owner != "" {
		t.Fatalf("got mint=%q owner=%q, want both empty", mint, owner)
	}
}

func TestCheckUnlocksTransitionsPastDueActives(t *testing.T) {
	idx, store, _ := newTestNFTIndexer(t, NFTVaultConfig{})
	now := time.Now().Unix()
	past := now - 10
	future := now + 10_000

	actives := []NFTStakeRow{
		{NFTMint: "mintA", Owner: "ownerA", Status: NFTStatusActive, UnlockAtSec: &past},
		{NFTMint: "mintB", Owner: "ownerB", Status: NFTStatusActive, UnlockAtSec: &future},
		{NFTMint: "mintC", Owner: "ownerC", Status: NFTStatusWithdrawn, UnlockAtSec: &past},
		{NFTMint: "mintD", Owner: "ownerD", Status: NFTStatusActive, UnlockAtSec: nil},
	}

	idx.CheckUnlocks(context.Background(), actives, now)

	if len(store.nftStakes) != 1 {
		t.Fatalf("got %d transitions, want 1 (only the past-due active row)", len(store.nftStakes))
	}
	got := store.nftStakes[0]
	if got.NFTMint != "mintA" || got.Status != NFTStatusUnlocked {
		t.Fatalf("got transition %+v, want mintA unlocked", got)
	}
}
