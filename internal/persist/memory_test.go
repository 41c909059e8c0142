package persist

import (
	"context"
	"math/big"
	"testing"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

func TestMemoryInsertTradeIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tr := &domain.Trade{Signature: "sig1", PoolID: "poolA", Slot: 10, AmountIn: big.NewInt(1), AmountOut: big.NewInt(2)}

	if err := m.InsertTrade(ctx, tr); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.InsertTrade(ctx, tr); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	out, err := m.RecentTrades(ctx, "poolA", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one trade after duplicate insert, got %d", len(out))
	}
}

func TestMemoryUpsertPoolStateSlotGated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	newer := &domain.Pool{PoolID: "poolA", ActiveBin: 5, LastUpdateSlot: 100}
	older := &domain.Pool{PoolID: "poolA", ActiveBin: 1, LastUpdateSlot: 50}

	if err := m.UpsertPoolState(ctx, "prog", newer, "sig-newer"); err != nil {
		t.Fatalf("upsert newer: %v", err)
	}
	if err := m.UpsertPoolState(ctx, "prog", older, "sig-older"); err != nil {
		t.Fatalf("upsert older: %v", err)
	}
	got, err := m.Pool(ctx, "poolA")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ActiveBin != 5 {
		t.Fatalf("expected slot-gated update to reject the older write, got ActiveBin=%d", got.ActiveBin)
	}
}

func TestMemoryPersistEventsUniqueKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tx := &domain.Transaction{Signature: "sig1", Slot: 7}
	events := []domain.Event{{Name: "Swap", Data: map[string]any{"a": 1}}, {Name: "Swap", Data: map[string]any{"a": 2}}}

	if err := m.PersistEvents(ctx, tx, "prog", events); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := m.PersistEvents(ctx, tx, "prog", events); err != nil {
		t.Fatalf("replay: %v", err)
	}
	recs, err := m.ListEvents(ctx, EventFilter{ProgramID: "prog"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 unique event rows surviving a replay, got %d", len(recs))
	}
}

func TestMemoryPersistEventsUnknownTxFallback(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tx := &domain.Transaction{Signature: "sig2", Slot: 9, LogMessages: []string{"raw log line"}}

	if err := m.PersistEvents(ctx, tx, "prog", nil); err != nil {
		t.Fatalf("persist: %v", err)
	}
	recs, err := m.ListEvents(ctx, EventFilter{ProgramID: "prog", EventType: "tx"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one fallback tx row, got %d", len(recs))
	}
	if recs[0].Logs[0] != "raw log line" {
		t.Fatalf("fallback row lost the raw logs: %+v", recs[0])
	}
}
