package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// orderRecordingEvents captures the order signatures reach the
// persister in.
type orderRecordingEvents struct {
	mu   sync.Mutex
	sigs []domain.Signature
}

func (o *orderRecordingEvents) PersistEvents(_ context.Context, tx *domain.Transaction, _ domain.PubKey, _ []domain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sigs = append(o.sigs, tx.Signature)
	return nil
}

func TestBackfillWalksAllPagesAndStopsAtEmptyPage(t *testing.T) {
	client := rpcclient.NewFakeClient()
	for i := 0; i < 5; i++ {
		sig := domain.Signature(string(rune('a' + i)))
		client.Signatures["poolX"] = append(client.Signatures["poolX"], rpcclient.SignatureInfo{Signature: sig})
		client.Txs[sig] = &domain.Transaction{
			Signature:   sig,
			AccountKeys: []domain.PubKey{"payer"},
			LogMessages: []string{"Program log: Instruction: Transfer"},
		}
	}
	e, ev, _, _ := newTestEngine(t, client)

	walked, err := e.Backfill(context.Background(), "poolX", BackfillConfig{PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if walked != 5 {
		t.Fatalf("got %d walked, want 5", walked)
	}
	if ev.calls != 5 {
		t.Fatalf("expected events persisted for every signature, got %d calls", ev.calls)
	}
}

func TestBackfillWalksEachPageOldestFirst(t *testing.T) {
	client := rpcclient.NewFakeClient()
	// newest-first, as getSignaturesForAddress returns them.
	for _, sig := range []domain.Signature{"e", "d", "c", "b", "a"} {
		client.Signatures["poolX"] = append(client.Signatures["poolX"], rpcclient.SignatureInfo{Signature: sig})
		client.Txs[sig] = &domain.Transaction{Signature: sig, AccountKeys: []domain.PubKey{"payer"}}
	}
	e, _, _, _ := newTestEngine(t, client)
	rec := &orderRecordingEvents{}
	e.Events = rec

	if _, err := e.Backfill(context.Background(), "poolX", BackfillConfig{PageSize: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// pages are [e,d], [c,b], [a]; each must be walked oldest-first.
	want := []domain.Signature{"d", "e", "b", "c", "a"}
	if len(rec.sigs) != len(want) {
		t.Fatalf("got %d processed signatures, want %d", len(rec.sigs), len(want))
	}
	for i, sig := range want {
		if rec.sigs[i] != sig {
			t.Fatalf("position %d processed %s, want %s (full order %v)", i, rec.sigs[i], sig, rec.sigs)
		}
	}
}

func TestBackfillRespectsMaxSignatures(t *testing.T) {
	client := rpcclient.NewFakeClient()
	for i := 0; i < 10; i++ {
		sig := domain.Signature(string(rune('a' + i)))
		client.Signatures["poolX"] = append(client.Signatures["poolX"], rpcclient.SignatureInfo{Signature: sig})
		client.Txs[sig] = &domain.Transaction{Signature: sig, AccountKeys: []domain.PubKey{"payer"}}
	}
	e, _, _, _ := newTestEngine(t, client)

	walked, err := e.Backfill(context.Background(), "poolX", BackfillConfig{PageSize: 3, MaxSignatures: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if walked != 4 {
		t.Fatalf("got %d walked, want 4", walked)
	}
}

func TestBackfillEmptyPoolWalksZero(t *testing.T) {
	client := rpcclient.NewFakeClient()
	e, _, _, _ := newTestEngine(t, client)

	walked, err := e.Backfill(context.Background(), "poolX", BackfillConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if walked != 0 {
		t.Fatalf("got %d walked, want 0", walked)
	}
}
