package tradestore

import (
	"math/big"
	"testing"
	"time"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

func trade(sig domain.Signature, pool domain.PubKey, slot uint64) *domain.Trade {
	return &domain.Trade{
		Signature: sig,
		Slot:      slot,
		PoolID:    pool,
		AmountIn:  big.NewInt(1),
		AmountOut: big.NewInt(1),
	}
}

func TestInsertMarksSeenAndAppendsToRing(t *testing.T) {
	s := New()
	s.Insert(trade("sig1", "poolA", 10))

	if !s.Seen("sig1", "poolA") {
		t.Fatal("expected (sig1, poolA) to be seen after insert")
	}
	recent := s.Recent("poolA", 10)
	if len(recent) != 1 || recent[0].Signature != "sig1" {
		t.Fatalf("got %v", recent)
	}
}

func TestSeenIsPerPoolNotGlobal(t *testing.T) {
	s := New()
	s.Insert(trade("sig1", "poolA", 10))
	if s.Seen("sig1", "poolB") {
		t.Fatal("dedup key must include the pool")
	}
}

func TestRecentIsNewestFirstAndBounded(t *testing.T) {
	s := New()
	for i := uint64(0); i < 5; i++ {
		s.Insert(trade(domain.Signature(string(rune('a'+i))), "poolA", i))
	}
	recent := s.Recent("poolA", 3)
	if len(recent) != 3 {
		t.Fatalf("got %d trades, want 3", len(recent))
	}
	if recent[0].Slot != 4 {
		t.Fatalf("expected newest-first ordering, got slot %d first", recent[0].Slot)
	}
}

func TestMarkSeenOnlyDoesNotInsertTrade(t *testing.T) {
	s := New()
	s.MarkSeenOnly("sig1", "poolA", 10)
	if !s.Seen("sig1", "poolA") {
		t.Fatal("expected MarkSeenOnly to mark the key seen")
	}
	if len(s.Recent("poolA", 10)) != 0 {
		t.Fatal("MarkSeenOnly must not append to the trade ring")
	}
}

func TestSubscribeReceivesInsertedTrades(t *testing.T) {
	s := New()
	ch := s.Subscribe(4)
	s.Insert(trade("sig1", "poolA", 1))

	select {
	case got := <-ch:
		if got.Signature != "sig1" {
			t.Fatalf("got signature %s", got.Signature)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber notification")
	}
}

func TestSubscribeDoesNotBlockOnFullBuffer(t *testing.T) {
	s := New()
	_ = s.Subscribe(0) // unbuffered, never read from
	done := make(chan struct{})
	go func() {
		s.Insert(trade("sig1", "poolA", 1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Insert must not block when a subscriber's channel is full")
	}
}

func TestCompactBeforeRemovesOnlyOlderEntries(t *testing.T) {
	s := New()
	s.MarkSeenOnly("sig1", "poolA", 5)
	s.MarkSeenOnly("sig2", "poolA", 15)

	removed := s.CompactBefore(10)
	if removed != 1 {
		t.Fatalf("got %d removed, want 1", removed)
	}
	if s.Seen("sig1", "poolA") {
		t.Fatal("expected sig1 to be compacted away")
	}
	if !s.Seen("sig2", "poolA") {
		t.Fatal("expected sig2 to remain")
	}
}

func TestLenTracksDedupSetSize(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("got %d, want 0", s.Len())
	}
	s.Insert(trade("sig1", "poolA", 1))
	s.MarkSeenOnly("sig2", "poolA", 2)
	if s.Len() != 2 {
		t.Fatalf("got %d, want 2", s.Len())
	}
}
