package persist

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// txnIndexTTL is the per-slot signature->index map lifetime; a block
// is immutable once confirmed, so the only reason to expire it is to
// bound memory, not staleness.
const txnIndexTTL = 60 * time.Second

// txnIndexer resolves a signature's position within its block, the
// txnIndex component of an event record's unique key. One block fetch
// serves every event produced by that block.
type txnIndexer struct {
	client rpcclient.Client
	cache  *lru.LRU[uint64, map[domain.Signature]int]

	// inflight de-dupes concurrent resolves for the same slot so a
	// burst of events from one block triggers one GetBlockSignatures
	// call, not one per event.
	mu       sync.Mutex
	inflight map[uint64]chan struct{}
}

func newTxnIndexer(client rpcclient.Client) *txnIndexer {
	return &txnIndexer{
		client:   client,
		cache:    lru.NewLRU[uint64, map[domain.Signature]int](4096, nil, txnIndexTTL),
		inflight: make(map[uint64]chan struct{}),
	}
}

// Resolve returns sig's index within slot's block. A block fetch
// failure degrades to index 0 rather than blocking the insert: the
// record is still persisted, just with a less precise ordering key.
func (x *txnIndexer) Resolve(ctx context.Context, slot uint64, sig domain.Signature) int {
	m, ok := x.cache.Get(slot)
	if !ok {
		m = x.fetch(ctx, slot)
	}
	return m[sig]
}

func (x *txnIndexer) fetch(ctx context.Context, slot uint64) map[domain.Signature]int {
	x.mu.Lock()
	if wait, ok := x.inflight[slot]; ok {
		x.mu.Unlock()
		<-wait
		m, _ := x.cache.Get(slot)
		return m
	}
	done := make(chan struct{})
	x.inflight[slot] = done
	x.mu.Unlock()

	defer func() {
		x.mu.Lock()
		delete(x.inflight, slot)
		x.mu.Unlock()
		close(done)
	}()

	sigs, err := x.client.GetBlockSignatures(ctx, slot)
	m := make(map[domain.Signature]int)
	if err == nil {
		for i, s := range sigs {
			m[s] = i
		}
		x.cache.Add(slot, m)
	}
	return m
}
