package rpcclient

import (
	"context"
	"sync"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// FakeClient is an in-memory Client double for tests: a struct of
// exported maps holding canned data, rather than a generated mock.
type FakeClient struct {
	mu sync.Mutex

	Signatures map[domain.PubKey][]SignatureInfo
	Txs        map[domain.Signature]*domain.Transaction
	Accounts   map[domain.PubKey][]byte
	Slot       uint64
	BlockTimes map[uint64]int64
	Blocks     map[uint64][]domain.Signature

	// NotFound marks signatures that should resolve as not-found
	// rather than succeed.
	NotFound map[domain.Signature]bool

	subs []*fakeSub
}

// NewFakeClient returns an empty FakeClient ready for a test to
// populate via its exported maps.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Signatures: map[domain.PubKey][]SignatureInfo{},
		Txs:        map[domain.Signature]*domain.Transaction{},
		Accounts:   map[domain.PubKey][]byte{},
		BlockTimes: map[uint64]int64{},
		Blocks:     map[uint64][]domain.Signature{},
		NotFound:   map[domain.Signature]bool{},
	}
}

func (f *FakeClient) GetSignaturesForAddress(_ context.Context, address domain.PubKey, opts SignaturesOpts) ([]SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.Signatures[address]
	start := 0
	if opts.Before != "" {
		for i, s := range all {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	out := make([]SignatureInfo, end-start)
	copy(out, all[start:end])
	return out, nil
}

func (f *FakeClient) GetTransaction(_ context.Context, sig domain.Signature) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NotFound[sig] {
		return nil, &transientErr{&TxNotFound{Signature: sig}}
	}
	tx, ok := f.Txs[sig]
	if !ok {
		return nil, &transientErr{&TxNotFound{Signature: sig}}
	}
	return tx, nil
}

func (f *FakeClient) GetAccountInfo(_ context.Context, pubkey domain.PubKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Accounts[pubkey], nil
}

func (f *FakeClient) GetMultipleAccounts(_ context.Context, pubkeys []domain.PubKey) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(pubkeys))
	for i, k := range pubkeys {
		out[i] = f.Accounts[k]
	}
	return out, nil
}

func (f *FakeClient) GetSlot(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Slot, nil
}

func (f *FakeClient) GetBlockTime(_ context.Context, slot uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.BlockTimes[slot], nil
}

func (f *FakeClient) GetBlockSignatures(_ context.Context, slot uint64) ([]domain.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Blocks[slot], nil
}

type fakeSub struct {
	ch     chan LogNotification
	closed bool
}

func (s *fakeSub) Notifications() <-chan LogNotification { return s.ch }
func (s *fakeSub) Unsubscribe() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (f *FakeClient) SubscribeLogs(context.Context, domain.PubKey) (LogSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{ch: make(chan LogNotification, 64)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// PushLog delivers a log notification to every open subscription,
// simulating the node's log stream for tests.
func (f *FakeClient) PushLog(n LogNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if !s.closed {
			s.ch <- n
		}
	}
}
