package stake

import (
	"context"
	"math/big"
	"sync"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// fakeStore is a single in-memory double satisfying both Writer and
// Reader, used across this package's tests.
type fakeStore struct {
	mu sync.Mutex

	events       []StakeEventRow
	stakes       map[domain.PubKey]map[domain.PubKey]*big.Int
	deleted      []domain.PubKey
	holders      int
	total        *big.Int
	nftStakes    []NFTStakeRow
	seen         map[domain.Signature]struct{}
	watermark    uint64
	hasWatermark bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stakes: make(map[domain.PubKey]map[domain.PubKey]*big.Int),
		seen:   make(map[domain.Signature]struct{}),
	}
}

func (f *fakeStore) InsertStakeEvent(_ context.Context, rec StakeEventRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, rec)
	return nil
}

func (f *fakeStore) UpsertStake(_ context.Context, row StakeRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stakes[row.VaultID] == nil {
		f.stakes[row.VaultID] = map[domain.PubKey]*big.Int{}
	}
	f.stakes[row.VaultID][row.Owner] = row.BalanceRaw
	return nil
}

func (f *fakeStore) DeleteStake(_ context.Context, vaultID, owner domain.PubKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stakes[vaultID], owner)
	f.deleted = append(f.deleted, owner)
	return nil
}

func (f *fakeStore) UpdateVaultTotals(_ context.Context, _ domain.PubKey, holders int, total *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holders = holders
	f.total = total
	return nil
}

func (f *fakeStore) UpsertNFTStake(_ context.Context, row NFTStakeRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nftStakes = append(f.nftStakes, row)
	return nil
}

func (f *fakeStore) LoadStakes(_ context.Context, vaultID domain.PubKey) ([]StakeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []StakeRow
	for owner, bal := range f.stakes[vaultID] {
		out = append(out, StakeRow{VaultID: vaultID, Owner: owner, BalanceRaw: bal})
	}
	return out, nil
}

func (f *fakeStore) LoadSeenSignatures(context.Context, domain.PubKey) (map[domain.Signature]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.Signature]struct{}, len(f.seen))
	for k := range f.seen {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) LastEventSlot(context.Context, domain.PubKey) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watermark, f.hasWatermark, nil
}

func (f *fakeStore) LoadActiveNFTStakes(context.Context) ([]NFTStakeRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []NFTStakeRow
	for _, row := range f.nftStakes {
		if row.Status == NFTStatusActive && row.UnlockAtSec != nil {
			out = append(out, row)
		}
	}
	return out, nil
}
