package persist

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/stake"
)

// Memory is an in-memory StateStore double for tests: plain maps
// behind a mutex, no persistence semantics beyond what the interface
// promises.
type Memory struct {
	mu sync.Mutex

	pools   map[domain.PubKey]*domain.Pool
	trades  map[string]*domain.Trade // key: signature|poolId
	events  map[string]domain.EventRecord
	candles map[string]*domain.Candle

	stakes       map[string]stake.StakeRow
	stakeEvents  map[string]stake.StakeEventRow
	vaultHolders map[domain.PubKey]int
	vaultTotals  map[domain.PubKey]*big.Int
	nftStakes    map[string]stake.NFTStakeRow
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		pools:        map[domain.PubKey]*domain.Pool{},
		trades:       map[string]*domain.Trade{},
		events:       map[string]domain.EventRecord{},
		candles:      map[string]*domain.Candle{},
		stakes:       map[string]stake.StakeRow{},
		stakeEvents:  map[string]stake.StakeEventRow{},
		vaultHolders: map[domain.PubKey]int{},
		vaultTotals:  map[domain.PubKey]*big.Int{},
		nftStakes:    map[string]stake.NFTStakeRow{},
	}
}

func (m *Memory) Close() {}

func (m *Memory) PersistEvents(_ context.Context, tx *domain.Transaction, programID domain.PubKey, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	blockTime := int64(0)
	if tx.BlockTime != nil {
		blockTime = *tx.BlockTime
	}
	if len(events) == 0 {
		key := eventKey(programID, tx.Slot, 0, 0)
		if _, ok := m.events[key]; !ok {
			m.events[key] = domain.EventRecord{
				Signature: tx.Signature, Slot: tx.Slot, BlockTime: blockTime,
				ProgramID: programID, EventType: "tx", Logs: tx.LogMessages,
			}
		}
		return nil
	}
	for i, ev := range events {
		key := eventKey(programID, tx.Slot, 0, i)
		if _, ok := m.events[key]; ok {
			continue
		}
		m.events[key] = domain.EventRecord{
			Signature: tx.Signature, Slot: tx.Slot, BlockTime: blockTime,
			ProgramID: programID, EventType: ev.Name, EventIndex: i, EventData: ev.Data, Logs: tx.LogMessages,
		}
	}
	return nil
}

func eventKey(programID domain.PubKey, slot uint64, txnIndex, eventIndex int) string {
	return string(programID) + "|" + big.NewInt(int64(slot)).String() + "|" + big.NewInt(int64(txnIndex)).String() + "|" + big.NewInt(int64(eventIndex)).String()
}

func (m *Memory) UpsertPoolState(_ context.Context, _ domain.PubKey, pool *domain.Pool, _ domain.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.pools[pool.PoolID]
	if cur != nil && cur.LastUpdateSlot >= pool.LastUpdateSlot {
		return nil
	}
	cp := *pool
	m.pools[pool.PoolID] = &cp
	return nil
}

// UpdatePoolFees is a no-op here: domain.Pool carries vault keys, not
// their UI balances, so the fake has nothing to record beyond
// confirming the pool row exists.
func (m *Memory) UpdatePoolFees(_ context.Context, poolID domain.PubKey, _ domain.FeeUI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[poolID]; !ok {
		m.pools[poolID] = &domain.Pool{PoolID: poolID}
	}
	return nil
}

// UpdatePoolLiquidity mirrors UpdatePoolFees: the fake only confirms
// the pool row exists.
func (m *Memory) UpdatePoolLiquidity(_ context.Context, poolID domain.PubKey, _, _ *big.Float) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[poolID]; !ok {
		m.pools[poolID] = &domain.Pool{PoolID: poolID}
	}
	return nil
}

func (m *Memory) UpsertCandles(_ context.Context, candles []*domain.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range candles {
		key := candleKey(c.PoolID, c.Timeframe, c.BucketStartSec)
		cp := *c
		m.candles[key] = &cp
	}
	return nil
}

func candleKey(pool domain.PubKey, tf domain.Timeframe, bucket int64) string {
	return string(pool) + "|" + string(tf) + "|" + big.NewInt(bucket).String()
}

func (m *Memory) InsertTrade(_ context.Context, t *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(t.Signature) + "|" + string(t.PoolID)
	if _, ok := m.trades[key]; ok {
		return nil
	}
	cp := *t
	m.trades[key] = &cp
	return nil
}

func (m *Memory) InsertStakeEvent(_ context.Context, rec stake.StakeEventRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(rec.VaultID) + "|" + string(rec.Signature) + "|" + string(rec.Owner)
	if _, ok := m.stakeEvents[key]; ok {
		return nil
	}
	m.stakeEvents[key] = rec
	return nil
}

func (m *Memory) UpsertStake(_ context.Context, row stake.StakeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stakes[string(row.VaultID)+"|"+string(row.Owner)] = row
	return nil
}

func (m *Memory) DeleteStake(_ context.Context, vaultID, owner domain.PubKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stakes, string(vaultID)+"|"+string(owner))
	return nil
}

func (m *Memory) UpdateVaultTotals(_ context.Context, vaultID domain.PubKey, holders int, totalStakedRaw *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vaultHolders[vaultID] = holders
	m.vaultTotals[vaultID] = totalStakedRaw
	return nil
}

func (m *Memory) UpsertNFTStake(_ context.Context, row stake.NFTStakeRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nftStakes[string(row.NFTMint)+"|"+string(row.Owner)] = row
	return nil
}

func (m *Memory) LoadStakes(_ context.Context, vaultID domain.PubKey) ([]stake.StakeRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []stake.StakeRow
	for _, row := range m.stakes {
		if row.VaultID == vaultID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) LoadSeenSignatures(_ context.Context, vaultID domain.PubKey) (map[domain.Signature]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Signature]struct{})
	for _, rec := range m.stakeEvents {
		if rec.VaultID == vaultID {
			out[rec.Signature] = struct{}{}
		}
	}
	return out, nil
}

func (m *Memory) LastEventSlot(_ context.Context, vaultID domain.PubKey) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max uint64
	found := false
	for _, rec := range m.stakeEvents {
		if rec.VaultID == vaultID && rec.Slot >= max {
			max = rec.Slot
			found = true
		}
	}
	return max, found, nil
}

func (m *Memory) LoadActiveNFTStakes(_ context.Context) ([]stake.NFTStakeRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []stake.NFTStakeRow
	for _, row := range m.nftStakes {
		if row.Status == stake.NFTStatusActive && row.UnlockAtSec != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) Pool(_ context.Context, poolID domain.PubKey) (*domain.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) RecentTrades(_ context.Context, poolID domain.PubKey, limit int) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Trade
	for _, t := range m.trades {
		if t.PoolID == poolID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot > out[j].Slot })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RecentCandles(_ context.Context, poolID domain.PubKey, tf domain.Timeframe, limit int) ([]*domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Candle
	for _, c := range m.candles {
		if c.PoolID == poolID && c.Timeframe == tf {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStartSec < out[j].BucketStartSec })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *Memory) ListEvents(_ context.Context, filter EventFilter) ([]domain.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EventRecord
	for _, rec := range m.events {
		if filter.ProgramID != "" && rec.ProgramID != filter.ProgramID {
			continue
		}
		if filter.EventType != "" && rec.EventType != filter.EventType {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot > out[j].Slot })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
