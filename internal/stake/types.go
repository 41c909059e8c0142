// Package stake implements the two stake indexers: a delta-rule
// token-vault indexer and a status-transition NFT-stake indexer. Both
// share a boot sequence (hydrate, recover missed, subscribe live) and
// an atomic, events-before-mutation flush discipline.
package stake

import (
	"context"
	"math/big"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// StakeRow is one (vaultId, owner) ownership balance.
type StakeRow struct {
	VaultID    domain.PubKey
	Owner      domain.PubKey
	BalanceRaw *big.Int
}

// StakeEventRow is one persisted stake delta, keyed on
// (vaultId, signature, owner).
type StakeEventRow struct {
	VaultID         domain.PubKey
	Signature       domain.Signature
	Owner           domain.PubKey
	Slot            uint64
	BlockTime       int64
	DeltaRaw        *big.Int
	BalanceAfterRaw *big.Int
}

// NFTStakeStatus is the fixed set of lifecycle states an NFT stake
// transitions through.
type NFTStakeStatus string

const (
	NFTStatusActive    NFTStakeStatus = "active"
	NFTStatusUnlocked  NFTStakeStatus = "unlocked"
	NFTStatusWithdrawn NFTStakeStatus = "withdrawn"
)

// NFTStakeRow is one (nftMint, owner) row. AssociatedPool is empty
// when the stake is not tied to a pool.
type NFTStakeRow struct {
	NFTMint         domain.PubKey
	Owner           domain.PubKey
	StakeAccount    domain.PubKey
	Status          NFTStakeStatus
	StakedAtSec     int64
	LockDurationSec int64
	UnlockAtSec     *int64
	AssociatedPool  domain.PubKey
}

// Writer persists the outcomes of both indexers.
type Writer interface {
	InsertStakeEvent(ctx context.Context, rec StakeEventRow) error
	UpsertStake(ctx context.Context, row StakeRow) error
	DeleteStake(ctx context.Context, vaultID, owner domain.PubKey) error
	UpdateVaultTotals(ctx context.Context, vaultID domain.PubKey, holders int, totalStakedRaw *big.Int) error
	UpsertNFTStake(ctx context.Context, row NFTStakeRow) error
}

// Reader hydrates an indexer's boot state from persistence.
type Reader interface {
	LoadStakes(ctx context.Context, vaultID domain.PubKey) ([]StakeRow, error)
	LoadSeenSignatures(ctx context.Context, vaultID domain.PubKey) (map[domain.Signature]struct{}, error)
	LastEventSlot(ctx context.Context, vaultID domain.PubKey) (uint64, bool, error)
	LoadActiveNFTStakes(ctx context.Context) ([]NFTStakeRow, error)
}
