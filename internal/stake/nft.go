package stake

import (
	"context"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/decoder"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// NFTVaultConfig names the NFT-stake vault a NFTIndexer watches.
type NFTVaultConfig struct {
	ScanAddress        domain.PubKey
	UnlockWindowSec    int64
	SignatureLookback  int
	RecoverConcurrency int
}

func (c NFTVaultConfig) withDefaults() NFTVaultConfig {
	if c.SignatureLookback <= 0 {
		c.SignatureLookback = 200
	}
	if c.RecoverConcurrency <= 0 {
		c.RecoverConcurrency = 4
	}
	return c
}

// NFTIndexer derives NFT-stake status transitions from decoded
// NftStaked/NftUnstaked events rather than balance deltas.
type NFTIndexer struct {
	cfg    NFTVaultConfig
	client rpcclient.Client
	writer Writer
	reader Reader
	log    *logrus.Logger

	mu             sync.Mutex
	seenSignatures map[domain.Signature]struct{}
}

// NewNFTIndexer constructs an indexer for one NFT-stake vault.
func NewNFTIndexer(cfg NFTVaultConfig, client rpcclient.Client, writer Writer, reader Reader, log *logrus.Logger) *NFTIndexer {
	return &NFTIndexer{
		cfg:            cfg.withDefaults(),
		client:         client,
		writer:         writer,
		reader:         reader,
		log:            log,
		seenSignatures: make(map[domain.Signature]struct{}),
	}
}

// Boot hydrates seen signatures and recovers any missed transactions
// since the last persisted event's slot.
func (idx *NFTIndexer) Boot(ctx context.Context) error {
	seen, err := idx.reader.LoadSeenSignatures(ctx, idx.cfg.ScanAddress)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.seenSignatures = seen
	idx.mu.Unlock()

	watermark, hasWatermark, err := idx.reader.LastEventSlot(ctx, idx.cfg.ScanAddress)
	if err != nil {
		return err
	}

	sigs, err := idx.client.GetSignaturesForAddress(ctx, idx.cfg.ScanAddress, rpcclient.SignaturesOpts{Limit: idx.cfg.SignatureLookback})
	if err != nil {
		return err
	}
	var candidates []domain.Signature
	for _, s := range sigs {
		if hasWatermark && s.Slot <= watermark {
			continue
		}
		candidates = append(candidates, s.Signature)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.RecoverConcurrency)
	for i := len(candidates) - 1; i >= 0; i-- {
		sig := candidates[i]
		g.Go(func() error { return idx.processSignature(gctx, sig) })
	}
	return g.Wait()
}

// RunLive subscribes to the vault's log stream and applies status
// transitions as notifications arrive.
func (idx *NFTIndexer) RunLive(ctx context.Context) error {
	sub, err := idx.client.SubscribeLogs(ctx, idx.cfg.ScanAddress)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-sub.Notifications():
			if !ok {
				return nil
			}
			if err := idx.processSignature(ctx, n.Signature); err != nil && !rpcclient.IsTransient(err) {
				idx.log.WithError(err).WithField("sig", n.Signature).Error("stake: nft live processing failed")
			}
		}
	}
}

func (idx *NFTIndexer) processSignature(ctx context.Context, sig domain.Signature) error {
	idx.mu.Lock()
	if _, ok := idx.seenSignatures[sig]; ok {
		idx.mu.Unlock()
		return nil
	}
	idx.mu.Unlock()

	tx, err := idx.client.GetTransaction(ctx, sig)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	if _, ok := idx.seenSignatures[sig]; ok {
		idx.mu.Unlock()
		return nil
	}
	idx.seenSignatures[sig] = struct{}{}
	idx.mu.Unlock()

	events := decoder.DecodeLogs(tx.LogMessages)
	for _, ev := range events {
		switch ev.Name {
		case "NftStaked":
			idx.applyStaked(ctx, tx, ev)
		case "NftUnstaked":
			idx.applyUnstaked(ctx, tx, ev)
		}
	}
	return nil
}

func (idx *NFTIndexer) applyStaked(ctx context.Context, tx *domain.Transaction, ev domain.Event) {
	mint, owner := eventMintOwner(ev)
	if mint == "" || owner == "" {
		return
	}
	row := NFTStakeRow{
		NFTMint:         mint,
		Owner:           owner,
		StakeAccount:    keyField(ev.Data, "stakeAccount"),
		Status:          NFTStatusActive,
		StakedAtSec:     blockTimeOr(tx.BlockTime),
		LockDurationSec: int64Field(ev.Data, "lockDurationSec"),
		AssociatedPool:  eventPool(ev),
	}
	// the event's own lock duration wins; the configured window is the
	// fallback for programs that don't emit one.
	dur := row.LockDurationSec
	if dur <= 0 {
		dur = idx.cfg.UnlockWindowSec
	}
	if dur > 0 {
		unlock := row.StakedAtSec + dur
		row.UnlockAtSec = &unlock
	}
	if err := idx.writer.UpsertNFTStake(ctx, row); err != nil {
		idx.log.WithError(err).WithField("mint", mint).Error("stake: nft upsert failed")
	}
}

func (idx *NFTIndexer) applyUnstaked(ctx context.Context, tx *domain.Transaction, ev domain.Event) {
	mint, owner := eventMintOwner(ev)
	if mint == "" || owner == "" {
		return
	}
	row := NFTStakeRow{
		NFTMint:     mint,
		Owner:       owner,
		Status:      NFTStatusWithdrawn,
		StakedAtSec: blockTimeOr(tx.BlockTime),
	}
	if err := idx.writer.UpsertNFTStake(ctx, row); err != nil {
		idx.log.WithError(err).WithField("mint", mint).Error("stake: nft unstake write failed")
	}
}

func eventMintOwner(ev domain.Event) (domain.PubKey, domain.PubKey) {
	return keyField(ev.Data, "nftMint"), keyField(ev.Data, "owner")
}

// eventPool resolves the pool an NFT stake is tied to, empty when the
// event carries none.
func eventPool(ev domain.Event) domain.PubKey {
	for _, key := range []string{"associatedPool", "pool", "poolId"} {
		if k := keyField(ev.Data, key); k != "" {
			return k
		}
	}
	return ""
}

func keyField(data map[string]any, key string) domain.PubKey {
	s, _ := data[key].(string)
	return domain.PubKey(s)
}

// int64Field reads a numeric payload field that may arrive as a JSON
// number or a decimal string.
func int64Field(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// CheckUnlocks transitions any active stake whose unlock time has
// passed into the unlocked status; callers run this on a timer since
// time-based transitions have no triggering transaction.
func (idx *NFTIndexer) CheckUnlocks(ctx context.Context, actives []NFTStakeRow, now int64) {
	for _, row := range actives {
		if row.Status != NFTStatusActive || row.UnlockAtSec == nil || *row.UnlockAtSec > now {
			continue
		}
		row.Status = NFTStatusUnlocked
		if err := idx.writer.UpsertNFTStake(ctx, row); err != nil {
			idx.log.WithError(err).WithField("mint", row.NFTMint).Error("stake: nft unlock transition failed")
		}
	}
}
