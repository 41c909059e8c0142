package stake

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/bignum"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// VaultConfig names the vault a TokenVaultIndexer watches.
type VaultConfig struct {
	VaultID            domain.PubKey // scanAddress subscribed for live logs
	Mint               domain.PubKey // the staked token's mint
	ProgramID          domain.PubKey // the stake program, to verify a touch
	SignatureLookback  int           // fallback page size when no watermark exists
	RecoverConcurrency int
}

func (c VaultConfig) withDefaults() VaultConfig {
	if c.SignatureLookback <= 0 {
		c.SignatureLookback = 200
	}
	if c.RecoverConcurrency <= 0 {
		c.RecoverConcurrency = 4
	}
	return c
}

// TokenVaultIndexer derives per-owner stake balances from token
// balance deltas on a single vault's mint.
type TokenVaultIndexer struct {
	cfg    VaultConfig
	client rpcclient.Client
	writer Writer
	reader Reader
	log    *logrus.Logger

	mu             sync.Mutex
	byOwner        map[domain.PubKey]*big.Int
	dirty          map[domain.PubKey]struct{}
	seenSignatures map[domain.Signature]struct{}
}

// NewTokenVaultIndexer constructs an indexer for one vault.
func NewTokenVaultIndexer(cfg VaultConfig, client rpcclient.Client, writer Writer, reader Reader, log *logrus.Logger) *TokenVaultIndexer {
	return &TokenVaultIndexer{
		cfg:            cfg.withDefaults(),
		client:         client,
		writer:         writer,
		reader:         reader,
		log:            log,
		byOwner:        make(map[domain.PubKey]*big.Int),
		dirty:          make(map[domain.PubKey]struct{}),
		seenSignatures: make(map[domain.Signature]struct{}),
	}
}

// Boot hydrates in-memory state from persistence, then recovers any
// transactions missed between the last persisted event and now.
func (idx *TokenVaultIndexer) Boot(ctx context.Context) error {
	rows, err := idx.reader.LoadStakes(ctx, idx.cfg.VaultID)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	for _, r := range rows {
		idx.byOwner[r.Owner] = r.BalanceRaw
	}
	idx.mu.Unlock()

	seen, err := idx.reader.LoadSeenSignatures(ctx, idx.cfg.VaultID)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.seenSignatures = seen
	idx.mu.Unlock()

	return idx.recoverMissed(ctx)
}

// recoverMissed walks signatures strictly newer than the last
// persisted event's slot (or the configured lookback window if no
// watermark exists), filters to those mentioning the stake program,
// and applies their deltas with bounded concurrency.
func (idx *TokenVaultIndexer) recoverMissed(ctx context.Context) error {
	watermark, hasWatermark, err := idx.reader.LastEventSlot(ctx, idx.cfg.VaultID)
	if err != nil {
		return err
	}

	var candidates []rpcclient.SignatureInfo
	var before domain.Signature
	for {
		page, err := idx.client.GetSignaturesForAddress(ctx, idx.cfg.VaultID, rpcclient.SignaturesOpts{
			Limit:  idx.cfg.SignatureLookback,
			Before: before,
		})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		exhausted := false
		for _, s := range page {
			if hasWatermark && s.Slot <= watermark {
				exhausted = true
				continue
			}
			candidates = append(candidates, s)
		}
		if !hasWatermark || exhausted || len(page) < idx.cfg.SignatureLookback {
			break
		}
		before = page[len(page)-1].Signature
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.RecoverConcurrency)
	for i := len(candidates) - 1; i >= 0; i-- {
		sig := candidates[i].Signature
		g.Go(func() error {
			tx, err := idx.client.GetTransaction(gctx, sig)
			if err != nil {
				return err
			}
			if !mentionsProgram(tx.LogMessages, idx.cfg.ProgramID) {
				return nil
			}
			return idx.processSignature(gctx, sig)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return idx.Flush(ctx)
}

// RunLive subscribes to the vault's log stream and applies every
// notification's deltas as it arrives, flushing periodically.
func (idx *TokenVaultIndexer) RunLive(ctx context.Context, flushInterval time.Duration) error {
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	sub, err := idx.client.SubscribeLogs(ctx, idx.cfg.VaultID)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = idx.Flush(context.Background())
			return ctx.Err()
		case n, ok := <-sub.Notifications():
			if !ok {
				return nil
			}
			if !mentionsProgram(n.Logs, idx.cfg.ProgramID) {
				continue
			}
			if err := idx.processSignature(ctx, n.Signature); err != nil && !rpcclient.IsTransient(err) {
				idx.log.WithError(err).WithField("sig", n.Signature).Error("stake: live processing failed")
			}
		case <-ticker.C:
			if err := idx.Flush(ctx); err != nil {
				idx.log.WithError(err).Warn("stake: flush failed")
			}
		}
	}
}

func mentionsProgram(logs []string, programID domain.PubKey) bool {
	needle := strings.ToLower(string(programID))
	for _, l := range logs {
		if strings.Contains(strings.ToLower(l), needle) {
			return true
		}
	}
	return false
}

func (idx *TokenVaultIndexer) processSignature(ctx context.Context, sig domain.Signature) error {
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

	deltas := computeStakeDeltas(tx, idx.cfg.Mint, idx.cfg.VaultID)
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.seenSignatures[sig]; ok {
		return nil
	}
	if len(deltas) == 0 {
		idx.seenSignatures[sig] = struct{}{}
		return nil
	}

	for owner, change := range deltas {
		cur := idx.byOwner[owner]
		if cur == nil {
			cur = big.NewInt(0)
		}
		after := new(big.Int).Add(cur, change)

		if err := idx.writer.InsertStakeEvent(ctx, StakeEventRow{
			VaultID:         idx.cfg.VaultID,
			Signature:       sig,
			Owner:           owner,
			Slot:            tx.Slot,
			BlockTime:       blockTimeOr(tx.BlockTime),
			DeltaRaw:        change,
			BalanceAfterRaw: after,
		}); err != nil {
			idx.log.WithError(err).WithField("owner", owner).Warn("stake: event persist failed, applying anyway")
		}

		idx.byOwner[owner] = after
		idx.dirty[owner] = struct{}{}
	}
	idx.seenSignatures[sig] = struct{}{}
	return nil
}

// Flush upserts/deletes every dirty owner's balance, then updates the
// vault-wide totals.
func (idx *TokenVaultIndexer) Flush(ctx context.Context) error {
	idx.mu.Lock()
	if len(idx.dirty) == 0 {
		idx.mu.Unlock()
		return nil
	}
	owners := make([]domain.PubKey, 0, len(idx.dirty))
	for o := range idx.dirty {
		owners = append(owners, o)
	}
	idx.dirty = make(map[domain.PubKey]struct{})
	idx.mu.Unlock()

	for _, owner := range owners {
		idx.mu.Lock()
		bal := idx.byOwner[owner]
		idx.mu.Unlock()

		if bal == nil || bal.Sign() <= 0 {
			if err := idx.writer.DeleteStake(ctx, idx.cfg.VaultID, owner); err != nil {
				idx.log.WithError(err).WithField("owner", owner).Error("stake: delete failed")
			}
			idx.mu.Lock()
			delete(idx.byOwner, owner)
			idx.mu.Unlock()
			continue
		}
		if err := idx.writer.UpsertStake(ctx, StakeRow{VaultID: idx.cfg.VaultID, Owner: owner, BalanceRaw: bal}); err != nil {
			idx.log.WithError(err).WithField("owner", owner).Error("stake: upsert failed")
		}
	}

	idx.mu.Lock()
	holders := len(idx.byOwner)
	total := big.NewInt(0)
	for _, bal := range idx.byOwner {
		total.Add(total, bal)
	}
	idx.mu.Unlock()

	return idx.writer.UpdateVaultTotals(ctx, idx.cfg.VaultID, holders, total)
}

// computeStakeDeltas applies the delta rule of the token-vault stake
// algorithm: for every (accountIndex, owner, mint) entry matching the
// vault's mint, stakedChange = -(post - pre) — a balance decrease is a
// stake deposit, an increase is a withdrawal. The vault's own token
// account mirrors every owner movement and is excluded so it never
// shows up as an owner of itself.
func computeStakeDeltas(tx *domain.Transaction, mint, vault domain.PubKey) map[domain.PubKey]*big.Int {
	pre := map[int]domain.TokenBalance{}
	for _, b := range tx.PreBalances {
		if b.Mint == mint {
			pre[b.AccountIndex] = b
		}
	}
	post := map[int]domain.TokenBalance{}
	for _, b := range tx.PostBalances {
		if b.Mint == mint {
			post[b.AccountIndex] = b
		}
	}
	idxSet := map[int]struct{}{}
	for i := range pre {
		idxSet[i] = struct{}{}
	}
	for i := range post {
		idxSet[i] = struct{}{}
	}

	out := map[domain.PubKey]*big.Int{}
	for i := range idxSet {
		if i >= 0 && i < len(tx.AccountKeys) && tx.AccountKeys[i] == vault {
			continue
		}
		preBal, postBal := pre[i], post[i]
		owner := postBal.Owner
		if owner == "" {
			owner = preBal.Owner
		}
		if owner == "" || owner == vault {
			continue
		}
		preAtoms, _ := bignum.ParseAtoms(preBal.AmountAtoms)
		postAtoms, _ := bignum.ParseAtoms(postBal.AmountAtoms)
		if preAtoms == nil {
			preAtoms = big.NewInt(0)
		}
		if postAtoms == nil {
			postAtoms = big.NewInt(0)
		}
		delta := bignum.Delta(preAtoms, postAtoms)
		if delta.Sign() == 0 {
			continue
		}
		change := new(big.Int).Neg(delta)
		if cur, ok := out[owner]; ok {
			cur.Add(cur, change)
		} else {
			out[owner] = change
		}
	}
	return out
}

func blockTimeOr(bt *int64) int64 {
	if bt != nil {
		return *bt
	}
	return time.Now().Unix()
}
