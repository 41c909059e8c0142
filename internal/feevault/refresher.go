// Package feevault implements the Fee-Vault Refresher: a per-pool
// debounce + minimum-interval state machine that batch-reads the
// creator/holders/NFT fee vaults after a burst of trades settles.
package feevault

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/bignum"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/poolcache"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// FeeWriter persists a pool's refreshed fee-vault balances and the
// reserve-derived liquidity/TVL snapshot taken in the same batch read.
type FeeWriter interface {
	UpdatePoolFees(ctx context.Context, poolID domain.PubKey, fees domain.FeeUI) error
	UpdatePoolLiquidity(ctx context.Context, poolID domain.PubKey, liquidityQuote, tvlLockedQuote *big.Float) error
}

// Config carries the debounce/floor parameters of the state machine.
type Config struct {
	DebounceMs    int64
	MinIntervalMs int64
}

func (c Config) withDefaults() Config {
	if c.DebounceMs <= 0 {
		c.DebounceMs = 500
	}
	if c.MinIntervalMs <= 0 {
		c.MinIntervalMs = 1000
	}
	return c
}

type poolState struct {
	mu            sync.Mutex
	lastRefreshMs int64
	timer         *time.Timer
}

// Refresher owns one poolState per pool and drives refresh actions
// against the shared RPC client, so trade polling and fee reads share
// one process-wide rate budget.
type Refresher struct {
	cfg    Config
	client rpcclient.Client
	pools  *poolcache.Reader
	writer FeeWriter
	log    *logrus.Logger

	mu     sync.Mutex
	states map[domain.PubKey]*poolState
}

// NewRefresher constructs a Refresher.
func NewRefresher(client rpcclient.Client, pools *poolcache.Reader, writer FeeWriter, log *logrus.Logger, cfg Config) *Refresher {
	return &Refresher{
		cfg:    cfg.withDefaults(),
		client: client,
		pools:  pools,
		writer: writer,
		log:    log,
		states: make(map[domain.PubKey]*poolState),
	}
}

// Run subscribes to the trade store and triggers OnTrade for every
// trade's pool as it arrives. It runs until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, store *tradestore.Store) error {
	trades := store.Subscribe(256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			r.OnTrade(ctx, t.PoolID)
		}
	}
}

func (r *Refresher) stateFor(pool domain.PubKey) *poolState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.states[pool]
	if s == nil {
		s = &poolState{}
		r.states[pool] = s
	}
	return s
}

// OnTrade implements the debounce/floor scheduling rule: at most one
// refresh per pool fires per MinIntervalMs window, while bursts of
// trades within DebounceMs of each other collapse into a single
// trailing refresh.
func (r *Refresher) OnTrade(ctx context.Context, pool domain.PubKey) {
	s := r.stateFor(pool)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	fire := func() { r.refresh(ctx, pool, s) }

	if now-s.lastRefreshMs < r.cfg.MinIntervalMs && s.timer == nil {
		delay := time.Duration(r.cfg.MinIntervalMs-(now-s.lastRefreshMs)) * time.Millisecond
		s.timer = time.AfterFunc(delay, fire)
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(time.Duration(r.cfg.DebounceMs)*time.Millisecond, fire)
}

func (r *Refresher) refresh(ctx context.Context, pool domain.PubKey, s *poolState) {
	s.mu.Lock()
	s.timer = nil
	s.mu.Unlock()

	p, err := r.pools.ReadPool(ctx, pool)
	if err != nil {
		r.log.WithError(err).WithField("pool", pool).Warn("feevault: refresh skipped, pool unavailable")
		return
	}

	// one batch read covers the three fee vaults plus both reserve
	// vaults, so liquidity/TVL ride along on the same RPC budget.
	vaults := []domain.PubKey{p.CreatorFeeVault, p.HoldersFeeVault, p.NFTFeeVault, p.BaseVault, p.QuoteVault}
	raws, err := r.client.GetMultipleAccounts(ctx, vaults)
	if err != nil {
		r.log.WithError(err).WithField("pool", pool).Warn("feevault: batch read failed")
		return
	}
	if len(raws) < len(vaults) {
		r.log.WithField("pool", pool).Warn("feevault: short batch response")
		return
	}

	fees := domain.FeeUI{Creator: bignum.Zero(), Holders: bignum.Zero(), NFT: bignum.Zero()}
	dest := []*big.Float{}
	for i, raw := range raws[:3] {
		ui, err := r.vaultUI(ctx, raw)
		if err != nil {
			r.log.WithError(err).WithField("pool", pool).WithField("vault_idx", i).Debug("feevault: vault decode failed")
			ui = bignum.Zero()
		}
		dest = append(dest, ui)
	}
	if len(dest) == 3 {
		fees.Creator, fees.Holders, fees.NFT = dest[0], dest[1], dest[2]
	}
	fees.LastRefreshMs = time.Now().UnixMilli()

	if err := r.writer.UpdatePoolFees(ctx, pool, fees); err != nil {
		r.log.WithError(err).WithField("pool", pool).Error("feevault: write failed")
	}

	if len(raws) == 5 {
		liquidity, tvl := reserveLiquidity(p, raws[3], raws[4])
		if err := r.writer.UpdatePoolLiquidity(ctx, pool, liquidity, tvl); err != nil {
			r.log.WithError(err).WithField("pool", pool).Error("feevault: liquidity write failed")
		}
	}

	s.mu.Lock()
	s.lastRefreshMs = time.Now().UnixMilli()
	s.mu.Unlock()
}

// reserveLiquidity derives the quote-denominated reserve depth and TVL
// from the two reserve vaults' balances and the pool's current price:
// liquidity is the quote-side reserve, TVL values the base side at the
// pool price and adds the quote side.
func reserveLiquidity(p *domain.Pool, baseRaw, quoteRaw []byte) (liquidity, tvl *big.Float) {
	baseUI := bignum.Zero()
	if baseRaw != nil {
		if _, amount, err := poolcache.DecodeTokenAccount(baseRaw); err == nil {
			baseUI = bignum.ToUI(amount, p.BaseDecimals)
		}
	}
	quoteUI := bignum.Zero()
	if quoteRaw != nil {
		if _, amount, err := poolcache.DecodeTokenAccount(quoteRaw); err == nil {
			quoteUI = bignum.ToUI(amount, p.QuoteDecimals)
		}
	}
	price := poolcache.PriceAsFloat(p.PriceQ64_64)
	baseInQuote := new(big.Float).SetPrec(200).Mul(baseUI, price)
	return quoteUI, bignum.Add(baseInQuote, quoteUI)
}

func (r *Refresher) vaultUI(ctx context.Context, raw []byte) (*big.Float, error) {
	if raw == nil {
		return bignum.Zero(), nil
	}
	mint, amount, err := poolcache.DecodeTokenAccount(raw)
	if err != nil {
		return nil, err
	}
	decimals, err := r.pools.MintDecimals(ctx, []domain.PubKey{mint})
	if err != nil {
		return nil, err
	}
	return bignum.ToUI(amount, decimals[mint]), nil
}
