// Package poolcache implements the Pool Reader & Cache (C4): it
// deserializes the on-chain pool account layout, resolves vault/mint
// decimals, and caches per-pool reads with a short TTL.
package poolcache

import (
	"context"
	"fmt"
	"math/big"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/holiman/uint256"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// DefaultTTL is the per-pool cache lifetime (10-15 seconds); picked at
// the middle of that range.
const DefaultTTL = 12 * time.Second

// mintTTL is longer than DefaultTTL because decimals never change for
// a mint once created.
const mintTTL = 10 * time.Minute

// Reader reads and caches pool accounts. It intentionally does not
// single-flight concurrent misses on the same key: the first caller
// that misses issues the read; others that arrive during the read may
// repeat the work, which is acceptable given the short TTL and how
// rare misses are.
type Reader struct {
	client rpcclient.Client
	pools  *lru.LRU[domain.PubKey, *domain.Pool]
	mints  *lru.LRU[domain.PubKey, int]

	// Hits/Misses, when set, are incremented on every ReadPool cache
	// hit/miss; callers wire their process's counters here rather than
	// this package depending on a metrics library directly.
	Hits   interface{ Inc() }
	Misses interface{ Inc() }
}

// NewReader constructs a Reader backed by an expirable LRU cache.
func NewReader(client rpcclient.Client, ttl time.Duration) *Reader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Reader{
		client: client,
		pools:  lru.NewLRU[domain.PubKey, *domain.Pool](4096, nil, ttl),
		mints:  lru.NewLRU[domain.PubKey, int](8192, nil, mintTTL),
	}
}

// ReadPool returns the pool's current on-chain state, reading through
// the cache on a miss. Failures are surfaced to the caller; the
// ingestion engine must treat them as "retry later" and must not mark
// the signature processed.
func (r *Reader) ReadPool(ctx context.Context, poolID domain.PubKey) (*domain.Pool, error) {
	if p, ok := r.pools.Get(poolID); ok {
		if r.Hits != nil {
			r.Hits.Inc()
		}
		return p, nil
	}
	if r.Misses != nil {
		r.Misses.Inc()
	}
	raw, err := r.client.GetAccountInfo(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("poolcache: read pool %s: %w", poolID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("poolcache: pool %s has no account data", poolID)
	}
	pool, err := DecodePoolAccount(poolID, raw)
	if err != nil {
		return nil, fmt.Errorf("poolcache: decode pool %s: %w", poolID, err)
	}
	if err := r.hydrateDecimals(ctx, pool); err != nil {
		return nil, fmt.Errorf("poolcache: decimals for pool %s: %w", poolID, err)
	}
	r.pools.Add(poolID, pool)
	return pool, nil
}

// hydrateDecimals batch-reads the base/quote mints to resolve
// decimals. Values already carried in the decoded account (BaseDecimals > 0)
// are left untouched — the account layout encodes them directly when
// present, and a batch read is only needed when it doesn't.
func (r *Reader) hydrateDecimals(ctx context.Context, pool *domain.Pool) error {
	need := []domain.PubKey{}
	if pool.BaseDecimals <= 0 {
		need = append(need, pool.BaseMint)
	}
	if pool.QuoteDecimals <= 0 {
		need = append(need, pool.QuoteMint)
	}
	if len(need) == 0 {
		return nil
	}
	resolved, err := r.MintDecimals(ctx, need)
	if err != nil {
		return err
	}
	if pool.BaseDecimals <= 0 {
		pool.BaseDecimals = resolved[pool.BaseMint]
	}
	if pool.QuoteDecimals <= 0 {
		pool.QuoteDecimals = resolved[pool.QuoteMint]
	}
	return nil
}

// MintDecimals resolves decimals for a set of mints, consulting and
// populating the mint cache, batching any misses into one
// GetMultipleAccounts call.
func (r *Reader) MintDecimals(ctx context.Context, mints []domain.PubKey) (map[domain.PubKey]int, error) {
	out := map[domain.PubKey]int{}
	var miss []domain.PubKey
	for _, m := range mints {
		if d, ok := r.mints.Get(m); ok {
			out[m] = d
			continue
		}
		miss = append(miss, m)
	}
	if len(miss) == 0 {
		return out, nil
	}
	accounts, err := r.client.GetMultipleAccounts(ctx, miss)
	if err != nil {
		return nil, err
	}
	for i, raw := range accounts {
		d, err := DecodeMintDecimals(raw)
		if err != nil {
			continue
		}
		out[miss[i]] = d
		r.mints.Add(miss[i], d)
	}
	return out, nil
}

// PriceAsFloat converts a pool's raw Q64.64 fixed-point price into a
// *big.Float: the stored integer is round(p * 2^64).
func PriceAsFloat(raw *big.Int) *big.Float {
	if raw == nil {
		return big.NewFloat(0)
	}
	u, overflow := uint256.FromBig(raw)
	if overflow {
		// price exceeds 256 bits: fall back to plain big.Float math,
		// which cannot happen for any realistic Q64.64 price but keeps
		// this total rather than partial.
		f := new(big.Float).SetInt(raw)
		return new(big.Float).Quo(f, q64Scale())
	}
	f := u.ToBig()
	out := new(big.Float).SetPrec(200).SetInt(f)
	return out.Quo(out, q64Scale())
}

func q64Scale() *big.Float {
	scale := new(big.Int).Lsh(big.NewInt(1), 64) // 2^64
	return new(big.Float).SetPrec(200).SetInt(scale)
}
