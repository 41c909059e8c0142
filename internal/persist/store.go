// Package persist implements the Event Persister (C11) and the
// Derived-State Persister (C12): the PostgreSQL sink for everything
// the rest of this module produces, plus the read paths the HTTP
// façade serves from.
package persist

import (
	"context"
	"math/big"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/stake"
)

// EventFilter narrows a read of dex_events for the HTTP façade.
type EventFilter struct {
	ProgramID domain.PubKey
	EventType string
	Limit     int
}

// StateStore is the full read/write contract every downstream worker
// and the HTTP façade need from persistence: one interface covering
// every table this system owns, implemented once by *Postgres and
// once by the in-memory fake used in tests.
type StateStore interface {
	// C11 — strict, idempotent append of decoded program events.
	PersistEvents(ctx context.Context, tx *domain.Transaction, programID domain.PubKey, events []domain.Event) error

	// C12 — derived pool/candle state, both slot-gated or
	// conflict-upserted so replays are safe.
	UpsertPoolState(ctx context.Context, programID domain.PubKey, pool *domain.Pool, lastTradeSig domain.Signature) error
	UpdatePoolFees(ctx context.Context, poolID domain.PubKey, fees domain.FeeUI) error
	UpdatePoolLiquidity(ctx context.Context, poolID domain.PubKey, liquidityQuote, tvlLockedQuote *big.Float) error
	UpsertCandles(ctx context.Context, candles []*domain.Candle) error

	// dex_trades — one row per (signature, poolId), conflict-idempotent.
	InsertTrade(ctx context.Context, t *domain.Trade) error

	// streamflow_vaults/stakes/events + nft_stakes (C10's sink).
	stake.Writer
	stake.Reader

	// Read paths for internal/httpapi.
	Pool(ctx context.Context, poolID domain.PubKey) (*domain.Pool, error)
	RecentTrades(ctx context.Context, poolID domain.PubKey, limit int) ([]*domain.Trade, error)
	RecentCandles(ctx context.Context, poolID domain.PubKey, tf domain.Timeframe, limit int) ([]*domain.Candle, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]domain.EventRecord, error)

	Close()
}

// bigString renders a *big.Int for storage as a decimal string; nil
// is stored as "0" since every amount column is NOT NULL.
func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigFloatString(v *big.Float) string {
	if v == nil {
		return "0"
	}
	return v.Text('f', -1)
}
