// Package ingest implements the Ingestion Engine: the component that
// turns a raw transaction signature into, at most, one derived trade
// per pool, persisting whatever decoded events ride along with it
// regardless of whether the transaction turns out to be a swap.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/decoder"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/poolcache"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/trade"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// EventPersister appends decoded events to durable storage. Engine
// calls it for every transaction it fetches, whether or not that
// transaction turns out to be a swap: liquidity, staking and fee
// events carry no Trade but are never dropped.
type EventPersister interface {
	PersistEvents(ctx context.Context, tx *domain.Transaction, programID domain.PubKey, events []domain.Event) error
}

// PoolStatePersister persists a pool's derived on-chain state after a
// trade touches it. Engine's caller is the only writer for any given
// pool, so the slot-gated update this satisfies never races itself.
type PoolStatePersister interface {
	UpsertPoolState(ctx context.Context, programID domain.PubKey, pool *domain.Pool, lastTradeSig domain.Signature) error
}

// EventBroadcaster fans decoded events out to realtime subscribers.
// Engine calls it alongside EventPersister, with the same events, so
// the WS hub's `event` messages and the durable dex_events rows never
// diverge on what was decoded for a given transaction.
type EventBroadcaster interface {
	BroadcastEvent(rec domain.EventRecord)
}

// PoolRegistry resolves the set of pools this engine watches for a
// given program. It supplies pool ids only; vault and mint keys come
// from the pool reader.
type PoolRegistry interface {
	PoolIDs() []domain.PubKey
}

// Engine owns the pool-by-pool processing pipeline: one instance
// drives every entry point (live poll, log subscription, historical
// backfill) against the same dedup set and pool reader.
type Engine struct {
	Client     rpcclient.Client
	Pools      *poolcache.Reader
	Trades     *tradestore.Store
	Events     EventPersister
	PoolStates PoolStatePersister
	Broadcast  EventBroadcaster
	ProgramID  domain.PubKey
	Log        *logrus.Logger

	// Metrics counters, wired by the caller; nil-safe, so tests and
	// callers that don't care about observability can leave them unset.
	SignaturesProcessed interface{ Inc() }
	TradesProcessed     interface{ Inc() }
	EventsPersisted     interface{ Inc() }
	ProcessingErrors    interface{ Inc() }

	// IngestLagSlots, when set, is reported with the number of slots
	// between the chain's current slot and the highest slot this
	// engine has fully processed. RunLive samples it once per poll
	// tick via LastProcessedSlot; it is never written directly.
	IngestLagSlots interface{ Set(float64) }

	lastProcessedSlot atomic.Uint64
}

// LastProcessedSlot returns the highest transaction slot this engine
// has processed via ProcessSignatureForPool, or 0 if none yet.
func (e *Engine) LastProcessedSlot() uint64 {
	return e.lastProcessedSlot.Load()
}

func (e *Engine) observeSlot(slot uint64) {
	for {
		cur := e.lastProcessedSlot.Load()
		if slot <= cur {
			return
		}
		if e.lastProcessedSlot.CompareAndSwap(cur, slot) {
			return
		}
	}
}

func incIfSet(c interface{ Inc() }) {
	if c != nil {
		c.Inc()
	}
}

// ErrTransient signals that processSignatureForPool could not reach a
// definite classification and must be retried without marking the
// signature seen.
var ErrTransient = errors.New("ingest: transient failure")

// ProcessSignatureForPool implements the per-signature pipeline:
//
//  1. skip if (signature, pool) was already processed
//  2. fetch the transaction; a not-found or transport failure is
//     transient and must not mark the signature seen
//  3. decode every program log line into a named event, regardless of
//     swap classification, and persist them before any state mutation
//  4. classify the transaction as a swap via log heuristic or
//     instruction-discriminator scan; if neither signal fires, mark
//     seen and return with no trade
//  5. load the pool's current vault/mint keys
//  6. derive a trade from the pre/post token-balance deltas; if the
//     transaction touched this pool without netting a clean buy or
//     sell (liquidity op, multi-leg, zero-sum), mark seen and return
//  7. insert the trade, which atomically marks the key seen and fans
//     the trade out to every downstream subscriber
func (e *Engine) ProcessSignatureForPool(ctx context.Context, poolID domain.PubKey, sig domain.Signature) (*domain.Trade, error) {
	if e.Trades.Seen(sig, poolID) {
		return nil, nil
	}

	incIfSet(e.SignaturesProcessed)

	tx, err := e.Client.GetTransaction(ctx, sig)
	if err != nil {
		if rpcclient.IsTransient(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransient, sig, err)
		}
		incIfSet(e.ProcessingErrors)
		return nil, fmt.Errorf("ingest: fetch %s: %w", sig, err)
	}

	events := decoder.DecodeLogs(tx.LogMessages)
	if e.Events != nil {
		if err := e.Events.PersistEvents(ctx, tx, e.ProgramID, events); err != nil {
			e.Log.WithError(err).WithField("sig", sig).Warn("ingest: persist events failed")
		} else if len(events) > 0 && e.EventsPersisted != nil {
			for range events {
				e.EventsPersisted.Inc()
			}
		}
	}
	if e.Broadcast != nil {
		blockTime := int64(0)
		if tx.BlockTime != nil {
			blockTime = *tx.BlockTime
		}
		for i, ev := range events {
			e.Broadcast.BroadcastEvent(domain.EventRecord{
				Signature: sig, Slot: tx.Slot, BlockTime: blockTime,
				ProgramID: e.ProgramID, EventType: ev.Name, EventIndex: i, EventData: ev.Data,
			})
		}
	}

	if !isSwap(tx, e.ProgramID) {
		e.Trades.MarkSeenOnly(sig, poolID, tx.Slot)
		e.observeSlot(tx.Slot)
		return nil, nil
	}

	pool, err := e.Pools.ReadPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("%w: read pool %s: %v", ErrTransient, poolID, err)
	}

	t, ok := trade.Derive(tx, pool.Keys())
	if !ok {
		e.Trades.MarkSeenOnly(sig, poolID, tx.Slot)
		e.observeSlot(tx.Slot)
		return nil, nil
	}

	if e.PoolStates != nil {
		// copy before stamping the slot: the reader's cache shares the
		// pool struct across callers.
		snap := *pool
		snap.LastUpdateSlot = tx.Slot
		if err := e.PoolStates.UpsertPoolState(ctx, e.ProgramID, &snap, t.Signature); err != nil {
			e.Log.WithError(err).WithField("pool", poolID).Warn("ingest: persist pool state failed")
		}
	}

	e.Trades.Insert(t)
	incIfSet(e.TradesProcessed)
	e.observeSlot(tx.Slot)
	return t, nil
}
