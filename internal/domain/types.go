// Package domain defines the shared types that flow between the
// ingestion engine, the aggregators, the persisters and the websocket
// hub. Nothing in this package talks to the network or a database; it
// is the vocabulary the rest of the module shares.
package domain

import "math/big"

// PubKey is a base58-rendered 32-byte public key, used for pool, mint,
// vault and owner identifiers.
type PubKey string

// Signature identifies a confirmed transaction.
type Signature string

// Timeframe is a fixed-length candle/volume window.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	// TF24h exists only for the volume aggregator (C8); the candle
	// aggregator (C7) never produces 24h buckets.
	TF24h Timeframe = "24h"
)

// CandleTimeframes is the fixed set of timeframes the candle
// aggregator maintains.
var CandleTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d}

// Seconds returns the bucket width of a timeframe in seconds. Panics
// on an unknown timeframe since the set is fixed and closed.
func (tf Timeframe) Seconds() int64 {
	switch tf {
	case TF1m:
		return 60
	case TF5m:
		return 5 * 60
	case TF15m:
		return 15 * 60
	case TF30m:
		return 30 * 60
	case TF1h:
		return 60 * 60
	case TF4h:
		return 4 * 60 * 60
	case TF1d:
		return 24 * 60 * 60
	case TF24h:
		return 24 * 60 * 60
	default:
		panic("domain: unknown timeframe " + string(tf))
	}
}

// BucketStart floors a unix-second timestamp down to the start of the
// timeframe's bucket: bucketStartSec = floor(ts/tf)*tf.
func (tf Timeframe) BucketStart(tsSec int64) int64 {
	w := tf.Seconds()
	return (tsSec / w) * w
}

// TxRef is the minimal reference to a confirmed transaction.
// Signature alone is not a unique key for derived facts because one
// transaction may touch multiple pools.
type TxRef struct {
	Signature Signature
	Slot      uint64
	BlockTime *int64 // unix seconds, nil if the node hasn't backfilled it
}

// TokenBalance is one entry of meta.{pre,post}TokenBalances. The
// integer atoms come only from UiTokenAmount.Amount, never from a
// floating-point UI field.
type TokenBalance struct {
	AccountIndex int
	Mint         PubKey
	Owner        PubKey // may be empty; not every RPC response populates it
	AmountAtoms  string // uiTokenAmount.amount, a decimal integer string
}

// CompiledInstruction is a single instruction from a transaction
// message, with its data encoded either base58 or base64 depending on
// the RPC's encoding parameter.
type CompiledInstruction struct {
	ProgramIDIndex int
	AccountIndexes []int
	Data           string
	DataEncoding   string // "base58" or "base64"
}

// Transaction is the subset of a confirmed transaction this system
// needs to classify events and derive trades.
type Transaction struct {
	Signature    Signature
	Slot         uint64
	BlockTime    *int64
	AccountKeys  []PubKey // static + loaded-address-table keys, in order
	Instructions []CompiledInstruction
	LogMessages  []string
	PreBalances  []TokenBalance
	PostBalances []TokenBalance
}

// FeePayer returns the transaction's fee payer, which is always
// account index 0.
func (t *Transaction) FeePayer() (PubKey, bool) {
	if len(t.AccountKeys) == 0 {
		return "", false
	}
	return t.AccountKeys[0], true
}

// PoolKeys is the subset of Pool fields the trade deriver and pool
// reader need to resolve a trade; kept separate from Pool so callers
// that only have identifiers don't need a full pool read.
type PoolKeys struct {
	PoolID        PubKey
	BaseMint      PubKey
	QuoteMint     PubKey
	BaseVault     PubKey
	QuoteVault    PubKey
	BaseDecimals  int
	QuoteDecimals int
}

// Pool is the on-chain pool account, decoded by poolcache.DecodePoolAccount.
type Pool struct {
	PoolID          PubKey
	BaseMint        PubKey
	QuoteMint       PubKey
	BaseDecimals    int
	QuoteDecimals   int
	BaseVault       PubKey
	QuoteVault      PubKey
	LPMint          PubKey
	CreatorFeeVault PubKey
	HoldersFeeVault PubKey
	NFTFeeVault     PubKey
	BinStepBps      uint16
	ActiveBin       int32
	PriceQ64_64     *big.Int // raw Q64.64 fixed-point, base in quote
	LastUpdateSlot  uint64
}

// Keys projects a Pool down to the fields the trade deriver needs.
func (p *Pool) Keys() PoolKeys {
	return PoolKeys{
		PoolID:        p.PoolID,
		BaseMint:      p.BaseMint,
		QuoteMint:     p.QuoteMint,
		BaseVault:     p.BaseVault,
		QuoteVault:    p.QuoteVault,
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	}
}

// Trade is the derived, immutable record of one swap.
type Trade struct {
	Signature Signature
	Slot      uint64
	BlockTime *int64
	PoolID    PubKey
	User      PubKey
	InMint    PubKey
	OutMint   PubKey
	AmountIn  *big.Int // atoms
	AmountOut *big.Int // atoms
}

// Candle is one OHLCV bucket.
type Candle struct {
	PoolID         PubKey
	Timeframe      Timeframe
	BucketStartSec int64
	Open           *big.Float
	High           *big.Float
	Low            *big.Float
	Close          *big.Float
	VolumeQuote    *big.Float
	TradesCount    int
	UpdatedAtMs    int64
}

// Event is a decoded, named program event with a loosely-typed
// payload.
type Event struct {
	Name string
	Data map[string]any
}

// EventRecord is the persisted form of a decoded event, keyed on
// (ProgramID, Slot, TxnIndex, EventIndex).
type EventRecord struct {
	Signature  Signature
	Slot       uint64
	BlockTime  int64
	ProgramID  PubKey
	EventType  string
	TxnIndex   int
	EventIndex int
	EventData  map[string]any
	Logs       []string
}

// FeeUI is the UI-denominated fee-vault balance snapshot.
type FeeUI struct {
	Creator       *big.Float
	Holders       *big.Float
	NFT           *big.Float
	LastRefreshMs int64
}
