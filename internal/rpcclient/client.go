// Package rpcclient is the thin contract over the blockchain RPC node.
// Everything downstream depends only on the Client interface; the HTTP
// and websocket implementations are interchangeable, and a FakeClient
// stands in for both in tests.
package rpcclient

import (
	"context"
	"time"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// SignatureInfo is one entry of getSignaturesForAddress, newest-first.
type SignatureInfo struct {
	Signature domain.Signature
	Slot      uint64
	BlockTime *int64
}

// SignaturesOpts bounds and paginates getSignaturesForAddress.
type SignaturesOpts struct {
	Limit  int // <= 1000
	Before domain.Signature
}

// LogNotification is one message delivered by a log subscription.
type LogNotification struct {
	Signature domain.Signature
	Slot      uint64
	Logs      []string
}

// LogSubscription is an open stream of LogNotification plus an explicit
// unsubscribe primitive.
type LogSubscription interface {
	Notifications() <-chan LogNotification
	Unsubscribe()
}

// Client is the adapter contract (C1) required of the upstream RPC
// node. Every method is a suspension point: no
// caller may hold a lock across one of these calls.
type Client interface {
	GetSignaturesForAddress(ctx context.Context, address domain.PubKey, opts SignaturesOpts) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, sig domain.Signature) (*domain.Transaction, error)
	GetAccountInfo(ctx context.Context, pubkey domain.PubKey) ([]byte, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []domain.PubKey) ([][]byte, error)
	SubscribeLogs(ctx context.Context, mention domain.PubKey) (LogSubscription, error)
	GetSlot(ctx context.Context) (uint64, error)
	GetBlockTime(ctx context.Context, slot uint64) (int64, error)
	GetBlockSignatures(ctx context.Context, slot uint64) ([]domain.Signature, error)
}

// TxNotFound is returned by GetTransaction when the node has genuinely
// not seen the signature at confirmed commitment; this is treated the
// same as a transient failure (the transaction may
// still finalize), never as "definitely not a swap".
type TxNotFound struct {
	Signature domain.Signature
}

func (e *TxNotFound) Error() string {
	return "rpcclient: transaction not found: " + string(e.Signature)
}

// Config carries the dial/polling parameters shared by both transport
// implementations.
type Config struct {
	RPCURL          string
	WSURL           string
	RequestTimeout  time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
}
