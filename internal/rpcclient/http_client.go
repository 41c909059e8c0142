package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// httpClient implements Client over JSON-RPC 2.0, rate-limited with
// golang.org/x/time/rate and retried with jittered backoff on
// transient failures.
type httpClient struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	maxTry  int
}

// NewHTTPClient constructs an RPC adapter backed by plain JSON-RPC.
func NewHTTPClient(cfg Config) Client {
	rl := rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	if cfg.RateLimitPerSec <= 0 {
		rl = rate.NewLimiter(rate.Inf, 0)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		url:     cfg.RPCURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rl,
		maxTry:  4,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// transientErr marks an error as retryable; the caller
// (the ingestion engine) must not mark a signature seen when it sees
// one of these.
type transientErr struct{ err error }

func (t *transientErr) Error() string { return t.err.Error() }
func (t *transientErr) Unwrap() error { return t.err }

// IsTransient reports whether err should be treated as "retry later"
// rather than a definite classification failure.
func IsTransient(err error) bool {
	var t *transientErr
	return errors.As(err, &t)
}

func (c *httpClient) call(ctx context.Context, method string, params any, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.maxTry; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err := c.doCall(ctx, method, params, out)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		backoff := time.Duration(1<<attempt)*100*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *httpClient) doCall(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("rpcclient: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientErr{fmt.Errorf("rpcclient: %s: %w", method, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transientErr{fmt.Errorf("rpcclient: %s: read body: %w", method, err)}
	}
	if resp.StatusCode >= 500 {
		return &transientErr{fmt.Errorf("rpcclient: %s: http %d", method, resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &transientErr{fmt.Errorf("rpcclient: %s: rate limited", method)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpcclient: %s: http %d: %s", method, resp.StatusCode, raw)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("rpcclient: %s: decode envelope: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("rpcclient: %s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("rpcclient: %s: decode result: %w", method, err)
	}
	return nil
}

type sigInfoWire struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
}

func (c *httpClient) GetSignaturesForAddress(ctx context.Context, address domain.PubKey, opts SignaturesOpts) ([]SignatureInfo, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	params := map[string]any{"limit": limit}
	if opts.Before != "" {
		params["before"] = string(opts.Before)
	}
	var wire []sigInfoWire
	if err := c.call(ctx, "getSignaturesForAddress", []any{string(address), params}, &wire); err != nil {
		return nil, err
	}
	out := make([]SignatureInfo, len(wire))
	for i, w := range wire {
		out[i] = SignatureInfo{Signature: domain.Signature(w.Signature), Slot: w.Slot, BlockTime: w.BlockTime}
	}
	return out, nil
}

type txMessageWire struct {
	AccountKeys []string `json:"accountKeys"`
	Instructions []struct {
		ProgramIDIndex int    `json:"programIdIndex"`
		Accounts       []int  `json:"accounts"`
		Data           string `json:"data"`
	} `json:"instructions"`
}

type tokenBalanceWire struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UiTokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}

type txWire struct {
	Slot        uint64 `json:"slot"`
	BlockTime   *int64 `json:"blockTime"`
	Transaction struct {
		Message txMessageWire `json:"message"`
	} `json:"transaction"`
	Meta struct {
		LogMessages       []string           `json:"logMessages"`
		PreTokenBalances  []tokenBalanceWire `json:"preTokenBalances"`
		PostTokenBalances []tokenBalanceWire `json:"postTokenBalances"`
		LoadedAddresses   *struct {
			Writable []string `json:"writable"`
			Readonly []string `json:"readonly"`
		} `json:"loadedAddresses"`
	} `json:"meta"`
}

func (c *httpClient) GetTransaction(ctx context.Context, sig domain.Signature) (*domain.Transaction, error) {
	params := map[string]any{"maxSupportedTransactionVersion": 0, "commitment": "confirmed", "encoding": "json"}
	var wire *txWire
	if err := c.call(ctx, "getTransaction", []any{string(sig), params}, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, &transientErr{&TxNotFound{Signature: sig}}
	}
	return wireToTransaction(sig, wire), nil
}

func wireToTransaction(sig domain.Signature, w *txWire) *domain.Transaction {
	keys := make([]domain.PubKey, 0, len(w.Transaction.Message.AccountKeys))
	for _, k := range w.Transaction.Message.AccountKeys {
		keys = append(keys, domain.PubKey(k))
	}
	// v0 transactions load extra keys through address lookup tables;
	// token-balance accountIndex values index into the combined list,
	// writable first, then readonly.
	if la := w.Meta.LoadedAddresses; la != nil {
		for _, k := range la.Writable {
			keys = append(keys, domain.PubKey(k))
		}
		for _, k := range la.Readonly {
			keys = append(keys, domain.PubKey(k))
		}
	}
	instrs := make([]domain.CompiledInstruction, len(w.Transaction.Message.Instructions))
	for i, ix := range w.Transaction.Message.Instructions {
		instrs[i] = domain.CompiledInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			AccountIndexes: ix.Accounts,
			Data:           ix.Data,
			DataEncoding:   "base58",
		}
	}
	pre := wireToBalances(w.Meta.PreTokenBalances)
	post := wireToBalances(w.Meta.PostTokenBalances)
	return &domain.Transaction{
		Signature:    sig,
		Slot:         w.Slot,
		BlockTime:    w.BlockTime,
		AccountKeys:  keys,
		Instructions: instrs,
		LogMessages:  w.Meta.LogMessages,
		PreBalances:  pre,
		PostBalances: post,
	}
}

func wireToBalances(in []tokenBalanceWire) []domain.TokenBalance {
	out := make([]domain.TokenBalance, len(in))
	for i, b := range in {
		out[i] = domain.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         domain.PubKey(b.Mint),
			Owner:        domain.PubKey(b.Owner),
			AmountAtoms:  b.UiTokenAmount.Amount,
		}
	}
	return out
}

type accountInfoWire struct {
	Value *struct {
		Data []string `json:"data"` // [base64, "base64"]
	} `json:"value"`
}

func (c *httpClient) GetAccountInfo(ctx context.Context, pubkey domain.PubKey) ([]byte, error) {
	params := map[string]any{"encoding": "base64"}
	var wire accountInfoWire
	if err := c.call(ctx, "getAccountInfo", []any{string(pubkey), params}, &wire); err != nil {
		return nil, err
	}
	if wire.Value == nil || len(wire.Value.Data) == 0 {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(wire.Value.Data[0])
}

type multiAccountsWire struct {
	Value []*struct {
		Data []string `json:"data"`
	} `json:"value"`
}

func (c *httpClient) GetMultipleAccounts(ctx context.Context, pubkeys []domain.PubKey) ([][]byte, error) {
	strs := make([]string, len(pubkeys))
	for i, k := range pubkeys {
		strs[i] = string(k)
	}
	params := map[string]any{"encoding": "base64"}
	var wire multiAccountsWire
	if err := c.call(ctx, "getMultipleAccounts", []any{strs, params}, &wire); err != nil {
		return nil, err
	}
	out := make([][]byte, len(pubkeys))
	for i, v := range wire.Value {
		if v == nil || len(v.Data) == 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(v.Data[0])
		if err != nil {
			continue
		}
		out[i] = raw
	}
	return out, nil
}

func (c *httpClient) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []any{}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

func (c *httpClient) GetBlockTime(ctx context.Context, slot uint64) (int64, error) {
	var ts int64
	if err := c.call(ctx, "getBlockTime", []any{slot}, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

type blockSignaturesWire struct {
	Signatures []string `json:"signatures"`
}

// GetBlockSignatures fetches a block's signatures-only projection, the
// transaction-index source for event persistence.
func (c *httpClient) GetBlockSignatures(ctx context.Context, slot uint64) ([]domain.Signature, error) {
	params := map[string]any{
		"transactionDetails":             "signatures",
		"maxSupportedTransactionVersion": 0,
		"rewards":                        false,
	}
	var wire blockSignaturesWire
	if err := c.call(ctx, "getBlock", []any{slot, params}, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.Signature, len(wire.Signatures))
	for i, s := range wire.Signatures {
		out[i] = domain.Signature(s)
	}
	return out, nil
}

// SubscribeLogs is not meaningful over plain HTTP; httpClient is paired
// with wsClient by the caller (see NewSplitClient) for live log
// subscriptions.
func (c *httpClient) SubscribeLogs(ctx context.Context, mention domain.PubKey) (LogSubscription, error) {
	return nil, fmt.Errorf("rpcclient: SubscribeLogs not supported over http, use NewSplitClient")
}
