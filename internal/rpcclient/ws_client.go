package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// splitClient pairs an HTTP JSON-RPC transport for request/response
// methods with a websocket transport for the live log-subscription
// entry point: one transport for the fire-and-forget stream, another
// for point queries.
type splitClient struct {
	Client
	wsURL string
}

// NewSplitClient returns a Client whose request/response methods go
// over HTTP and whose SubscribeLogs goes over a websocket connection.
func NewSplitClient(cfg Config) Client {
	return &splitClient{Client: NewHTTPClient(cfg), wsURL: cfg.WSURL}
}

type wsSubscribeParams struct {
	Mentions []string `json:"mentions"`
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type logsNotificationWire struct {
	Params struct {
		Result struct {
			Value struct {
				Signature string   `json:"signature"`
				Logs      []string `json:"logs"`
			} `json:"value"`
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
		} `json:"result"`
	} `json:"params"`
}

type subAck struct {
	Result int `json:"result"`
}

// wsSubscription drives a single read-pump goroutine per subscription;
// nothing else writes to notifCh.
type wsSubscription struct {
	conn      *websocket.Conn
	notifCh   chan LogNotification
	stopped   atomic.Bool
	closeOnce sync.Once
}

func (s *wsSubscription) Notifications() <-chan LogNotification { return s.notifCh }

func (s *wsSubscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.stopped.Store(true)
		_ = s.conn.Close()
	})
}

func (c *splitClient) SubscribeLogs(ctx context.Context, mention domain.PubKey) (LogSubscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, &transientErr{fmt.Errorf("rpcclient: dial ws: %w", err)}
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params:  []any{wsSubscribeParams{Mentions: []string{string(mention)}}, map[string]string{"commitment": "confirmed"}},
	}
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, &transientErr{fmt.Errorf("rpcclient: subscribe write: %w", err)}
	}
	var ack subAck
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, &transientErr{fmt.Errorf("rpcclient: subscribe ack: %w", err)}
	}

	sub := &wsSubscription{conn: conn, notifCh: make(chan LogNotification, 256)}
	go sub.pump()
	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return sub, nil
}

func (s *wsSubscription) pump() {
	defer close(s.notifCh)
	for {
		if s.stopped.Load() {
			return
		}
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var wire logsNotificationWire
		if err := json.Unmarshal(raw, &wire); err != nil {
			// malformed frame: skip
			continue
		}
		notif := LogNotification{
			Signature: domain.Signature(wire.Params.Result.Value.Signature),
			Slot:      wire.Params.Result.Context.Slot,
			Logs:      wire.Params.Result.Value.Logs,
		}
		select {
		case s.notifCh <- notif:
		default:
			// slow consumer: drop rather than block the read pump and
			// stall the websocket connection.
		}
	}
}
