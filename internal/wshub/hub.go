// Package wshub implements the WS Fan-out Hub (C13): a client
// registry keyed by pool subscription, pushing typed messages to
// every client subscribed to the message's pool, plus a global
// channel for `hello`.
package wshub

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// TradeSource is the read side of the trade store the hub needs to
// answer a subscribe with a snapshot.
type TradeSource interface {
	Recent(pool domain.PubKey, limit int) []*domain.Trade
}

const defaultSnapshotLimit = 50

// Hub owns the live client registry and the per-pool subscription
// index. One Hub serves every connection for the process.
type Hub struct {
	programID domain.PubKey
	trades    TradeSource
	tickets   *TicketStore
	log       *logrus.Logger
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	byPool  map[domain.PubKey]map[*Client]struct{}
}

// NewHub constructs a Hub. allowedOrigins empty means allow any
// origin.
func NewHub(programID domain.PubKey, trades TradeSource, tickets *TicketStore, allowedOrigins []string, log *logrus.Logger) *Hub {
	h := &Hub{
		programID: programID,
		trades:    trades,
		tickets:   tickets,
		log:       log,
		clients:   make(map[*Client]struct{}),
		byPool:    make(map[domain.PubKey]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// ServeWS is the HTTP handler internal/httpapi mounts for the
// websocket endpoint. Admission is a short-lived bearer ticket
// presented as the `ticket` query parameter; on failure the
// connection is upgraded just far enough to close it with code 1008
// and a reason string.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" || !h.tickets.Verify(ticket) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		closeMsg := websocket.FormatCloseMessage(1008, "invalid or expired ticket")
		_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = conn.Close()
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("wshub: upgrade failed")
		return
	}

	c := newClient(conn, h)
	h.register(c)
	go c.writePump()
	go c.readPump()

	c.sendJSON(helloFrame{Type: outTypeHello, ProgramID: h.programID, TS: time.Now().UnixMilli()})
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	for pool := range c.subs {
		if set := h.byPool[pool]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byPool, pool)
			}
		}
	}
}

func (h *Hub) subscribe(c *Client, pool domain.PubKey, limit int) {
	h.mu.Lock()
	c.subs[pool] = struct{}{}
	if h.byPool[pool] == nil {
		h.byPool[pool] = make(map[*Client]struct{})
	}
	h.byPool[pool][c] = struct{}{}
	h.mu.Unlock()

	if limit <= 0 {
		limit = defaultSnapshotLimit
	}
	trades := h.trades.Recent(pool, limit)
	// blockTime desc, then slot desc: the ring is insertion-ordered and
	// live/backfill interleaving may have broken chain order.
	sort.SliceStable(trades, func(i, j int) bool {
		bi, bj := int64(0), int64(0)
		if trades[i].BlockTime != nil {
			bi = *trades[i].BlockTime
		}
		if trades[j].BlockTime != nil {
			bj = *trades[j].BlockTime
		}
		if bi != bj {
			return bi > bj
		}
		return trades[i].Slot > trades[j].Slot
	})
	c.sendJSON(snapshotFrame{Type: outTypeSnapshot, Pool: pool, Trades: trades, TS: time.Now().UnixMilli()})
}

func (h *Hub) unsubscribe(c *Client, pool domain.PubKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.subs, pool)
	if set := h.byPool[pool]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byPool, pool)
		}
	}
}

// BroadcastTrade pushes a trade frame to every client subscribed to
// t.PoolID.
func (h *Hub) BroadcastTrade(t *domain.Trade) {
	h.broadcastToPool(t.PoolID, tradeFrame{Type: outTypeTrade, Pool: t.PoolID, Data: t})
}

// BroadcastEvent pushes an event frame to every client subscribed to
// the pool the event's payload hints at. An event with no resolvable
// pool hint is dropped rather than broadcast globally.
func (h *Hub) BroadcastEvent(rec domain.EventRecord) {
	pool := poolHint(rec.EventData)
	if pool == "" {
		return
	}
	frame := eventFrame{
		Type: outTypeEvent,
		Pool: pool,
		Data: eventInner{
			Signature: rec.Signature,
			Slot:      rec.Slot,
			BlockTime: rec.BlockTime,
			Event:     eventNameData{Name: rec.EventType, Data: rec.EventData},
		},
	}
	h.broadcastToPool(pool, frame)
}

func (h *Hub) broadcastToPool(pool domain.PubKey, v any) {
	h.mu.Lock()
	set := h.byPool[pool]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.sendJSON(v)
	}
}

// ClientCount reports the number of live connections, exposed for
// metrics.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
