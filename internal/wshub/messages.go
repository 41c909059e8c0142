package wshub

import "github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"

// Inbound frame types, line-delimited JSON per the wire protocol.
type inboundFrame struct {
	Type  string        `json:"type"`
	Pool  domain.PubKey `json:"pool"`
	Limit int           `json:"limit,omitempty"`
}

const (
	inTypeSubscribe   = "subscribe"
	inTypeUnsubscribe = "unsubscribe"
)

// helloFrame is sent once, unconditionally, right after a connection
// is admitted.
type helloFrame struct {
	Type      string        `json:"type"`
	ProgramID domain.PubKey `json:"programId"`
	TS        int64         `json:"ts"`
}

// snapshotFrame answers a subscribe with the most recent trades for
// the pool just subscribed to.
type snapshotFrame struct {
	Type   string          `json:"type"`
	Pool   domain.PubKey   `json:"pool"`
	Trades []*domain.Trade `json:"trades"`
	TS     int64           `json:"ts"`
}

// tradeFrame fans a single new trade out to a pool's subscribers.
type tradeFrame struct {
	Type string        `json:"type"`
	Pool domain.PubKey `json:"pool"`
	Data *domain.Trade `json:"data"`
}

// eventInner carries the name/payload of a decoded program event.
type eventInner struct {
	Signature domain.Signature `json:"signature"`
	Slot      uint64           `json:"slot"`
	BlockTime int64            `json:"blockTime"`
	Event     eventNameData    `json:"event"`
}

type eventNameData struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}

// eventFrame fans an event out to a pool's subscribers. An event with
// no resolvable pool hint is never sent (see BroadcastEvent).
type eventFrame struct {
	Type string        `json:"type"`
	Pool domain.PubKey `json:"pool,omitempty"`
	Data eventInner    `json:"data"`
}

const (
	outTypeHello    = "hello"
	outTypeSnapshot = "snapshot"
	outTypeTrade    = "trade"
	outTypeEvent    = "event"
)

// poolHint extracts a routing pool id from a loosely-typed event
// payload, trying the pool/pairId/poolId keys in order.
func poolHint(data map[string]any) domain.PubKey {
	for _, key := range []string{"pool", "pairId", "poolId"} {
		if v, ok := data[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return domain.PubKey(s)
			}
		}
	}
	return ""
}
