// Package decoder implements the Event Decoder (C2): it turns raw
// program log lines into typed, named events with a loosely-typed
// payload, and computes Anchor-style instruction discriminators.
package decoder

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
)

// logPrefix is the prefix Anchor-style programs emit before a
// base64-encoded event payload, e.g. "Program data: <base64>".
const logPrefix = "Program data: "

// DecodeLogs parses base64-encoded program log lines into typed, named
// events. Malformed base64 or payloads produce no
// event for that line and never abort the remaining lines — the
// decoder never surfaces an error to the caller.
func DecodeLogs(logs []string) []domain.Event {
	var events []domain.Event
	for _, line := range logs {
		ev, ok := decodeLine(line)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func decodeLine(line string) (domain.Event, bool) {
	idx := strings.Index(line, logPrefix)
	if idx < 0 {
		return domain.Event{}, false
	}
	encoded := strings.TrimSpace(line[idx+len(logPrefix):])
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.Event{}, false
	}
	return decodeEventPayload(raw)
}

// eventEnvelope is the loosely-typed wire shape a decoded event payload
// is expected to carry: a discriminator-qualified name followed by a
// JSON object of fields. Real on-chain event payloads are borsh-
// encoded and program-specific; this system decodes the subset that
// round-trips as JSON after the discriminator prefix (the remaining
// bytes are preserved under "_raw" so no information is discarded).
func decodeEventPayload(raw []byte) (domain.Event, bool) {
	if len(raw) < 8 {
		return domain.Event{}, false
	}
	disc := raw[:8]
	name, ok := lookupEventName(disc)
	if !ok {
		return domain.Event{}, false
	}
	data := map[string]any{}
	if len(raw) > 8 {
		var fields map[string]any
		if err := json.Unmarshal(raw[8:], &fields); err == nil {
			data = fields
		} else {
			data["_raw"] = base64.StdEncoding.EncodeToString(raw[8:])
		}
	}
	return domain.Event{Name: name, Data: data}, true
}

// knownEvents maps a discriminator to the event name it was derived
// from, built at package initialization from KnownEventNames so every name in that table
// is recognizable on decode without hand-maintaining two tables.
var knownEvents = buildKnownEvents()

// KnownEventNames is the set of event names this system can classify
// by discriminator. Programs without a locally known IDL are
// intentionally not hard-coded here; operators extend this table via
// RegisterEventName for programs they index.
var KnownEventNames = []string{
	"SwapExecuted",
	"LiquidityDeposited",
	"LiquidityWithdrawn",
	"PoolCreated",
	"BinUpdated",
	"FeeDistributed",
	"NftStaked",
	"NftUnstaked",
	"TokenStaked",
	"TokenUnstaked",
}

func buildKnownEvents() map[[8]byte]string {
	m := make(map[[8]byte]string, len(KnownEventNames))
	for _, name := range KnownEventNames {
		m[Discriminator(name)] = name
	}
	return m
}

// RegisterEventName adds name (and its discriminator) to the set this
// decoder recognizes, for operators indexing additional programs.
func RegisterEventName(name string) {
	knownEvents[Discriminator(name)] = name
}

func lookupEventName(disc []byte) (string, bool) {
	var key [8]byte
	copy(key[:], disc)
	name, ok := knownEvents[key]
	return name, ok
}

// Discriminator computes the 8-byte Anchor-style instruction/event
// discriminator: SHA-256("global:"+name)[0:8].
func Discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
