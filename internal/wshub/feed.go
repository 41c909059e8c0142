package wshub

import (
	"context"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// RunTradeFeed subscribes to the trade store and broadcasts every
// trade to that pool's subscribers as it arrives, the same
// subscribe-and-fold shape the candle and volume aggregators use. It
// runs until ctx is cancelled.
func (h *Hub) RunTradeFeed(ctx context.Context, store *tradestore.Store) error {
	trades := store.Subscribe(256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			h.BroadcastTrade(t)
		}
	}
}
