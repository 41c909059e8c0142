package persist

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
)

// TradeWriter is the dex_trades half of StateStore, narrowed for
// callers that only need to sink trades.
type TradeWriter interface {
	InsertTrade(ctx context.Context, t *domain.Trade) error
}

// RunTradeSink subscribes to the trade store and persists every trade
// as it arrives, the same one-subscriber-per-consumer shape the
// candle and volume aggregators use. It runs until ctx is cancelled.
func RunTradeSink(ctx context.Context, store *tradestore.Store, writer TradeWriter, log *logrus.Logger) error {
	trades := store.Subscribe(256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-trades:
			if !ok {
				return nil
			}
			if err := writer.InsertTrade(ctx, t); err != nil {
				log.WithError(err).WithField("sig", t.Signature).Warn("persist: insert trade failed")
			}
		}
	}
}
