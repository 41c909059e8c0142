package ingest

import (
	"context"
	"errors"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
)

// RunSubscription opens one log subscription per pool and processes
// every notification as it arrives. It runs until ctx is cancelled or
// every subscription's notification channel closes.
func (e *Engine) RunSubscription(ctx context.Context, registry PoolRegistry) error {
	pools := registry.PoolIDs()
	subs := make([]rpcclient.LogSubscription, 0, len(pools))
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	notifs := make(chan poolNotification, 256)
	for _, pool := range pools {
		sub, err := e.Client.SubscribeLogs(ctx, pool)
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		go forward(ctx, pool, sub, notifs)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifs:
			if !ok {
				return nil
			}
			if _, err := e.ProcessSignatureForPool(ctx, n.pool, n.sig); err != nil {
				if !errors.Is(err, ErrTransient) {
					e.Log.WithError(err).WithField("sig", n.sig).WithField("pool", n.pool).Error("ingest: subscription processing failed")
				}
			}
		}
	}
}

type poolNotification struct {
	pool domain.PubKey
	sig  domain.Signature
}

func forward(ctx context.Context, pool domain.PubKey, sub rpcclient.LogSubscription, out chan<- poolNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.Notifications():
			if !ok {
				return
			}
			select {
			case out <- poolNotification{pool: pool, sig: n.Signature}:
			case <-ctx.Done():
				return
			}
		}
	}
}
