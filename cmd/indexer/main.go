// cmd/indexer drives the whole process: a cobra root command with a
// `serve` subcommand that runs every worker together and a
// `backfill` subcommand that walks one or all pools' signature
// history and exits.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/candles"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/config"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/feevault"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/httpapi"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/ingest"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/metrics"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/persist"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/poolcache"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/rpcclient"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/stake"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/tradestore"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/volume"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/wshub"
)

func main() {
	root := &cobra.Command{Use: "indexer"}
	root.AddCommand(serveCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(configInitCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

type deps struct {
	cfg    *config.Config
	log    *logrus.Logger
	client rpcclient.Client
	pools  *poolcache.Reader
	store  *persist.Postgres
}

func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	client := rpcclient.NewSplitClient(rpcclient.Config{RPCURL: cfg.RPCURL, WSURL: cfg.WSURL})
	pools := poolcache.NewReader(client, poolcache.DefaultTTL)

	store, err := persist.Open(ctx, cfg.DatabaseURL, client, cfg.EventPersistUnknownTx, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &deps{cfg: cfg, log: log, client: client, pools: pools, store: store}, nil
}

type poolRegistry struct{ ids []domain.PubKey }

func (r *poolRegistry) PoolIDs() []domain.PubKey { return r.ids }

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the ingestion engine, aggregators, persisters and HTTP/WS façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.store.Close()

			registry := &poolRegistry{}
			for _, p := range d.cfg.PoolList() {
				registry.ids = append(registry.ids, domain.PubKey(p))
			}

			trades := tradestore.New()
			tickets := wshub.NewTicketStore(time.Duration(d.cfg.WsTicketTtlSec) * time.Second)
			hub := wshub.NewHub(domain.PubKey(d.cfg.ProgramID), trades, tickets, d.cfg.CorsOriginList(), d.log)
			mx := metrics.New()
			d.pools.Hits = mx.PoolCacheHits
			d.pools.Misses = mx.PoolCacheMisses

			engine := &ingest.Engine{
				Client:     d.client,
				Pools:      d.pools,
				Trades:     trades,
				Events:     d.store,
				PoolStates: d.store,
				Broadcast:  hub,
				ProgramID:  domain.PubKey(d.cfg.ProgramID),
				Log:        d.log,

				SignaturesProcessed: mx.SignaturesProcessed,
				TradesProcessed:     mx.TradesProcessed,
				EventsPersisted:     mx.EventsPersisted,
				ProcessingErrors:    mx.ProcessingErrors,
				IngestLagSlots:      mx.IngestLagSlots,
			}

			candleAgg := candles.NewAggregator(d.pools, d.store, d.log)
			volumeAgg := volume.NewAggregator(d.pools, d.log)
			feeRefresher := feevault.NewRefresher(d.client, d.pools, d.store, d.log, feevault.Config{
				DebounceMs:    d.cfg.FeeDebounceMs,
				MinIntervalMs: d.cfg.FeeMinIntervalMs,
			})

			var stakeVault *stake.TokenVaultIndexer
			if d.cfg.StakeVaultID != "" {
				stakeVault = stake.NewTokenVaultIndexer(stake.VaultConfig{
					VaultID:   domain.PubKey(d.cfg.StakeVaultID),
					Mint:      domain.PubKey(d.cfg.StakeMint),
					ProgramID: domain.PubKey(d.cfg.ProgramID),
				}, d.client, d.store, d.store, d.log)
				if err := stakeVault.Boot(ctx); err != nil {
					return fmt.Errorf("boot token vault indexer: %w", err)
				}
			}

			var nftVault *stake.NFTIndexer
			if d.cfg.NFTVaultScanAddress != "" {
				nftVault = stake.NewNFTIndexer(stake.NFTVaultConfig{
					ScanAddress:     domain.PubKey(d.cfg.NFTVaultScanAddress),
					UnlockWindowSec: d.cfg.NFTUnlockWindowSec,
				}, d.client, d.store, d.store, d.log)
				if err := nftVault.Boot(ctx); err != nil {
					return fmt.Errorf("boot nft stake indexer: %w", err)
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/", httpapi.NewServer(d.store, candleAgg, tickets, d.cfg.CorsOriginList(), d.log))
			mux.HandleFunc("/ws", hub.ServeWS)
			httpSrv := &http.Server{Addr: d.cfg.HTTPAddr, Handler: mux}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return engine.RunLive(gctx, registry, ingest.LiveConfig{
					PollInterval:      time.Duration(d.cfg.TradesPollMs) * time.Millisecond,
					SignatureLookback: d.cfg.SignatureLookback,
				})
			})
			if d.cfg.WSURL != "" {
				g.Go(func() error { return engine.RunSubscription(gctx, registry) })
			}
			g.Go(func() error { return engine.RunCompactor(gctx, trades, ingest.CompactorConfig{}) })
			g.Go(func() error { return candleAgg.Run(gctx, trades, candles.Config{FlushInterval: time.Duration(d.cfg.CandlesFlushMs) * time.Millisecond}) })
			g.Go(func() error { return volumeAgg.Run(gctx, trades) })
			g.Go(func() error { return feeRefresher.Run(gctx, trades) })
			g.Go(func() error { return persist.RunTradeSink(gctx, trades, d.store, d.log) })
			g.Go(func() error { return hub.RunTradeFeed(gctx, trades) })
			g.Go(func() error { tickets.RunSweeper(gctx); return nil })
			g.Go(func() error { return mx.Serve(gctx, d.cfg.MetricsAddr) })
			g.Go(func() error { return sampleGauges(gctx, mx, trades, hub) })
			if stakeVault != nil {
				g.Go(func() error { return stakeVault.RunLive(gctx, time.Duration(d.cfg.StakeFlushMs)*time.Millisecond) })
			}
			if nftVault != nil {
				g.Go(func() error { return nftVault.RunLive(gctx) })
				g.Go(func() error { return runUnlockSweeper(gctx, nftVault, d.store, d.cfg.NFTUnlockCheckSec) })
			}
			g.Go(func() error {
				errCh := make(chan error, 1)
				go func() { errCh <- httpSrv.ListenAndServe() }()
				select {
				case <-gctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return httpSrv.Shutdown(shutdownCtx)
				case err := <-errCh:
					if err == http.ErrServerClosed {
						return nil
					}
					return err
				}
			})

			if err := g.Wait(); err != nil && ctx.Err() == nil {
				d.log.WithError(err).Error("serve: a worker exited with an error")
				return err
			}
			return nil
		},
	}
}

// sampleGauges periodically copies live counts (the dedup set size and
// the open websocket connection count) into their Prometheus gauges,
// since both live inside structures this process doesn't otherwise
// poll.
func sampleGauges(ctx context.Context, mx *metrics.Metrics, trades *tradestore.Store, hub *wshub.Hub) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mx.DedupSetSize.Set(float64(trades.Len()))
			mx.WSClientCount.Set(float64(hub.ClientCount()))
		}
	}
}

// runUnlockSweeper periodically loads every active, unlock-bound NFT
// stake and hands them to CheckUnlocks; time-based status transitions
// have no triggering transaction, so nothing else drives them.
func runUnlockSweeper(ctx context.Context, idx *stake.NFTIndexer, reader stake.Reader, intervalSec int) error {
	if intervalSec <= 0 {
		intervalSec = 60
	}
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			actives, err := reader.LoadActiveNFTStakes(ctx)
			if err != nil {
				continue
			}
			idx.CheckUnlocks(ctx, actives, time.Now().Unix())
		}
	}
}

func backfillCmd() *cobra.Command {
	var maxPerPool int
	var pageSize int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "walk each configured pool's signature history once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.store.Close()

			trades := tradestore.New()
			engine := &ingest.Engine{
				Client:     d.client,
				Pools:      d.pools,
				Trades:     trades,
				Events:     d.store,
				PoolStates: d.store,
				ProgramID:  domain.PubKey(d.cfg.ProgramID),
				Log:        d.log,
			}
			go func() { _ = persist.RunTradeSink(ctx, trades, d.store, d.log) }()

			if maxPerPool <= 0 {
				maxPerPool = d.cfg.BackfillMaxPerPool
			}
			if pageSize <= 0 {
				pageSize = d.cfg.BackfillPageSize
			}
			for _, p := range d.cfg.PoolList() {
				walked, err := engine.Backfill(ctx, domain.PubKey(p), ingest.BackfillConfig{PageSize: pageSize, MaxSignatures: maxPerPool})
				if err != nil {
					d.log.WithError(err).WithField("pool", p).Error("backfill: pool failed")
					continue
				}
				d.log.WithField("pool", p).WithField("walked", walked).Info("backfill: pool complete")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPerPool, "max-per-pool", 0, "override backfillMaxPerPool")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "override backfillPageSize")
	return cmd
}

func configInitCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config-init",
		Short: "write a starter YAML config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteDefaultYAML(out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "config.yaml", "output path")
	return cmd
}
