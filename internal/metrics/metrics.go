// Package metrics exposes this process's Prometheus gauges and
// counters: one registry built at construction, one /metrics handler
// served over promhttp.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge this process updates.
type Metrics struct {
	registry *prometheus.Registry

	TradesProcessed     prometheus.Counter
	EventsPersisted     prometheus.Counter
	SignaturesProcessed prometheus.Counter
	ProcessingErrors    prometheus.Counter
	DedupSetSize        prometheus.Gauge
	WSClientCount       prometheus.Gauge
	PoolCacheHits       prometheus.Counter
	PoolCacheMisses     prometheus.Counter
	IngestLagSlots      prometheus.Gauge
}

// New constructs and registers every metric.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TradesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_trades_processed_total",
			Help: "Total number of trades derived and inserted into the trade store.",
		}),
		EventsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_events_persisted_total",
			Help: "Total number of decoded event rows persisted.",
		}),
		SignaturesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_signatures_processed_total",
			Help: "Total number of signatures run through the ingestion pipeline.",
		}),
		ProcessingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_processing_errors_total",
			Help: "Total number of non-transient processing failures.",
		}),
		DedupSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dex_indexer_dedup_set_size",
			Help: "Current number of (signature, pool) entries tracked by the trade store's dedup set.",
		}),
		WSClientCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dex_indexer_ws_clients",
			Help: "Current number of open websocket connections.",
		}),
		PoolCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_pool_cache_hits_total",
			Help: "Total number of pool-cache reads served from cache.",
		}),
		PoolCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dex_indexer_pool_cache_misses_total",
			Help: "Total number of pool-cache reads that required an RPC call.",
		}),
		IngestLagSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dex_indexer_ingest_lag_slots",
			Help: "Difference between the chain's current slot and the last slot this process fully processed.",
		}),
	}
	reg.MustRegister(
		m.TradesProcessed, m.EventsPersisted, m.SignaturesProcessed, m.ProcessingErrors,
		m.DedupSetSize, m.WSClientCount, m.PoolCacheHits, m.PoolCacheMisses, m.IngestLagSlots,
	)
	return m
}

// Serve runs the /metrics HTTP server until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
