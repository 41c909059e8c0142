// Package httpapi implements the thin routing façade (C14): read-only
// endpoints over the stores/persister plus the WS ticket-minting
// endpoint, returning structured `{error, pool?}` bodies and never a
// 500 for ordinary indexing lag.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/candles"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/domain"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/persist"
	"github.com/Cipherlabsx/orbit-finance-dex-adapter/internal/wshub"
)

// errBody is the structured error envelope every endpoint returns on
// failure: never a bare 500, always {error, pool?}.
type errBody struct {
	Error string        `json:"error"`
	Pool  domain.PubKey `json:"pool,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, pool domain.PubKey, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errBody{Error: msg, Pool: pool})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Server wires the read endpoints and the ticket mint endpoint over a
// persist.StateStore and a wshub.TicketStore. Candle reads go through
// the aggregator so the gap-filled, memory-backed read contract holds
// at the HTTP boundary too.
type Server struct {
	store   persist.StateStore
	candles *candles.Aggregator
	tickets *wshub.TicketStore
	log     *logrus.Logger
}

// NewServer constructs the façade's router.
func NewServer(store persist.StateStore, candleAgg *candles.Aggregator, tickets *wshub.TicketStore, corsOrigins []string, log *logrus.Logger) http.Handler {
	s := &Server{store: store, candles: candleAgg, tickets: tickets, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(corsOrigins))

	r.Get("/healthz", s.handleHealthz)
	r.Post("/ws-ticket", s.handleMintTicket)
	r.Route("/pools/{poolId}", func(r chi.Router) {
		r.Get("/", s.handlePool)
		r.Get("/trades", s.handleTrades)
		r.Get("/candles", s.handleCandles)
	})
	r.Get("/events", s.handleEvents)

	return r
}

func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if _, ok := set[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMintTicket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"ticket": s.tickets.Mint()})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	poolID := domain.PubKey(chi.URLParam(r, "poolId"))
	pool, err := s.store.Pool(r.Context(), poolID)
	if err != nil {
		s.log.WithError(err).WithField("pool", poolID).Warn("httpapi: read pool failed")
		writeErr(w, http.StatusOK, poolID, "not available")
		return
	}
	if pool == nil {
		writeErr(w, http.StatusNotFound, poolID, "pool not found")
		return
	}
	writeJSON(w, pool)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	poolID := domain.PubKey(chi.URLParam(r, "poolId"))
	limit := queryInt(r, "limit", 100)
	trades, err := s.store.RecentTrades(r.Context(), poolID, limit)
	if err != nil {
		s.log.WithError(err).WithField("pool", poolID).Warn("httpapi: read trades failed")
		writeErr(w, http.StatusOK, poolID, "not available")
		return
	}
	writeJSON(w, trades)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	poolID := domain.PubKey(chi.URLParam(r, "poolId"))
	tf := domain.Timeframe(r.URL.Query().Get("tf"))
	if tf == "" {
		tf = domain.TF1m
	}
	limit := queryInt(r, "limit", 200)
	out, err := s.candles.ReadCandles(r.Context(), s.store, poolID, tf, limit)
	if err != nil {
		s.log.WithError(err).WithField("pool", poolID).Warn("httpapi: read candles failed")
		writeErr(w, http.StatusOK, poolID, "not available")
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := persist.EventFilter{
		ProgramID: domain.PubKey(r.URL.Query().Get("programId")),
		EventType: r.URL.Query().Get("eventType"),
		Limit:     queryInt(r, "limit", 100),
	}
	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.log.WithError(err).Warn("httpapi: list events failed")
		writeErr(w, http.StatusOK, "", "not available")
		return
	}
	writeJSON(w, events)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
