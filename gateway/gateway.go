// Package gateway exposes a DealsCache over HTTP with chi.
//
//	GET    /v1/search?q=<query>[&refresh=1]
//	GET    /v1/popular[?limit=<n>][&refresh=1]
//	GET    /v1/health[?refresh=1]
//	GET    /v1/history?product=<name>[&days=<n>][&platform=<p>][&refresh=1]
//	GET    /v1/cache/stats
//	DELETE /v1/cache[?older_than=<minutes>]
//
// Every /v1 data route answers with an Envelope. A Failure that carries a
// stale value is still a 200 with stale=true.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/dealscache"
	"github.com/unkn0wn-root/dealscache/upstream"
)

// Cache is the part of DealsCache the gateway serves.
type Cache interface {
	SearchNow(ctx context.Context, query string, force bool) (dealscache.Result[[]dealscache.Deal], error)
	PopularNow(ctx context.Context, limit int, force bool) (dealscache.Result[[]dealscache.Deal], error)
	HealthNow(ctx context.Context, force bool) (dealscache.Result[dealscache.HealthStatus], error)
	HistoryNow(ctx context.Context, q dealscache.HistoryQuery, force bool) (dealscache.Result[dealscache.PriceHistory], error)
	Statistics() dealscache.Statistics
	OperationStatistics() map[string]dealscache.Statistics
	Clear(ctx context.Context, olderThanMinutes int) int
	InFlight() int
}

var _ Cache = (*dealscache.DealsCache)(nil)

type Options struct {
	Logger dealscache.Logger
}

type handler struct {
	cache Cache
	log   dealscache.Logger
}

// New returns the routed handler.
func New(cache Cache, opts Options) http.Handler {
	h := &handler{cache: cache, log: opts.Logger}
	if h.log == nil {
		h.log = dealscache.NopLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", h.search)
		r.Get("/popular", h.popular)
		r.Get("/health", h.health)
		r.Get("/history", h.history)
		r.Get("/cache/stats", h.stats)
		r.Delete("/cache", h.clear)
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(upstream.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(upstream.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(upstream.WithRequestID(r.Context(), id)))
	})
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("http request", dealscache.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": upstream.RequestID(r.Context()),
		})
	})
}

// detached notes a client that went away before its result was ready. The
// response is left unwritten.
func (h *handler) detached(r *http.Request, op string, err error) {
	h.log.Debug("caller detached", dealscache.Fields{
		"op":         op,
		"err":        err,
		"request_id": upstream.RequestID(r.Context()),
	})
}

func refresh(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return v
}

// intParam returns def when key is absent and ok=false when it is malformed.
func intParam(r *http.Request, key string, def int) (int, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	res, err := h.cache.SearchNow(r.Context(), r.URL.Query().Get("q"), refresh(r))
	if err != nil {
		h.detached(r, dealscache.OpSearch, err)
		return
	}
	writeResult(w, res)
}

func (h *handler) popular(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 0)
	if !ok {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	res, err := h.cache.PopularNow(r.Context(), limit, refresh(r))
	if err != nil {
		h.detached(r, dealscache.OpPopular, err)
		return
	}
	writeResult(w, res)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	res, err := h.cache.HealthNow(r.Context(), refresh(r))
	if err != nil {
		h.detached(r, dealscache.OpHealth, err)
		return
	}
	writeResult(w, res)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(r, "days", 0)
	if !ok {
		writeBadRequest(w, "days must be a non-negative integer")
		return
	}
	q := dealscache.HistoryQuery{
		Product:    r.URL.Query().Get("product"),
		PeriodDays: days,
		Platform:   r.URL.Query().Get("platform"),
	}
	res, err := h.cache.HistoryNow(r.Context(), q, refresh(r))
	if err != nil {
		h.detached(r, dealscache.OpHistory, err)
		return
	}
	writeResult(w, res)
}

func (h *handler) stats(w http.ResponseWriter, _ *http.Request) {
	ops := make(map[string]StatsView)
	for name, st := range h.cache.OperationStatistics() {
		ops[name] = viewStats(st)
	}
	writeJSON(w, http.StatusOK, struct {
		StatsView
		InFlight   int                  `json:"in_flight"`
		Operations map[string]StatsView `json:"operations"`
	}{viewStats(h.cache.Statistics()), h.cache.InFlight(), ops})
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	minutes, ok := intParam(r, "older_than", 0)
	if !ok {
		writeBadRequest(w, "older_than must be a non-negative number of minutes")
		return
	}
	removed := h.cache.Clear(r.Context(), minutes)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
