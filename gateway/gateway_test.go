package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/dealscache"
	"github.com/unkn0wn-root/dealscache/upstream"
)

type fakeUpstream struct {
	fail    atomic.Bool
	calls   atomic.Int32
	lastReq atomic.Value // request id seen by the last call
}

func (f *fakeUpstream) note(ctx context.Context) error {
	f.calls.Add(1)
	f.lastReq.Store(upstream.RequestID(ctx))
	if f.fail.Load() {
		return errors.New("backend down")
	}
	return nil
}

func (f *fakeUpstream) Search(ctx context.Context, q string) ([]dealscache.Deal, error) {
	if err := f.note(ctx); err != nil {
		return nil, err
	}
	if q == "nothing" {
		return nil, dealscache.ErrEmptyResult
	}
	return []dealscache.Deal{{ID: "1", Title: q, Price: 10}}, nil
}

func (f *fakeUpstream) Popular(ctx context.Context, limit int) ([]dealscache.Deal, error) {
	if err := f.note(ctx); err != nil {
		return nil, err
	}
	out := make([]dealscache.Deal, limit)
	for i := range out {
		out[i] = dealscache.Deal{ID: string(rune('a' + i))}
	}
	return out, nil
}

func (f *fakeUpstream) Health(ctx context.Context) (dealscache.HealthStatus, error) {
	if err := f.note(ctx); err != nil {
		return dealscache.HealthStatus{}, err
	}
	return dealscache.HealthStatus{Status: "ok"}, nil
}

func (f *fakeUpstream) PriceHistory(ctx context.Context, q dealscache.HistoryQuery) (dealscache.PriceHistory, error) {
	if err := f.note(ctx); err != nil {
		return dealscache.PriceHistory{}, err
	}
	return dealscache.PriceHistory{
		ProductName: q.Product,
		PeriodDays:  q.PeriodDays,
		Points:      []dealscache.PricePoint{{Date: "2025-02-01", Price: 99}},
	}, nil
}

func setup(t *testing.T, opts dealscache.Options) (http.Handler, *fakeUpstream) {
	t.Helper()
	up := &fakeUpstream{}
	opts.SweepInterval = -1
	dc, err := dealscache.New(up, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dc.Close(context.Background()) })
	return New(dc, Options{}), up
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Stale  bool            `json:"stale"`
	Error  string          `json:"error"`
	Kind   string          `json:"kind"`
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestSearchServesAndCaches(t *testing.T) {
	h, up := setup(t, dealscache.Options{})

	rec, env := do(t, h, http.MethodGet, "/v1/search?q=galaxy")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", env.Status)
	require.False(t, env.Stale)

	var deals []dealscache.Deal
	require.NoError(t, json.Unmarshal(env.Data, &deals))
	require.Equal(t, "galaxy", deals[0].Title)

	do(t, h, http.MethodGet, "/v1/search?q=Galaxy")
	require.Equal(t, int32(1), up.calls.Load())

	do(t, h, http.MethodGet, "/v1/search?q=galaxy&refresh=1")
	require.Equal(t, int32(2), up.calls.Load())
}

func TestRequestIDIsForwarded(t *testing.T) {
	h, up := setup(t, dealscache.Options{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(upstream.RequestIDHeader, "abc-123")
	h.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", rec.Header().Get(upstream.RequestIDHeader))
	require.Equal(t, "abc-123", up.lastReq.Load())

	rec, _ = do(t, h, http.MethodGet, "/livez")
	require.Len(t, rec.Header().Get(upstream.RequestIDHeader), 36, "generated ids are uuids")
}

func TestFailureStatusCodes(t *testing.T) {
	h, up := setup(t, dealscache.Options{})

	rec, env := do(t, h, http.MethodGet, "/v1/search?q=")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid", env.Kind)

	rec, env = do(t, h, http.MethodGet, "/v1/search?q=nothing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "no deals found", env.Error)

	up.fail.Store(true)
	rec, env = do(t, h, http.MethodGet, "/v1/health")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "failure", env.Status)
	require.Equal(t, "transport", env.Kind)

	rec, _ = do(t, h, http.MethodGet, "/v1/popular?limit=-3")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaleFailureIsServed(t *testing.T) {
	h, up := setup(t, dealscache.Options{History: dealscache.OperationConfig{TTL: time.Nanosecond}})

	rec, _ := do(t, h, http.MethodGet, "/v1/history?product=airpods&days=30")
	require.Equal(t, http.StatusOK, rec.Code)

	up.fail.Store(true)
	rec, env := do(t, h, http.MethodGet, "/v1/history?product=airpods&days=30")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "failure", env.Status)
	require.True(t, env.Stale)
	require.Equal(t, "network error", env.Error)

	var hist dealscache.PriceHistory
	require.NoError(t, json.Unmarshal(env.Data, &hist))
	require.Equal(t, "airpods", hist.ProductName)
}

func TestStatsAndClear(t *testing.T) {
	h, _ := setup(t, dealscache.Options{})

	do(t, h, http.MethodGet, "/v1/popular?limit=3")
	do(t, h, http.MethodGet, "/v1/popular?limit=3")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		StatsView
		Operations map[string]StatsView `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.TotalEntries)
	require.Equal(t, uint64(1), stats.HitCount)
	require.InDelta(t, 0.5, stats.HitRate, 1e-9)
	require.Equal(t, uint64(1), stats.Operations[dealscache.OpPopular].MissCount)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"removed":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/cache?older_than=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type goneCache struct {
	*dealscache.DealsCache
}

func (goneCache) HealthNow(ctx context.Context, _ bool) (dealscache.Result[dealscache.HealthStatus], error) {
	return dealscache.Pending[dealscache.HealthStatus](), context.Canceled
}

type debugLog struct {
	dealscache.NopLogger
	msgs   []string
	fields []dealscache.Fields
}

func (l *debugLog) Debug(msg string, f dealscache.Fields) {
	l.msgs = append(l.msgs, msg)
	l.fields = append(l.fields, f)
}

func TestDetachedCallerGetsNoBody(t *testing.T) {
	dc, err := dealscache.New(&fakeUpstream{}, dealscache.Options{SweepInterval: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dc.Close(context.Background()) })

	log := &debugLog{}
	h := New(goneCache{dc}, Options{Logger: log})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set(upstream.RequestIDHeader, "gone-1")
	h.ServeHTTP(rec, req)

	require.Empty(t, rec.Body.String())
	require.Empty(t, rec.Header().Get("Content-Type"))

	var found bool
	for i, m := range log.msgs {
		if m == "caller detached" {
			found = true
			require.Equal(t, dealscache.OpHealth, log.fields[i]["op"])
			require.Equal(t, "gone-1", log.fields[i]["request_id"])
			require.ErrorIs(t, log.fields[i]["err"].(error), context.Canceled)
		}
	}
	require.True(t, found)
}
