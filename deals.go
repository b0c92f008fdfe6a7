package dealscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	c "github.com/unkn0wn-root/dealscache/codec"
	"github.com/unkn0wn-root/dealscache/internal/keys"
	pr "github.com/unkn0wn-root/dealscache/provider"
	"github.com/unkn0wn-root/dealscache/provider/memory"
)

const (
	OpSearch  = "search"
	OpPopular = "popular"
	OpHealth  = "health"
	OpHistory = "history"

	defaultPopularLimit = 20
	defaultHistoryDays  = 30
)

var (
	defaultSearch  = OperationConfig{TTL: 5 * time.Minute, Timeout: 3 * time.Second}
	defaultPopular = OperationConfig{TTL: 10 * time.Minute, Timeout: 3 * time.Second}
	defaultHealth  = OperationConfig{TTL: 30 * time.Second, Timeout: 2 * time.Second}
	defaultHistory = OperationConfig{TTL: 30 * time.Minute, Timeout: 2 * time.Second}
)

// Options configure a DealsCache. The zero value is usable.
type Options struct {
	// Provider holds encoded records for all operations, each under its own
	// namespace. nil => one in-process map owned by the DealsCache.
	Provider pr.Provider
	Logger   Logger
	Hooks    Hooks
	Clock    Clock

	Search  OperationConfig
	Popular OperationConfig
	Health  OperationConfig
	History OperationConfig

	MaxEntries    int           // per operation; 0 => 10000; <0 => unlimited
	Retention     time.Duration // stale fallback window; 0 => 24h
	SweepInterval time.Duration // 0 => 10m; <0 disables
	MaxValueBytes int           // encoded size cap per record; 0 => no cap
	Codec         string        // "msgpack" (default), "json" or "cbor"
}

// DealsCache is the data-access layer in front of an Upstream: every
// operation serves fresh cached values, coalesces concurrent misses, bounds
// upstream calls by a deadline and degrades to the last known value.
type DealsCache struct {
	search  *Endpoint[string, []Deal]
	popular *Endpoint[int, []Deal]
	health  *Endpoint[struct{}, HealthStatus]
	history *Endpoint[HistoryQuery, PriceHistory]

	provider     pr.Provider
	ownsProvider bool
	closers      []func(context.Context) error
	log          Logger
}

// New builds a DealsCache over up.
func New(up Upstream, opts Options) (*DealsCache, error) {
	if up == nil {
		return nil, errors.New("dealscache: upstream is required")
	}
	if opts.Retention < 0 {
		return nil, fmt.Errorf("dealscache: negative retention %s", opts.Retention)
	}
	if opts.MaxValueBytes < 0 {
		return nil, fmt.Errorf("dealscache: negative max value bytes %d", opts.MaxValueBytes)
	}

	d := &DealsCache{
		provider: opts.Provider,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
	}
	if d.provider == nil {
		d.provider = memory.New()
		d.ownsProvider = true
	}
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})

	var err error
	d.search, err = newEndpoint(d, opts, hooks, EndpointOptions[string, []Deal]{
		Name:   OpSearch,
		Config: opts.Search.withDefaults(defaultSearch),
		Key: func(q string) (string, error) {
			if keys.Normalize(q) == "" {
				return "", fmt.Errorf("%w: empty search query", ErrInvalidArgument)
			}
			return keys.Search(q), nil
		},
		Call:     func(ctx context.Context, q string) ([]Deal, error) { return up.Search(ctx, q) },
		Messages: Messages{Empty: "no deals found"},
	})
	if err != nil {
		return nil, d.abort(err)
	}

	d.popular, err = newEndpoint(d, opts, hooks, EndpointOptions[int, []Deal]{
		Name:     OpPopular,
		Config:   opts.Popular.withDefaults(defaultPopular),
		Key:      func(limit int) (string, error) { return keys.Popular(limit), nil },
		Call:     func(ctx context.Context, limit int) ([]Deal, error) { return up.Popular(ctx, limit) },
		IsEmpty:  func(v []Deal) bool { return len(v) == 0 },
		Messages: Messages{Empty: "no popular deals right now"},
	})
	if err != nil {
		return nil, d.abort(err)
	}

	d.health, err = newEndpoint(d, opts, hooks, EndpointOptions[struct{}, HealthStatus]{
		Name:     OpHealth,
		Config:   opts.Health.withDefaults(defaultHealth),
		Key:      func(struct{}) (string, error) { return keys.Health(), nil },
		Call:     func(ctx context.Context, _ struct{}) (HealthStatus, error) { return up.Health(ctx) },
		IsEmpty:  func(v HealthStatus) bool { return strings.TrimSpace(v.Status) == "" },
		Messages: Messages{Empty: "service status unavailable"},
	})
	if err != nil {
		return nil, d.abort(err)
	}

	d.history, err = newEndpoint(d, opts, hooks, EndpointOptions[HistoryQuery, PriceHistory]{
		Name:   OpHistory,
		Config: opts.History.withDefaults(defaultHistory),
		Key: func(q HistoryQuery) (string, error) {
			if keys.Normalize(q.Product) == "" {
				return "", fmt.Errorf("%w: empty product name", ErrInvalidArgument)
			}
			return keys.History(q.Product, q.PeriodDays, q.Platform), nil
		},
		Call:     func(ctx context.Context, q HistoryQuery) (PriceHistory, error) { return up.PriceHistory(ctx, q) },
		IsEmpty:  func(v PriceHistory) bool { return len(v.Points) == 0 },
		Messages: Messages{Empty: "no price data collected yet"},
	})
	if err != nil {
		return nil, d.abort(err)
	}
	return d, nil
}

func newEndpoint[P, V any](d *DealsCache, opts Options, hooks Hooks, eo EndpointOptions[P, V]) (*Endpoint[P, V], error) {
	codec, err := c.ByName[V](opts.Codec)
	if err != nil {
		return nil, err
	}
	if opts.MaxValueBytes > 0 {
		codec = c.Limit[V]{Inner: codec, Max: opts.MaxValueBytes}
	}
	store, err := NewStore(StoreOptions[V]{
		Namespace:     eo.Name,
		Provider:      d.provider,
		Codec:         codec,
		Logger:        opts.Logger,
		Hooks:         hooks,
		Clock:         opts.Clock,
		MaxEntries:    opts.MaxEntries,
		Retention:     opts.Retention,
		SweepInterval: opts.SweepInterval,
	})
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, store.Close)

	eo.Store = store
	eo.Logger = opts.Logger
	eo.Hooks = hooks
	return NewEndpoint(eo)
}

func (d *DealsCache) abort(err error) error {
	_ = d.Close(context.Background())
	return err
}

// Search streams the deals matching query. Queries are matched after case
// folding and whitespace normalization. An empty result is a Success.
func (d *DealsCache) Search(ctx context.Context, query string, force bool) <-chan Result[[]Deal] {
	return d.search.Stream(ctx, query, force)
}

// Popular streams up to limit popular deals; limit <= 0 means 20.
func (d *DealsCache) Popular(ctx context.Context, limit int, force bool) <-chan Result[[]Deal] {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return d.popular.Stream(ctx, limit, force)
}

// Health streams the backend status.
func (d *DealsCache) Health(ctx context.Context, force bool) <-chan Result[HealthStatus] {
	return d.health.Stream(ctx, struct{}{}, force)
}

// History streams a product's price history; PeriodDays <= 0 means 30.
func (d *DealsCache) History(ctx context.Context, q HistoryQuery, force bool) <-chan Result[PriceHistory] {
	return d.history.Stream(ctx, normalizeHistory(q), force)
}

// SearchNow, PopularNow, HealthNow and HistoryNow block for the terminal
// Result. The error is non-nil only when ctx ends first.

func (d *DealsCache) SearchNow(ctx context.Context, query string, force bool) (Result[[]Deal], error) {
	return d.search.Get(ctx, query, force)
}

func (d *DealsCache) PopularNow(ctx context.Context, limit int, force bool) (Result[[]Deal], error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return d.popular.Get(ctx, limit, force)
}

func (d *DealsCache) HealthNow(ctx context.Context, force bool) (Result[HealthStatus], error) {
	return d.health.Get(ctx, struct{}{}, force)
}

func (d *DealsCache) HistoryNow(ctx context.Context, q HistoryQuery, force bool) (Result[PriceHistory], error) {
	return d.history.Get(ctx, normalizeHistory(q), force)
}

func normalizeHistory(q HistoryQuery) HistoryQuery {
	if q.PeriodDays <= 0 {
		q.PeriodDays = defaultHistoryDays
	}
	return q
}

// Statistics aggregates all operations.
func (d *DealsCache) Statistics() Statistics {
	var st Statistics
	for _, s := range d.OperationStatistics() {
		st = st.Merge(s)
	}
	return st
}

// OperationStatistics snapshots each operation separately, keyed by name.
func (d *DealsCache) OperationStatistics() map[string]Statistics {
	return map[string]Statistics{
		OpSearch:  d.search.Statistics(),
		OpPopular: d.popular.Statistics(),
		OpHealth:  d.health.Statistics(),
		OpHistory: d.history.Statistics(),
	}
}

// Clear removes records older than olderThanMinutes; 0 or less clears
// everything. In-flight fetches are unaffected and still store their results.
func (d *DealsCache) Clear(ctx context.Context, olderThanMinutes int) int {
	maxAge := time.Duration(olderThanMinutes) * time.Minute
	n := d.search.Store().EvictOlderThan(ctx, maxAge)
	n += d.popular.Store().EvictOlderThan(ctx, maxAge)
	n += d.health.Store().EvictOlderThan(ctx, maxAge)
	n += d.history.Store().EvictOlderThan(ctx, maxAge)
	d.log.Info("cache cleared", Fields{"older_than_minutes": olderThanMinutes, "removed": n})
	return n
}

// InFlight reports unresolved upstream calls across all operations.
func (d *DealsCache) InFlight() int {
	return d.search.InFlight() + d.popular.InFlight() + d.health.InFlight() + d.history.InFlight()
}

// Close stops background sweeps and releases the provider if New created it.
func (d *DealsCache) Close(ctx context.Context) error {
	var errs []error
	for _, cl := range d.closers {
		errs = append(errs, cl(ctx))
	}
	d.closers = nil
	if d.ownsProvider {
		errs = append(errs, d.provider.Close(ctx))
		d.ownsProvider = false
	}
	return errors.Join(errs...)
}
