package dealscache

import (
	"context"
	"errors"
	"time"
)

// OperationConfig is the per-operation freshness window and upstream deadline.
type OperationConfig struct {
	TTL     time.Duration
	Timeout time.Duration
}

func (c OperationConfig) withDefaults(def OperationConfig) OperationConfig {
	return OperationConfig{
		TTL:     coalesce(c.TTL, def.TTL),
		Timeout: coalesce(c.Timeout, def.Timeout),
	}
}

// EndpointOptions wire one logical operation. Store, Key and Call are required.
type EndpointOptions[P, V any] struct {
	Name     string
	Store    *Store[V]
	Config   OperationConfig
	Key      func(P) (string, error)
	Call     func(ctx context.Context, params P) (V, error)
	IsEmpty  func(V) bool
	Messages Messages
	Logger   Logger
	Hooks    Hooks
}

// Endpoint runs the cache-then-coalesced-fetch template for one operation:
// a fresh record answers immediately, otherwise all concurrent callers for the
// key share one bounded upstream call.
type Endpoint[P, V any] struct {
	name     string
	store    *Store[V]
	registry *Registry[V]
	fetcher  *Fetcher[V]
	cfg      OperationConfig
	key      func(P) (string, error)
	call     func(context.Context, P) (V, error)
	isEmpty  func(V) bool
	msgs     Messages
	log      Logger
	hooks    Hooks
}

func NewEndpoint[P, V any](opts EndpointOptions[P, V]) (*Endpoint[P, V], error) {
	if opts.Store == nil {
		return nil, errors.New("dealscache: endpoint store is required")
	}
	if opts.Key == nil || opts.Call == nil {
		return nil, errors.New("dealscache: endpoint key and call are required")
	}
	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})
	return &Endpoint[P, V]{
		name:     coalesce(opts.Name, "endpoint"),
		store:    opts.Store,
		registry: NewRegistry[V](log, hooks),
		fetcher:  NewFetcher(opts.Store, log, hooks),
		cfg:      opts.Config.withDefaults(OperationConfig{TTL: defaultTTL, Timeout: defaultTimeout}),
		key:      opts.Key,
		call:     opts.Call,
		isEmpty:  opts.IsEmpty,
		msgs:     opts.Messages.withDefaults(),
		log:      log,
		hooks:    hooks,
	}, nil
}

// Get returns the terminal Result for params. The error is non-nil only when
// ctx ends before the shared work resolves; the work itself continues.
func (e *Endpoint[P, V]) Get(ctx context.Context, params P, force bool) (Result[V], error) {
	key, err := e.key(params)
	if err != nil {
		return Failure[V](err.Error(), &FetchError{Kind: KindInvalid, Err: err}), nil
	}

	if !force {
		if rec, ok := e.store.Get(ctx, key); ok && e.store.IsFresh(rec, e.cfg.TTL) {
			e.store.RecordHit()
			e.hooks.CacheHit(key)
			return Success(rec.Value), nil
		}
	}

	// The shared work must outlive whichever caller happened to start it.
	detached := context.WithoutCancel(ctx)
	fut := e.registry.JoinOrStart(key, func() Result[V] {
		return e.fetcher.Fetch(detached, Request[V]{
			Key:     key,
			TTL:     e.cfg.TTL,
			Timeout: e.cfg.Timeout,
			Force:   force,
			Call: func(ctx context.Context) (V, error) {
				return e.call(ctx, params)
			},
			IsEmpty:  e.isEmpty,
			Messages: e.msgs,
		})
	})
	return fut.Await(ctx)
}

// Stream emits Pending followed by exactly one terminal Result, then closes.
// If ctx ends first the channel closes without a terminal Result.
func (e *Endpoint[P, V]) Stream(ctx context.Context, params P, force bool) <-chan Result[V] {
	ch := make(chan Result[V], 2)
	ch <- Pending[V]()
	go func() {
		defer close(ch)
		res, err := e.Get(ctx, params, force)
		if err != nil {
			e.log.Debug("caller detached", Fields{"op": e.name, "err": err})
			return
		}
		ch <- res
	}()
	return ch
}

// Invalidate drops the cached record for params.
func (e *Endpoint[P, V]) Invalidate(ctx context.Context, params P) bool {
	key, err := e.key(params)
	if err != nil {
		return false
	}
	return e.store.Delete(ctx, key)
}

// Key exposes the cache key params map to.
func (e *Endpoint[P, V]) Key(params P) (string, error) { return e.key(params) }

func (e *Endpoint[P, V]) Name() string            { return e.name }
func (e *Endpoint[P, V]) Config() OperationConfig { return e.cfg }
func (e *Endpoint[P, V]) Store() *Store[V]        { return e.store }
func (e *Endpoint[P, V]) Statistics() Statistics  { return e.store.Statistics() }
func (e *Endpoint[P, V]) InFlight() int           { return e.registry.InFlight() }

// Await drains a stream and returns its last Result. ok is false when the
// stream closed without a terminal Result or ctx ended first.
func Await[V any](ctx context.Context, ch <-chan Result[V]) (last Result[V], ok bool) {
	for {
		select {
		case r, open := <-ch:
			if !open {
				return last, last.IsTerminal()
			}
			last = r
		case <-ctx.Done():
			return last, false
		}
	}
}
