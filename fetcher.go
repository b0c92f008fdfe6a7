package dealscache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RemoteFunc performs one upstream call. It should honor ctx; if it does not,
// a late result is still written to the cache when it arrives.
type RemoteFunc[V any] func(ctx context.Context) (V, error)

// Messages are the user-facing texts attached to Failures, one per kind.
type Messages struct {
	Timeout   string
	Transport string
	Empty     string
}

var defaultMessages = Messages{
	Timeout:   "timeout",
	Transport: "network error",
	Empty:     "no data available",
}

func (m Messages) withDefaults() Messages {
	return Messages{
		Timeout:   coalesce(m.Timeout, defaultMessages.Timeout),
		Transport: coalesce(m.Transport, defaultMessages.Transport),
		Empty:     coalesce(m.Empty, defaultMessages.Empty),
	}
}

func (m Messages) forKind(k ErrorKind) string {
	switch k {
	case KindTimeout:
		return m.Timeout
	case KindEmpty:
		return m.Empty
	default:
		return m.Transport
	}
}

// Request describes one bounded fetch.
type Request[V any] struct {
	Key     string
	TTL     time.Duration
	Timeout time.Duration // <=0 => 3s
	Force   bool          // skip the freshness check
	Call    RemoteFunc[V]

	// IsEmpty, when set, turns a successful but unusable value into an
	// empty-result Failure.
	IsEmpty  func(V) bool
	Messages Messages
}

// Fetcher runs remote calls under a deadline and maps their outcome onto a
// Result, falling back to the last stored value on failure.
type Fetcher[V any] struct {
	store *Store[V]
	log   Logger
	hooks Hooks
	clock Clock
}

func NewFetcher[V any](store *Store[V], log Logger, hooks Hooks) *Fetcher[V] {
	return &Fetcher[V]{
		store: store,
		log:   coalesce[Logger](log, NopLogger{}),
		hooks: coalesce[Hooks](hooks, NopHooks{}),
		clock: store.clock,
	}
}

type outcome[V any] struct {
	val V
	err error
}

// Fetch never returns a Pending Result and never panics on behalf of Call.
func (f *Fetcher[V]) Fetch(ctx context.Context, req Request[V]) Result[V] {
	msgs := req.Messages.withDefaults()

	if !req.Force {
		if rec, ok := f.store.Get(ctx, req.Key); ok && f.store.IsFresh(rec, req.TTL) {
			f.store.RecordHit()
			f.hooks.CacheHit(req.Key)
			return Success(rec.Value)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	start := f.clock.Now()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[V], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome[V]{err: fmt.Errorf("%w: panic: %v", ErrTransport, p)}
			}
		}()
		v, err := req.Call(cctx)
		done <- outcome[V]{val: v, err: err}
	}()

	select {
	case out := <-done:
		latency := f.clock.Now().Sub(start)
		f.store.RecordMiss(latency)
		f.hooks.CacheMiss(req.Key, latency)
		if out.err == nil && req.IsEmpty != nil && req.IsEmpty(out.val) {
			out.err = ErrEmptyResult
		}
		if out.err != nil {
			return f.fail(ctx, req.Key, classify(out.err), out.err, msgs)
		}
		if err := f.store.Put(ctx, req.Key, out.val); err != nil {
			f.log.Warn("store put failed", Fields{"key": req.Key, "err": err})
		}
		return Success(out.val)

	case <-cctx.Done():
		latency := f.clock.Now().Sub(start)
		f.store.RecordMiss(latency)
		f.hooks.CacheMiss(req.Key, latency)
		go f.awaitLate(req, done)
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return f.fail(ctx, req.Key, KindTimeout, cctx.Err(), msgs)
		}
		return f.fail(ctx, req.Key, KindTransport, cctx.Err(), msgs)
	}
}

// fail builds the Failure for key, attaching whatever record the store still
// holds, fresh or not.
func (f *Fetcher[V]) fail(ctx context.Context, key string, kind ErrorKind, err error, msgs Messages) Result[V] {
	cause := &FetchError{Key: key, Kind: kind, Err: err}
	msg := msgs.forKind(kind)

	rec, ok := f.store.Get(ctx, key)
	f.hooks.FetchFailed(key, kind, ok)
	if !ok {
		f.log.Warn("fetch failed", Fields{"key": key, "kind": kind.String(), "err": err})
		return Failure[V](msg, cause)
	}
	f.log.Info("fetch failed; serving stale value", Fields{
		"key":  key,
		"kind": kind.String(),
		"age":  rec.Age(f.clock.Now()).String(),
		"err":  err,
	})
	return FailureWithStale(msg, rec.Value, cause)
}

// awaitLate stores a result that arrives after its caller has given up.
func (f *Fetcher[V]) awaitLate(req Request[V], done <-chan outcome[V]) {
	out := <-done
	if out.err != nil {
		return
	}
	if req.IsEmpty != nil && req.IsEmpty(out.val) {
		return
	}
	if err := f.store.Put(context.Background(), req.Key, out.val); err != nil {
		f.log.Debug("late result not stored", Fields{"key": req.Key, "err": err})
		return
	}
	f.hooks.LateWrite(req.Key)
	f.log.Debug("stored late result", Fields{"key": req.Key})
}
