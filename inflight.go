package dealscache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Future is a caller's handle on shared in-flight work. Awaiting it never
// affects the work or the other callers sharing it.
type Future[V any] struct {
	ch <-chan singleflight.Result
}

// Await blocks until the shared work resolves or ctx ends. On ctx end the
// caller is detached and ctx.Err() is returned; the work keeps running.
func (f Future[V]) Await(ctx context.Context) (Result[V], error) {
	select {
	case r := <-f.ch:
		res, _ := r.Val.(Result[V])
		return res, nil
	case <-ctx.Done():
		return Result[V]{}, ctx.Err()
	}
}

// Registry tracks one in-flight fetch per key so concurrent callers share a
// single upstream call. A key is released as soon as its work resolves; the
// next miss starts fresh work instead of replaying a finished one.
type Registry[V any] struct {
	group singleflight.Group
	log   Logger
	hooks Hooks

	mu     sync.Mutex
	active map[string]struct{}
}

func NewRegistry[V any](log Logger, hooks Hooks) *Registry[V] {
	return &Registry[V]{
		log:    coalesce[Logger](log, NopLogger{}),
		hooks:  coalesce[Hooks](hooks, NopHooks{}),
		active: make(map[string]struct{}),
	}
}

// JoinOrStart returns the Future for key, calling start only when no work is
// in flight for it. start runs on its own goroutine and must not depend on any
// single caller's cancellation. A panic in start resolves the Future with a
// transport Failure and releases the key.
func (r *Registry[V]) JoinOrStart(key string, start func() Result[V]) Future[V] {
	// Best-effort signal for hooks and logs; singleflight decides the join.
	if r.busy(key) {
		r.hooks.Coalesced(key)
		r.log.Debug("joined in-flight fetch", Fields{"key": key})
	}

	ch := r.group.DoChan(key, func() (v any, err error) {
		r.mu.Lock()
		r.active[key] = struct{}{}
		r.mu.Unlock()
		defer r.release(key)
		defer func() {
			if p := recover(); p != nil {
				cause := &FetchError{Key: key, Kind: KindTransport, Err: fmt.Errorf("panic: %v", p)}
				r.log.Error("fetch panicked", Fields{"key": key, "panic": p})
				v, err = Failure[V](defaultMessages.Transport, cause), nil
			}
		}()
		return start(), nil
	})
	return Future[V]{ch: ch}
}

// release runs before singleflight forgets key and before any caller is
// woken, so InFlight never reports work whose result is already visible.
func (r *Registry[V]) release(key string) {
	r.mu.Lock()
	delete(r.active, key)
	r.mu.Unlock()
}

func (r *Registry[V]) busy(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}

// InFlight reports how many keys have unresolved work.
func (r *Registry[V]) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
