// Package asynchook moves hook delivery off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	dc, _ := dealscache.New(client, dealscache.Options{Hooks: hooks})
//
// Events are dropped when the queue is full and after Close.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/dealscache"
)

type Hooks struct {
	inner dealscache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ dealscache.Hooks = (*Hooks)(nil)

func New(inner dealscache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = dealscache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(k string) { h.try(func() { h.inner.CacheHit(k) }) }
func (h *Hooks) CacheMiss(k string, d time.Duration) {
	h.try(func() { h.inner.CacheMiss(k, d) })
}
func (h *Hooks) Coalesced(k string) { h.try(func() { h.inner.Coalesced(k) }) }
func (h *Hooks) FetchFailed(k string, kind dealscache.ErrorKind, stale bool) {
	h.try(func() { h.inner.FetchFailed(k, kind, stale) })
}
func (h *Hooks) LateWrite(k string)           { h.try(func() { h.inner.LateWrite(k) }) }
func (h *Hooks) SelfHeal(k, r string)         { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) Swept(ns string, n int)       { h.try(func() { h.inner.Swept(ns, n) }) }
