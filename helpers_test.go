package dealscache

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type failedEvent struct {
	key   string
	kind  ErrorKind
	stale bool
}

// recHooks records the events tests assert on.
type recHooks struct {
	NopHooks

	mu        sync.Mutex
	hits      []string
	misses    []string
	coalesced []string
	failed    []failedEvent
	late      []string
	heals     []string
	rejected  []string
}

func (h *recHooks) CacheHit(k string) {
	h.mu.Lock()
	h.hits = append(h.hits, k)
	h.mu.Unlock()
}

func (h *recHooks) CacheMiss(k string, _ time.Duration) {
	h.mu.Lock()
	h.misses = append(h.misses, k)
	h.mu.Unlock()
}

func (h *recHooks) Coalesced(k string) {
	h.mu.Lock()
	h.coalesced = append(h.coalesced, k)
	h.mu.Unlock()
}

func (h *recHooks) FetchFailed(k string, kind ErrorKind, stale bool) {
	h.mu.Lock()
	h.failed = append(h.failed, failedEvent{k, kind, stale})
	h.mu.Unlock()
}

func (h *recHooks) LateWrite(k string) {
	h.mu.Lock()
	h.late = append(h.late, k)
	h.mu.Unlock()
}

func (h *recHooks) SelfHeal(_ string, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, reason)
	h.mu.Unlock()
}

func (h *recHooks) ProviderSetRejected(k string) {
	h.mu.Lock()
	h.rejected = append(h.rejected, k)
	h.mu.Unlock()
}

func (h *recHooks) count(list *[]string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(*list)
}

func (h *recHooks) snapshotHeals() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.heals...)
}

func (h *recHooks) snapshotFailed() []failedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]failedEvent(nil), h.failed...)
}
