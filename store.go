package dealscache

import (
	"context"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/dealscache/codec"
	"github.com/unkn0wn-root/dealscache/internal/index"
	"github.com/unkn0wn-root/dealscache/internal/wire"
	pr "github.com/unkn0wn-root/dealscache/provider"
	"github.com/unkn0wn-root/dealscache/provider/memory"
)

// Record is a stored value and the time it was stored.
type Record[V any] struct {
	Value    V
	StoredAt time.Time
}

// Age is how old the record is at now.
func (r Record[V]) Age(now time.Time) time.Duration { return now.Sub(r.StoredAt) }

// StoreOptions configure a Store. Everything is optional.
type StoreOptions[V any] struct {
	Namespace string      // isolates keys when stores share a Provider; "" => "default"
	Provider  pr.Provider // nil => in-process map (owned and closed by the Store)
	Codec     c.Codec[V]  // nil => msgpack
	Logger    Logger
	Hooks     Hooks
	Clock     Clock

	MaxEntries    int           // 0 => 10000; <0 => unlimited
	Retention     time.Duration // how long expired records stay available as stale fallback; 0 => 24h
	SweepInterval time.Duration // 0 => 10m; <0 disables the background sweep
}

// Store maps keys to records with TTL evaluation left to callers: Get returns
// a record whatever its age so stale values stay reachable. Hit and miss
// counters are fed by callers through RecordHit and RecordMiss because only
// they know whether a lookup was fresh.
//
// Presence, age and generation live in an in-process index; value bytes live
// in the Provider, framed with the generation and store time. When the two
// disagree the record is dropped on read.
type Store[V any] struct {
	ns           string
	provider     pr.Provider
	ownsProvider bool
	codec        c.Codec[V]
	log          Logger
	hooks        Hooks
	clock        Clock

	maxEntries int
	retention  time.Duration

	// mu serializes compound index+provider mutations. Both sides are
	// in-memory so it is never held across network I/O.
	mu  sync.Mutex
	idx *index.Index

	stats counters

	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

func NewStore[V any](opts StoreOptions[V]) (*Store[V], error) {
	if opts.Retention < 0 {
		return nil, fmt.Errorf("dealscache: negative retention %s", opts.Retention)
	}
	s := &Store[V]{
		ns:       coalesce(opts.Namespace, "default"),
		provider: opts.Provider,
		codec:    opts.Codec,
		idx:      index.New(),
	}
	if s.provider == nil {
		s.provider = memory.New()
		s.ownsProvider = true
	}
	if s.codec == nil {
		s.codec = c.Default[V]()
	}
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.clock = coalesce[Clock](opts.Clock, SystemClock)
	s.maxEntries = coalesce(opts.MaxEntries, defaultMaxEntries)
	s.retention = coalesce(opts.Retention, defaultRetention)

	sweep := coalesce(opts.SweepInterval, defaultSweepInterval)
	if sweep > 0 {
		s.stopCh = make(chan struct{})
		s.closeWg.Add(1)
		go s.sweepLoop(sweep)
	}
	return s, nil
}

func (s *Store[V]) storageKey(key string) string {
	return "rec:" + s.ns + ":" + key
}

// Get returns the record for key regardless of its age.
func (s *Store[V]) Get(ctx context.Context, key string) (Record[V], bool) {
	var zero Record[V]
	sk := s.storageKey(key)

	s.mu.Lock()
	e, ok := s.idx.Get(key)
	if !ok {
		s.mu.Unlock()
		return zero, false
	}
	raw, found, err := s.provider.Get(ctx, sk)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("provider get failed", Fields{"key": key, "err": err})
		return zero, false
	}
	if !found {
		s.heal(ctx, key, e.Gen, "provider_miss")
		return zero, false
	}
	rec, err := wire.DecodeRecord(raw)
	if err != nil {
		s.heal(ctx, key, e.Gen, "corrupt")
		return zero, false
	}
	if rec.Gen != e.Gen {
		s.heal(ctx, key, e.Gen, "gen_mismatch")
		return zero, false
	}
	v, err := s.codec.Decode(rec.Payload)
	if err != nil {
		s.heal(ctx, key, e.Gen, "value_decode")
		return zero, false
	}
	return Record[V]{Value: v, StoredAt: e.StoredAt}, true
}

// heal drops key if gen is still the current generation.
func (s *Store[V]) heal(ctx context.Context, key string, gen uint64, reason string) {
	sk := s.storageKey(key)
	s.mu.Lock()
	removed := s.idx.DeleteGen(key, gen)
	if removed {
		_ = s.provider.Del(ctx, sk)
	}
	s.mu.Unlock()
	if removed {
		s.hooks.SelfHeal(sk, reason)
		s.log.Debug("dropped unreadable record", Fields{"key": key, "reason": reason})
	}
}

// IsFresh reports whether rec is younger than ttl.
func (s *Store[V]) IsFresh(rec Record[V], ttl time.Duration) bool {
	return s.clock.Now().Sub(rec.StoredAt) < ttl
}

// Put stores value under key, replacing any previous record. The write is
// kept for the store's retention, not for a freshness TTL.
func (s *Store[V]) Put(ctx context.Context, key string, value V) error {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	now := s.clock.Now()
	sk := s.storageKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	// The index only moves to the new generation once the provider holds its
	// bytes; a refused write leaves the previous record readable.
	gen := s.idx.Reserve()
	framed := wire.EncodeRecord(gen, now, payload)
	ok, err := s.provider.Set(ctx, sk, framed, 1, s.retention)
	if err != nil {
		return fmt.Errorf("provider set %q: %w", key, err)
	}
	if !ok {
		s.hooks.ProviderSetRejected(sk)
		s.log.Debug("provider rejected record (pressure)", Fields{"key": key})
		return nil
	}
	s.idx.Set(key, index.Entry{Gen: gen, StoredAt: now})

	if s.maxEntries > 0 {
		for s.idx.Len() > s.maxEntries {
			k, _, found := s.idx.Oldest()
			if !found || k == key {
				break
			}
			s.idx.Delete(k)
			_ = s.provider.Del(ctx, s.storageKey(k))
		}
	}
	return nil
}

// Delete removes key. Missing keys are ignored.
func (s *Store[V]) Delete(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idx.Delete(key) {
		return false
	}
	_ = s.provider.Del(ctx, s.storageKey(key))
	return true
}

// EvictOlderThan removes every record older than maxAge and returns how many
// were removed. maxAge <= 0 removes everything.
func (s *Store[V]) EvictOlderThan(ctx context.Context, maxAge time.Duration) int {
	var candidates []string
	cutoff := s.clock.Now().Add(-maxAge)
	if maxAge <= 0 {
		candidates = s.idx.Keys()
	} else {
		candidates = s.idx.OlderThan(cutoff)
	}
	if len(candidates) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, k := range candidates {
		e, ok := s.idx.Get(k)
		if !ok || (maxAge > 0 && !e.StoredAt.Before(cutoff)) {
			continue
		}
		s.idx.Delete(k)
		_ = s.provider.Del(ctx, s.storageKey(k))
		removed++
	}
	s.mu.Unlock()

	if removed > 0 {
		s.hooks.Swept(s.ns, removed)
		s.log.Debug("evicted old records", Fields{"ns": s.ns, "removed": removed})
	}
	return removed
}

func (s *Store[V]) RecordHit() { s.stats.hit() }

func (s *Store[V]) RecordMiss(latency time.Duration) { s.stats.miss(latency) }

// Len is the number of records the index holds.
func (s *Store[V]) Len() int { return s.idx.Len() }

// Statistics snapshots counters and entry ages.
func (s *Store[V]) Statistics() Statistics {
	st := Statistics{
		TotalEntries:          s.idx.Len(),
		HitCount:              s.stats.hits.Load(),
		MissCount:             s.stats.misses.Load(),
		CumulativeMissLatency: time.Duration(s.stats.latency.Load()),
	}
	if oldest, newest, ok := s.idx.Span(); ok {
		now := s.clock.Now()
		st.OldestEntryAge = now.Sub(oldest)
		st.NewestEntryAge = now.Sub(newest)
	}
	return st
}

func (s *Store[V]) sweepLoop(every time.Duration) {
	defer s.closeWg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.EvictOlderThan(context.Background(), s.retention)
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the sweep and releases the provider if the store created it.
// Safe to call more than once.
func (s *Store[V]) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.closeWg.Wait()
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		if s.ownsProvider {
			err = s.provider.Close(ctx)
		}
	})
	return err
}
