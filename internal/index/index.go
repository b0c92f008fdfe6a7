// Package index tracks which keys a Store holds, when each record was stored
// and which generation of bytes is current for it.
package index

import (
	"sync"
	"time"
)

// Entry describes the live record for a key.
type Entry struct {
	Gen      uint64
	StoredAt time.Time
}

// Index is an in-process key -> Entry map. Generations come from a single
// counter so a key that is deleted and stored again never reuses one.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
	seq     uint64
}

func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

func (x *Index) Get(k string) (Entry, bool) {
	x.mu.RLock()
	e, ok := x.entries[k]
	x.mu.RUnlock()
	return e, ok
}

// Bump registers a new record for k and returns its entry.
func (x *Index) Bump(k string, storedAt time.Time) Entry {
	e := Entry{Gen: x.Reserve(), StoredAt: storedAt}
	x.Set(k, e)
	return e
}

// Reserve takes the next generation without touching any key. A reserved
// generation that is never Set is simply skipped.
func (x *Index) Reserve() uint64 {
	x.mu.Lock()
	x.seq++
	gen := x.seq
	x.mu.Unlock()
	return gen
}

// Set makes e the live entry for k.
func (x *Index) Set(k string, e Entry) {
	x.mu.Lock()
	x.entries[k] = e
	x.mu.Unlock()
}

func (x *Index) Delete(k string) bool {
	x.mu.Lock()
	_, ok := x.entries[k]
	delete(x.entries, k)
	x.mu.Unlock()
	return ok
}

// DeleteGen removes k only while gen is still current.
func (x *Index) DeleteGen(k string, gen uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if e, ok := x.entries[k]; ok && e.Gen == gen {
		delete(x.entries, k)
		return true
	}
	return false
}

// OlderThan returns keys whose record was stored before cutoff.
func (x *Index) OlderThan(cutoff time.Time) []string {
	var out []string
	x.mu.RLock()
	for k, e := range x.entries {
		if e.StoredAt.Before(cutoff) {
			out = append(out, k)
		}
	}
	x.mu.RUnlock()
	return out
}

// Oldest returns the key with the earliest StoredAt.
func (x *Index) Oldest() (string, Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var (
		key   string
		entry Entry
		found bool
	)
	for k, e := range x.entries {
		if !found || e.StoredAt.Before(entry.StoredAt) {
			key, entry, found = k, e, true
		}
	}
	return key, entry, found
}

// Span returns the earliest and latest StoredAt across all entries.
func (x *Index) Span() (oldest, newest time.Time, ok bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, e := range x.entries {
		if !ok {
			oldest, newest, ok = e.StoredAt, e.StoredAt, true
			continue
		}
		if e.StoredAt.Before(oldest) {
			oldest = e.StoredAt
		}
		if e.StoredAt.After(newest) {
			newest = e.StoredAt
		}
	}
	return oldest, newest, ok
}

func (x *Index) Keys() []string {
	x.mu.RLock()
	out := make([]string, 0, len(x.entries))
	for k := range x.entries {
		out = append(out, k)
	}
	x.mu.RUnlock()
	return out
}

func (x *Index) Len() int {
	x.mu.RLock()
	n := len(x.entries)
	x.mu.RUnlock()
	return n
}
