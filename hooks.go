package dealscache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A fresh record answered the lookup; no upstream call was made.
	CacheHit(key string)

	// An upstream call finished (successfully or not) after a miss.
	CacheMiss(key string, latency time.Duration)

	// A caller joined an upstream call already in flight for key.
	Coalesced(key string)

	// An upstream call failed; servedStale reports whether an older value
	// was attached to the Failure.
	FetchFailed(key string, kind ErrorKind, servedStale bool)

	// A call that had already timed out completed and its value was stored.
	LateWrite(key string)

	// A record was dropped on read.
	// reason ∈ {"provider_miss", "corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/admission).
	ProviderSetRejected(storageKey string)

	// Housekeeping removed records from a store.
	Swept(namespace string, removed int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheHit(string)                     {}
func (NopHooks) CacheMiss(string, time.Duration)     {}
func (NopHooks) Coalesced(string)                    {}
func (NopHooks) FetchFailed(string, ErrorKind, bool) {}
func (NopHooks) LateWrite(string)                    {}
func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) Swept(string, int)                   {}
