// Package dealscache is the data-access layer between deal consumers and a slow,
// unreliable deals backend. Every operation answers from a fresh cached value
// when it has one, shares a single upstream call among concurrent misses for the
// same key, bounds that call by a per-operation deadline and, when it fails,
// hands back the last known value alongside the error.
//
// Components:
//   - Result[V]: Pending, Success(value) or Failure(message, stale, cause).
//   - Store[V]: key -> (value, storedAt) with TTL evaluated by callers, an entry
//     cap, a retention sweep and hit/miss statistics. Bytes live in a Provider
//     (in-process map, Ristretto or BigCache) and are encoded by a Codec[V].
//   - Registry[V]: one in-flight fetch per key (singleflight).
//   - Fetcher[V]: deadline-bounded upstream call with stale fallback.
//   - Endpoint[P, V]: the lookup/coalesce/fetch template for one operation.
//   - DealsCache: search, popular, health and history over an Upstream.
//
// Keys:
//
//	rec:<op>:search:<normalized query>
//	rec:<op>:popular:<limit>
//	rec:<op>:health
//	rec:<op>:history:<product>:<days>:<platform|all>
//
// Usage:
//
//	dc, _ := dealscache.New(client, dealscache.Options{})
//	for r := range dc.Search(ctx, "galaxy s24", false) {
//		v, fresh, ok := r.ValueOrStale()
//		...
//	}
package dealscache
