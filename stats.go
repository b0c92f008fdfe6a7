package dealscache

import (
	"sync/atomic"
	"time"
)

// Statistics is a point-in-time snapshot of a store's counters. Counters live
// in memory only and reset when the process restarts.
//
// HitCount counts lookups answered from a fresh record and MissCount counts
// upstream calls. Callers that join a call already in flight add to neither,
// so under concurrency HitRate describes upstream load, not the share of
// lookups served from cache.
type Statistics struct {
	TotalEntries          int
	HitCount              uint64
	MissCount             uint64
	CumulativeMissLatency time.Duration
	OldestEntryAge        time.Duration
	NewestEntryAge        time.Duration
}

// HitRate is HitCount / (HitCount + MissCount), or 0 before any lookup.
func (s Statistics) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// AvgResponseTime is the mean latency of misses, or 0 when there were none.
func (s Statistics) AvgResponseTime() time.Duration {
	if s.MissCount == 0 {
		return 0
	}
	return s.CumulativeMissLatency / time.Duration(s.MissCount)
}

// Merge combines two snapshots. Entry ages are only taken from snapshots
// that hold entries.
func (s Statistics) Merge(o Statistics) Statistics {
	out := Statistics{
		TotalEntries:          s.TotalEntries + o.TotalEntries,
		HitCount:              s.HitCount + o.HitCount,
		MissCount:             s.MissCount + o.MissCount,
		CumulativeMissLatency: s.CumulativeMissLatency + o.CumulativeMissLatency,
	}
	switch {
	case s.TotalEntries == 0:
		out.OldestEntryAge, out.NewestEntryAge = o.OldestEntryAge, o.NewestEntryAge
	case o.TotalEntries == 0:
		out.OldestEntryAge, out.NewestEntryAge = s.OldestEntryAge, s.NewestEntryAge
	default:
		out.OldestEntryAge = max(s.OldestEntryAge, o.OldestEntryAge)
		out.NewestEntryAge = min(s.NewestEntryAge, o.NewestEntryAge)
	}
	return out
}

type counters struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	latency atomic.Int64 // nanoseconds
}

func (c *counters) hit() { c.hits.Add(1) }

func (c *counters) miss(latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	c.misses.Add(1)
	c.latency.Add(int64(latency))
}
