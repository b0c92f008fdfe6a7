package dealscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatisticsRatesBeforeAnyLookup(t *testing.T) {
	var st Statistics
	require.Zero(t, st.HitRate())
	require.Zero(t, st.AvgResponseTime())
}

func TestCountersAccounting(t *testing.T) {
	var c counters
	latencies := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 50 * time.Millisecond}
	for range 3 {
		c.hit()
	}
	for _, l := range latencies {
		c.miss(l)
	}
	c.miss(-time.Second) // clamped

	st := Statistics{
		HitCount:              c.hits.Load(),
		MissCount:             c.misses.Load(),
		CumulativeMissLatency: time.Duration(c.latency.Load()),
	}
	require.InDelta(t, 3.0/7.0, st.HitRate(), 1e-9)
	require.Equal(t, 90*time.Millisecond/4, st.AvgResponseTime())
}

func TestStatisticsMerge(t *testing.T) {
	a := Statistics{TotalEntries: 2, HitCount: 1, MissCount: 1, CumulativeMissLatency: time.Second,
		OldestEntryAge: time.Hour, NewestEntryAge: time.Minute}
	b := Statistics{TotalEntries: 1, HitCount: 3, OldestEntryAge: 2 * time.Hour, NewestEntryAge: time.Second}
	empty := Statistics{HitCount: 4}

	m := a.Merge(b).Merge(empty)
	require.Equal(t, 3, m.TotalEntries)
	require.Equal(t, uint64(8), m.HitCount)
	require.Equal(t, uint64(1), m.MissCount)
	require.Equal(t, 2*time.Hour, m.OldestEntryAge)
	require.Equal(t, time.Second, m.NewestEntryAge)

	require.Equal(t, a.OldestEntryAge, empty.Merge(a).OldestEntryAge)
}
