package dealscache

import "time"

const (
	defaultMaxEntries    = 10_000
	defaultRetention     = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultTimeout       = 3 * time.Second
	defaultTTL           = 5 * time.Minute
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Clock supplies timestamps. Durations are computed from Now values, which
// carry Go's monotonic reading when they come from time.Now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall/monotonic clock used when Options leave Clock nil.
var SystemClock Clock = systemClock{}
