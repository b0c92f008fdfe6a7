package dealscache

import "fmt"

// State is the lifecycle position of a Result.
type State uint8

const (
	StatePending State = iota
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Result is one observation of a fetch: Pending, Success(value) or
// Failure(message, stale value, cause). Results are values; nothing mutates
// them after construction. The zero Result is Pending.
type Result[V any] struct {
	state    State
	value    V // Success: the value; Failure: the stale value if hasStale
	hasStale bool
	message  string
	cause    error
}

func Pending[V any]() Result[V] { return Result[V]{state: StatePending} }

func Success[V any](v V) Result[V] { return Result[V]{state: StateSuccess, value: v} }

// Failure builds a Failure without stale data.
func Failure[V any](message string, cause error) Result[V] {
	return Result[V]{state: StateFailure, message: message, cause: cause}
}

// FailureWithStale builds a Failure that carries the last known value.
func FailureWithStale[V any](message string, stale V, cause error) Result[V] {
	return Result[V]{state: StateFailure, message: message, cause: cause, value: stale, hasStale: true}
}

func (r Result[V]) State() State     { return r.state }
func (r Result[V]) IsPending() bool  { return r.state == StatePending }
func (r Result[V]) IsSuccess() bool  { return r.state == StateSuccess }
func (r Result[V]) IsFailure() bool  { return r.state == StateFailure }
func (r Result[V]) IsTerminal() bool { return r.state != StatePending }
func (r Result[V]) Message() string  { return r.message }
func (r Result[V]) Cause() error     { return r.cause }
func (r Result[V]) HasStale() bool   { return r.state == StateFailure && r.hasStale }
func (r Result[V]) Kind() ErrorKind  { return KindOf(r.cause) }

// Value returns the Success payload.
func (r Result[V]) Value() (V, bool) {
	if r.state != StateSuccess {
		var zero V
		return zero, false
	}
	return r.value, true
}

// Stale returns the value attached to a Failure, if any.
func (r Result[V]) Stale() (V, bool) {
	if !r.HasStale() {
		var zero V
		return zero, false
	}
	return r.value, true
}

// ValueOrStale returns the Success value or, for a Failure, its stale value.
// fresh is false for stale values; ok is false when there is nothing to show.
func (r Result[V]) ValueOrStale() (v V, fresh bool, ok bool) {
	switch {
	case r.state == StateSuccess:
		return r.value, true, true
	case r.HasStale():
		return r.value, false, true
	default:
		var zero V
		return zero, false, false
	}
}

func (r Result[V]) String() string {
	switch r.state {
	case StateSuccess:
		return "Success"
	case StateFailure:
		if r.hasStale {
			return fmt.Sprintf("Failure(%q, stale)", r.message)
		}
		return fmt.Sprintf("Failure(%q)", r.message)
	default:
		return "Pending"
	}
}

// Cases holds one handler per Result state; all three must be set.
type Cases[V, R any] struct {
	Pending func() R
	Success func(v V) R
	Failure func(message string, stale *V, cause error) R
}

// Match dispatches r to the handler for its state. stale is nil when the
// Failure carries no previous value.
func Match[V, R any](r Result[V], c Cases[V, R]) R {
	switch r.state {
	case StateSuccess:
		return c.Success(r.value)
	case StateFailure:
		if r.hasStale {
			v := r.value
			return c.Failure(r.message, &v, r.cause)
		}
		return c.Failure(r.message, nil, r.cause)
	default:
		return c.Pending()
	}
}
