package dealscache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroResultIsPending(t *testing.T) {
	var r Result[int]
	require.True(t, r.IsPending())
	require.False(t, r.IsTerminal())
	_, ok := r.Value()
	require.False(t, ok)
	require.Equal(t, "Pending", r.String())
}

func TestSuccessCarriesValue(t *testing.T) {
	r := Success(42)
	require.True(t, r.IsSuccess())
	require.True(t, r.IsTerminal())

	v, ok := r.Value()
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = r.Stale()
	require.False(t, ok)
	require.False(t, r.HasStale())
}

func TestFailureStaleIsDistinguishable(t *testing.T) {
	cause := &FetchError{Key: "k", Kind: KindTimeout}

	bare := Failure[int]("timeout", cause)
	require.True(t, bare.IsFailure())
	require.False(t, bare.HasStale())
	_, _, ok := bare.ValueOrStale()
	require.False(t, ok)

	withStale := FailureWithStale("timeout", 7, cause)
	require.True(t, withStale.HasStale())
	v, fresh, ok := withStale.ValueOrStale()
	require.True(t, ok)
	require.False(t, fresh)
	require.Equal(t, 7, v)

	_, ok = withStale.Value()
	require.False(t, ok, "a Failure never exposes its stale value as Value")
	require.Equal(t, KindTimeout, withStale.Kind())
	require.True(t, errors.Is(withStale.Cause(), ErrTimeout))
	require.Equal(t, `Failure("timeout", stale)`, withStale.String())
}

func TestMatchDispatchesEveryState(t *testing.T) {
	cases := Cases[int, string]{
		Pending: func() string { return "pending" },
		Success: func(v int) string { return "ok" },
		Failure: func(msg string, stale *int, _ error) string {
			if stale != nil {
				return msg + "+stale"
			}
			return msg
		},
	}

	require.Equal(t, "pending", Match(Pending[int](), cases))
	require.Equal(t, "ok", Match(Success(1), cases))
	require.Equal(t, "boom", Match(Failure[int]("boom", nil), cases))
	require.Equal(t, "boom+stale", Match(FailureWithStale("boom", 3, nil), cases))
}

func TestFetchErrorUnwrapsToSentinelAndCause(t *testing.T) {
	upstream := errors.New("connection reset")
	err := &FetchError{Key: "search:x", Kind: KindTransport, Err: upstream}

	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, upstream)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Equal(t, KindTransport, KindOf(err))
	require.Equal(t, ErrorKind(0), KindOf(upstream))
}
