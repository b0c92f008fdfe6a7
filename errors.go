package dealscache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks an upstream call that missed its deadline.
	ErrTimeout = errors.New("dealscache: upstream timeout")
	// ErrTransport marks an upstream call that returned an error or panicked.
	ErrTransport = errors.New("dealscache: upstream failure")
	// ErrEmptyResult marks a successful upstream call without usable data.
	// Upstream implementations return it (or wrap it) for 404-style answers.
	ErrEmptyResult = errors.New("dealscache: empty result")
	// ErrInvalidArgument is returned for requests that cannot form a key.
	ErrInvalidArgument = errors.New("dealscache: invalid argument")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("dealscache: closed")
)

// ErrorKind classifies failed fetches.
type ErrorKind uint8

const (
	KindTimeout ErrorKind = iota + 1
	KindTransport
	KindEmpty
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindEmpty:
		return "empty"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindEmpty:
		return ErrEmptyResult
	case KindInvalid:
		return ErrInvalidArgument
	default:
		return ErrTransport
	}
}

// FetchError is the Cause of every Failure produced by a Fetcher.
// errors.Is matches both the kind's sentinel and the wrapped upstream error.
type FetchError struct {
	Key  string
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %q: %s", e.Key, e.Kind)
	}
	return fmt.Sprintf("fetch %q: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, 2)
	errs = append(errs, e.Kind.sentinel())
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// classify maps an upstream error onto the taxonomy.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyResult):
		return KindEmpty
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalid
	default:
		return KindTransport
	}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
