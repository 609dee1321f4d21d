package tuple

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrMissingBranch is returned when an event has no branch of the requested name.
	ErrMissingBranch = errors.New("missing branch")
	// ErrIndexOutOfRange is returned when an array branch is shorter than the requested index.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNotInteger is returned when an integer branch holds a fractional value.
	ErrNotInteger = errors.New("branch value is not an integer")
)

// Event is read-only access to the branches of one event.
type Event interface {
	Scalar(name string) (float64, error)
	Array(name string) ([]float64, error)
}

// Int reads a scalar branch that must hold an integral value.
func Int(ev Event, name string) (int, error) {
	v, err := Int64(ev, name)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// Int64 is Int for identifiers that may exceed 32 bits, such as event numbers.
func Int64(ev Event, name string) (int64, error) {
	v, err := ev.Scalar(name)
	if err != nil {
		return 0, err
	}
	// float64(MaxInt64) rounds up to 2^63, so the upper bound is exclusive
	if v != math.Trunc(v) || math.IsInf(v, 0) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%s=%v: %w", name, v, ErrNotInteger)
	}
	return int64(v), nil
}

// At reads element i of an array branch.
func At(ev Event, name string, i int) (float64, error) {
	arr, err := ev.Array(name)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(arr) {
		return 0, fmt.Errorf("%s[%d] (len %d): %w", name, i, len(arr), ErrIndexOutOfRange)
	}
	return arr[i], nil
}

// MapEvent is an in-memory Event.
type MapEvent struct {
	Scalars map[string]float64
	Arrays  map[string][]float64
}

// NewMapEvent returns an empty MapEvent.
func NewMapEvent() *MapEvent {
	return &MapEvent{
		Scalars: make(map[string]float64),
		Arrays:  make(map[string][]float64),
	}
}

// SetScalar sets a scalar branch and returns the event for chaining.
func (e *MapEvent) SetScalar(name string, v float64) *MapEvent {
	e.Scalars[name] = v
	return e
}

// SetArray sets an array branch and returns the event for chaining.
func (e *MapEvent) SetArray(name string, v ...float64) *MapEvent {
	e.Arrays[name] = v
	return e
}

// Scalar implements Event.
func (e *MapEvent) Scalar(name string) (float64, error) {
	v, ok := e.Scalars[name]
	if !ok {
		return 0, fmt.Errorf("scalar %q: %w", name, ErrMissingBranch)
	}
	return v, nil
}

// Array implements Event.
func (e *MapEvent) Array(name string) ([]float64, error) {
	v, ok := e.Arrays[name]
	if !ok {
		return nil, fmt.Errorf("array %q: %w", name, ErrMissingBranch)
	}
	return v, nil
}

// Branches returns every branch name, sorted.
func (e *MapEvent) Branches() []string {
	names := make([]string, 0, len(e.Scalars)+len(e.Arrays))
	for k := range e.Scalars {
		names = append(names, k)
	}
	for k := range e.Arrays {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
