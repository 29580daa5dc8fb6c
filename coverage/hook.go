package coverage

import (
	"errors"
	"sync/atomic"
)

// ErrRegistered is returned when a map is already registered in this process.
var ErrRegistered = errors.New("coverage: a map is already registered")

// active is the map instrumented code writes to. One per process, installed
// once per session.
var active atomic.Pointer[Map]

// Register installs m as the process-wide map for the instrumentation hooks.
func Register(m *Map) error {
	if !active.CompareAndSwap(nil, m) {
		return ErrRegistered
	}
	return nil
}

// Unregister removes m if it is the registered map.
func Unregister(m *Map) {
	active.CompareAndSwap(m, nil)
}

// Active returns the registered map, or nil.
func Active() *Map {
	return active.Load()
}

// Hit increments the counter for edge i. Counters saturate at 255 and
// indices outside the map are ignored.
//
//go:noinline
func Hit(i int) {
	m := active.Load()
	if m == nil || i < 0 || i >= len(m.buf) {
		return
	}
	if m.buf[i] != 0xff {
		m.buf[i]++
	}
}

// Record marks edge i as visited without counting.
func Record(i int) {
	m := active.Load()
	if m == nil || i < 0 || i >= len(m.buf) {
		return
	}
	m.buf[i] = 1
}

// Objective signals that the designated program event occurred.
func Objective() {
	m := active.Load()
	if m == nil {
		return
	}
	m.buf[len(m.buf)-1] = 1
}
