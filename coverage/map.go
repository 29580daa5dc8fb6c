package coverage

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when an index falls outside the map.
	ErrOutOfRange = errors.New("coverage: index out of range")
	// ErrMapSize is returned for maps with fewer than one counter.
	ErrMapSize = errors.New("coverage: map size must be at least 1")
)

// Observer is the read side of a coverage map as seen by feedback.
type Observer interface {
	// Reset zeroes every counter.
	Reset()
	// Get returns the raw counter at index i.
	Get(i int) (byte, error)
	// Len returns the number of counters.
	Len() int
}

// Map is a fixed-size array of per-edge hit counters. The last index is the
// objective slot.
type Map struct {
	buf []byte
}

// NewMap allocates a heap-backed map of size counters.
func NewMap(size int) (*Map, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMapSize, size)
	}
	return &Map{buf: make([]byte, size)}, nil
}

// Wrap builds a map on top of an existing buffer, typically a shared region.
func Wrap(buf []byte) (*Map, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMapSize, len(buf))
	}
	return &Map{buf: buf}, nil
}

func (m *Map) Reset() {
	clear(m.buf)
}

func (m *Map) Len() int {
	return len(m.buf)
}

func (m *Map) Get(i int) (byte, error) {
	if i < 0 || i >= len(m.buf) {
		return 0, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(m.buf))
	}
	return m.buf[i], nil
}

// Bucket returns the hitcount bucket of the counter at index i.
func (m *Map) Bucket(i int) (byte, error) {
	v, err := m.Get(i)
	if err != nil {
		return 0, err
	}
	return Classify(v), nil
}

// ObjectiveIndex is the reserved slot set to 1 when the target event fires.
func (m *Map) ObjectiveIndex() int {
	return len(m.buf) - 1
}

// Snapshot returns a copy of the counters.
func (m *Map) Snapshot() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}

// Bytes exposes the live counters without copying.
func (m *Map) Bytes() []byte {
	return m.buf
}
