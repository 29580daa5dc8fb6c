//go:build !linux

package coverage

import (
	"errors"
	"os"
)

// ErrUnsupported is returned where shared regions are not implemented.
var ErrUnsupported = errors.New("coverage: shared regions require linux")

type Region struct{}

func NewRegion(name string, size int) (*Region, error) { return nil, ErrUnsupported }

func OpenRegion(fd uintptr, size int) (*Region, error) { return nil, ErrUnsupported }

func (r *Region) File() *os.File { return nil }

func (r *Region) Map() *Map { return nil }

func (r *Region) Close() error { return nil }
