package coverage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a shared-memory mapping backing a coverage map. The parent
// creates it and hands File to the child, which maps the same pages.
type Region struct {
	file *os.File
	mem  []byte
}

// NewRegion creates an anonymous shared region of size bytes.
func NewRegion(name string, size int) (*Region, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMapSize, size)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %s: %w", name, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("truncate %s: %w", name, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	return &Region{file: os.NewFile(uintptr(fd), name), mem: mem}, nil
}

// OpenRegion maps an inherited descriptor, as done in the child.
func OpenRegion(fd uintptr, size int) (*Region, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrMapSize, size)
	}
	mem, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap fd %d: %w", fd, err)
	}
	return &Region{file: os.NewFile(fd, "coverage"), mem: mem}, nil
}

// File is the descriptor to pass to a child process.
func (r *Region) File() *os.File {
	return r.file
}

// Map returns a coverage map over the shared bytes.
func (r *Region) Map() *Map {
	return &Map{buf: r.mem}
}

func (r *Region) Close() error {
	var first error
	if r.mem != nil {
		first = unix.Munmap(r.mem)
		r.mem = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && first == nil {
			first = err
		}
		r.file = nil
	}
	return first
}
