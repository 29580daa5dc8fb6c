package corpus

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrEmpty is returned when scheduling from a corpus with no entries.
var ErrEmpty = errors.New("corpus: empty")

// Entry is an admitted input and the coverage it produced. Entries are never
// modified after insertion.
type Entry struct {
	ID       uint64 // xxhash of Input
	Input    []byte
	Coverage []byte
}

// Corpus is an append-only, insertion-ordered collection of entries.
type Corpus struct {
	entries []*Entry
}

func New() *Corpus {
	return &Corpus{}
}

// Add stores copies of input and cov and returns the new entry.
func (c *Corpus) Add(input, cov []byte) *Entry {
	e := &Entry{
		ID:       xxhash.Sum64(input),
		Input:    append([]byte(nil), input...),
		Coverage: append([]byte(nil), cov...),
	}
	if e.Input == nil {
		e.Input = []byte{}
	}
	c.entries = append(c.entries, e)
	return e
}

func (c *Corpus) Len() int {
	return len(c.entries)
}

// Get returns the entry at position i in insertion order.
func (c *Corpus) Get(i int) (*Entry, error) {
	if i < 0 || i >= len(c.entries) {
		return nil, fmt.Errorf("corpus: index %d out of range (size %d)", i, len(c.entries))
	}
	return c.entries[i], nil
}

// First returns the earliest entry.
func (c *Corpus) First() (*Entry, error) {
	if len(c.entries) == 0 {
		return nil, ErrEmpty
	}
	return c.entries[0], nil
}
