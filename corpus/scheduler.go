package corpus

// Scheduler picks the next entry to mutate.
type Scheduler interface {
	Next(c *Corpus) (*Entry, error)
}

// QueueScheduler walks the corpus round-robin in insertion order. Entries
// admitted mid-cycle are visited when the cursor reaches them.
type QueueScheduler struct {
	cursor int
}

func NewQueueScheduler() *QueueScheduler {
	return &QueueScheduler{}
}

func (s *QueueScheduler) Next(c *Corpus) (*Entry, error) {
	n := c.Len()
	if n == 0 {
		return nil, ErrEmpty
	}
	if s.cursor >= n {
		s.cursor %= n
	}
	e := c.entries[s.cursor]
	s.cursor = (s.cursor + 1) % n
	return e, nil
}

// Cursor is the index of the next pick.
func (s *QueueScheduler) Cursor() int {
	return s.cursor
}
