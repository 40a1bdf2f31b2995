package sequence

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var ErrNotMonotonic = errors.New("sequence does not advance")

// Sequencer issues the global command sequence. Every command written to
// the entry WAL carries one value; values strictly increase across restarts.
type Sequencer struct {
	last atomic.Uint64
}

// New resumes after last. A fresh store starts at 0.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last value issued or observed.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Observe moves the sequencer to v, a value read back from the WAL during
// replay. v must be past everything seen so far.
func (s *Sequencer) Observe(v uint64) error {
	for {
		cur := s.last.Load()
		if v <= cur {
			return errors.Wrapf(ErrNotMonotonic, "%d after %d", v, cur)
		}
		if s.last.CompareAndSwap(cur, v) {
			return nil
		}
	}
}
