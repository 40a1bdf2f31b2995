// Package slab is a fixed-capacity arena of order nodes with an embedded
// red-black index over the occupied slots.
//
// Slots are addressed by Handle. Free slots form a singly linked stack, so
// allocation and release never search; the index keeps occupied slots
// ordered by Key with O(log n) insert, delete and lookup. Handles stay
// stable for the lifetime of a node: rebalancing relinks slots and never
// moves payloads between them.
package slab

import (
	"github.com/cockroachdb/errors"
)

// MaxCapacity bounds a single slab; handles are 32 bits and one slot is
// reserved for the sentinel.
const MaxCapacity = 1 << 24

var (
	ErrOutOfSpace    = errors.New("slab: out of space")
	ErrDuplicateKey  = errors.New("slab: duplicate key")
	ErrInvalidHandle = errors.New("slab: invalid handle")
	ErrCorrupt       = errors.New("slab: corrupt layout")
)

// Handle addresses a slot.
type Handle uint32

type color uint8

const (
	red   color = 0
	black color = 1
)

type entry struct {
	node   Node
	left   Handle // doubles as the free-list link for unused slots
	right  Handle
	parent Handle
	color  color
	used   bool
}

// Slab is not safe for concurrent use.
type Slab struct {
	tag    StateType
	market [32]byte

	entries  []entry // capacity slots followed by the sentinel
	sentinel Handle
	root     Handle
	free     Handle
	count    uint32
}

// New returns an empty slab holding up to capacity nodes.
func New(capacity int) *Slab {
	if capacity <= 0 || capacity > MaxCapacity {
		panic("slab: capacity out of range")
	}
	s := &Slab{
		entries:  make([]entry, capacity+1),
		sentinel: Handle(capacity),
	}
	s.reset()
	return s
}

func (s *Slab) reset() {
	for i := range s.entries {
		s.entries[i] = entry{
			left:   Handle(i + 1),
			right:  s.sentinel,
			parent: s.sentinel,
			color:  black,
		}
	}
	s.entries[s.sentinel].left = s.sentinel
	s.root = s.sentinel
	s.free = 0
	s.count = 0
}

// ---- header ----

func (s *Slab) Tag() StateType { return s.tag }

func (s *Slab) Market() [32]byte { return s.market }

// WriteHeader records the slab's role and owning market.
func (s *Slab) WriteHeader(tag StateType, market [32]byte) {
	s.tag = tag
	s.market = market
}

// ---- capacity ----

func (s *Slab) Len() int  { return int(s.count) }
func (s *Slab) Cap() int  { return len(s.entries) - 1 }
func (s *Slab) Full() bool { return s.free == s.sentinel }

// ---- public API ----

// Alloc stores n in a free slot and indexes it by n.Key. On failure the slab
// is left untouched.
func (s *Slab) Alloc(n Node) (Handle, error) {
	if s.Full() {
		return 0, ErrOutOfSpace
	}

	es := s.entries
	y := s.sentinel
	x := s.root
	for x != s.sentinel {
		y = x
		switch c := n.Key.Compare(es[x].node.Key); {
		case c < 0:
			x = es[x].left
		case c > 0:
			x = es[x].right
		default:
			return 0, ErrDuplicateKey
		}
	}

	z := s.free
	s.free = es[z].left
	es[z] = entry{
		node:   n,
		left:   s.sentinel,
		right:  s.sentinel,
		parent: y,
		color:  red,
		used:   true,
	}

	if y == s.sentinel {
		s.root = z
	} else if n.Key.Less(es[y].node.Key) {
		es[y].left = z
	} else {
		es[y].right = z
	}
	s.insertFixup(z)
	s.count++
	return z, nil
}

// Free unindexes the node at h and returns its slot to the free list.
func (s *Slab) Free(h Handle) error {
	if !s.valid(h) {
		return ErrInvalidHandle
	}
	s.deleteNode(h)

	s.entries[h] = entry{
		left:   s.free,
		right:  s.sentinel,
		parent: s.sentinel,
		color:  black,
	}
	s.free = h
	s.count--

	// deleteFixup may park the sentinel's parent anywhere.
	s.entries[s.sentinel].parent = s.sentinel
	return nil
}

// Get returns the node stored at h, or nil if h is not occupied. Callers may
// change the quantity fields but never the key.
func (s *Slab) Get(h Handle) *Node {
	if !s.valid(h) {
		return nil
	}
	return &s.entries[h].node
}

// Find looks a node up by key.
func (s *Slab) Find(k Key) (Handle, bool) {
	h := s.search(k)
	return h, h != s.sentinel
}

// Min returns the smallest key, which is the best price on either side.
func (s *Slab) Min() (Handle, bool) {
	h := s.minNode(s.root)
	return h, h != s.sentinel
}

func (s *Slab) Max() (Handle, bool) {
	h := s.maxNode(s.root)
	return h, h != s.sentinel
}

// Next returns the in-order successor of h.
func (s *Slab) Next(h Handle) (Handle, bool) {
	if !s.valid(h) {
		return 0, false
	}
	n := s.next(h)
	return n, n != s.sentinel
}

// Prev returns the in-order predecessor of h.
func (s *Slab) Prev(h Handle) (Handle, bool) {
	if !s.valid(h) {
		return 0, false
	}
	p := s.prev(h)
	return p, p != s.sentinel
}

// Ascend visits nodes in key order until fn returns false. fn must not
// mutate the slab.
func (s *Slab) Ascend(fn func(Handle, *Node) bool) {
	for h := s.minNode(s.root); h != s.sentinel; h = s.next(h) {
		if !fn(h, &s.entries[h].node) {
			return
		}
	}
}

// Clone returns an independent copy.
func (s *Slab) Clone() *Slab {
	c := *s
	c.entries = make([]entry, len(s.entries))
	copy(c.entries, s.entries)
	return &c
}

func (s *Slab) valid(h Handle) bool {
	return h < s.sentinel && s.entries[h].used
}
