package slab

import "github.com/cockroachdb/errors"

// Validate checks the red-black properties, strict key ordering and that
// the free list and the index partition the slots exactly.
func (s *Slab) Validate() error {
	es := s.entries
	if es[s.sentinel].color != black {
		return errors.Wrap(ErrCorrupt, "sentinel is red")
	}
	if s.root != s.sentinel {
		if es[s.root].parent != s.sentinel {
			return errors.Wrap(ErrCorrupt, "root has a parent")
		}
		if es[s.root].color != black {
			return errors.Wrap(ErrCorrupt, "root is red")
		}
	}

	seen := make([]bool, s.Cap())
	indexed, err := s.checkSubtree(s.root, seen)
	if err != nil {
		return err
	}
	if indexed.count != int(s.count) {
		return errors.Wrapf(ErrCorrupt, "index holds %d nodes, header says %d", indexed.count, s.count)
	}

	var prev *Key
	for h := s.minNode(s.root); h != s.sentinel; h = s.next(h) {
		k := es[h].node.Key
		if prev != nil && !prev.Less(k) {
			return errors.Wrapf(ErrCorrupt, "keys out of order at slot %d", h)
		}
		prev = &k
	}

	free := 0
	for h := s.free; h != s.sentinel; h = es[h].left {
		if h > s.sentinel {
			return errors.Wrapf(ErrCorrupt, "free link %d out of range", h)
		}
		if es[h].used || seen[h] {
			return errors.Wrapf(ErrCorrupt, "slot %d is both free and occupied", h)
		}
		seen[h] = true
		free++
		if free > s.Cap() {
			return errors.Wrap(ErrCorrupt, "free list cycles")
		}
	}
	if free+int(s.count) != s.Cap() {
		return errors.Wrapf(ErrCorrupt, "%d free + %d used != capacity %d", free, s.count, s.Cap())
	}
	return nil
}

type subtree struct {
	count       int
	blackHeight int
}

func (s *Slab) checkSubtree(h Handle, seen []bool) (subtree, error) {
	if h == s.sentinel {
		return subtree{blackHeight: 1}, nil
	}
	if h > s.sentinel {
		return subtree{}, errors.Wrapf(ErrCorrupt, "link %d out of range", h)
	}
	e := s.entries[h]
	if !e.used {
		return subtree{}, errors.Wrapf(ErrCorrupt, "indexed slot %d is unused", h)
	}
	if seen[h] {
		return subtree{}, errors.Wrapf(ErrCorrupt, "slot %d reachable twice", h)
	}
	seen[h] = true

	for _, c := range []Handle{e.left, e.right} {
		if c == s.sentinel {
			continue
		}
		if c > s.sentinel || s.entries[c].parent != h {
			return subtree{}, errors.Wrapf(ErrCorrupt, "broken parent link under slot %d", h)
		}
		if e.color == red && s.entries[c].color == red {
			return subtree{}, errors.Wrapf(ErrCorrupt, "red slot %d has a red child", h)
		}
	}

	l, err := s.checkSubtree(e.left, seen)
	if err != nil {
		return subtree{}, err
	}
	r, err := s.checkSubtree(e.right, seen)
	if err != nil {
		return subtree{}, err
	}
	if l.blackHeight != r.blackHeight {
		return subtree{}, errors.Wrapf(ErrCorrupt, "black height mismatch under slot %d", h)
	}
	bh := l.blackHeight
	if e.color == black {
		bh++
	}
	return subtree{count: l.count + r.count + 1, blackHeight: bh}, nil
}
