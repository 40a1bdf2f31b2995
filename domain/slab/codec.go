package slab

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Layout (big-endian):
//
//	[tag:1][market:32][cap:4][root:4][free:4][count:4]
//	cap x [used:1][color:1][left:4][right:4][parent:4]
//	      [keyHi:8][keyLo:8][price:8][remaining:8]
//	      [owner:32][slot:8][nonceHi:8][nonceLo:8][clientID:8]
//
// The sentinel is not stored; handle value cap encodes it.
const (
	headerLen = 1 + 32 + 4 + 4 + 4 + 4
	recordLen = 1 + 1 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 32 + 8 + 8 + 8 + 8
)

// EncodedLen is the size of MarshalBinary's output for a slab of the given
// capacity.
func EncodedLen(capacity int) int {
	return headerLen + capacity*recordLen
}

func (s *Slab) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, EncodedLen(s.Cap())))
}

// AppendBinary appends the encoded slab to buf.
func (s *Slab) AppendBinary(buf []byte) ([]byte, error) {
	buf = append(buf, byte(s.tag))
	buf = append(buf, s.market[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.Cap()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.root))
	buf = binary.BigEndian.AppendUint32(buf, uint32(s.free))
	buf = binary.BigEndian.AppendUint32(buf, s.count)

	for i := 0; i < s.Cap(); i++ {
		e := &s.entries[i]
		used := byte(0)
		if e.used {
			used = 1
		}
		buf = append(buf, used, byte(e.color))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.left))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.right))
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.parent))

		n := &e.node
		buf = binary.BigEndian.AppendUint64(buf, n.Key.Hi)
		buf = binary.BigEndian.AppendUint64(buf, n.Key.Lo)
		buf = binary.BigEndian.AppendUint64(buf, n.Price)
		buf = binary.BigEndian.AppendUint64(buf, n.RemainingBaseQty)
		buf = append(buf, n.Callback.Owner[:]...)
		buf = binary.BigEndian.AppendUint64(buf, n.Callback.OpenOrdersSlot)
		buf = binary.BigEndian.AppendUint64(buf, n.Callback.OrderNonce.Hi)
		buf = binary.BigEndian.AppendUint64(buf, n.Callback.OrderNonce.Lo)
		buf = binary.BigEndian.AppendUint64(buf, n.Callback.ClientOrderID)
	}
	return buf, nil
}

// UnmarshalBinary replaces s with the decoded slab. The result is validated;
// a corrupt blob leaves s unchanged.
func (s *Slab) UnmarshalBinary(b []byte) error {
	if len(b) < headerLen {
		return errors.Wrap(ErrCorrupt, "short header")
	}
	tag := StateType(b[0])
	if tag > Asks {
		return errors.Wrapf(ErrCorrupt, "unknown state type %d", b[0])
	}
	capacity := int(binary.BigEndian.Uint32(b[33:37]))
	if capacity <= 0 || capacity > MaxCapacity {
		return errors.Wrapf(ErrCorrupt, "capacity %d out of range", capacity)
	}
	if len(b) != EncodedLen(capacity) {
		return errors.Wrapf(ErrCorrupt, "length %d, want %d", len(b), EncodedLen(capacity))
	}

	d := Slab{
		tag:      tag,
		entries:  make([]entry, capacity+1),
		sentinel: Handle(capacity),
		root:     Handle(binary.BigEndian.Uint32(b[37:41])),
		free:     Handle(binary.BigEndian.Uint32(b[41:45])),
		count:    binary.BigEndian.Uint32(b[45:49]),
	}
	copy(d.market[:], b[1:33])
	if d.root > d.sentinel || d.free > d.sentinel {
		return errors.Wrap(ErrCorrupt, "header handle out of range")
	}

	off := headerLen
	for i := 0; i < capacity; i++ {
		r := b[off : off+recordLen]
		off += recordLen

		e := &d.entries[i]
		if r[0] > 1 || r[1] > 1 {
			return errors.Wrapf(ErrCorrupt, "slot %d flags", i)
		}
		e.used = r[0] == 1
		e.color = color(r[1])
		e.left = Handle(binary.BigEndian.Uint32(r[2:6]))
		e.right = Handle(binary.BigEndian.Uint32(r[6:10]))
		e.parent = Handle(binary.BigEndian.Uint32(r[10:14]))
		if e.left > d.sentinel || e.right > d.sentinel || e.parent > d.sentinel {
			return errors.Wrapf(ErrCorrupt, "slot %d link out of range", i)
		}

		n := &e.node
		n.Key.Hi = binary.BigEndian.Uint64(r[14:22])
		n.Key.Lo = binary.BigEndian.Uint64(r[22:30])
		n.Price = binary.BigEndian.Uint64(r[30:38])
		n.RemainingBaseQty = binary.BigEndian.Uint64(r[38:46])
		copy(n.Callback.Owner[:], r[46:78])
		n.Callback.OpenOrdersSlot = binary.BigEndian.Uint64(r[78:86])
		n.Callback.OrderNonce.Hi = binary.BigEndian.Uint64(r[86:94])
		n.Callback.OrderNonce.Lo = binary.BigEndian.Uint64(r[94:102])
		n.Callback.ClientOrderID = binary.BigEndian.Uint64(r[102:110])
	}
	d.entries[d.sentinel] = entry{
		left:   d.sentinel,
		right:  d.sentinel,
		parent: d.sentinel,
		color:  black,
	}

	if err := d.Validate(); err != nil {
		return err
	}
	*s = d
	return nil
}
