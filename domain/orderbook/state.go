package orderbook

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"

	"aaob/domain/slab"
)

// OrderbookState is one market's pair of arenas. Between calls the book is
// never crossed: the best bid is strictly below the best ask.
//
// Sequence is the last admission sequence handed out; it is part of the
// persisted state so replays assign identical order ids.
type OrderbookState struct {
	MarketID MarketID
	Sequence uint64
	Bids     *slab.Slab
	Asks     *slab.Slab
}

// NewOrderbookState returns an empty, committed book.
func NewOrderbookState(id MarketID, capacity int) *OrderbookState {
	s := &OrderbookState{}
	_ = s.Initialize(id, capacity)
	return s
}

// Initialize sets up the arenas of a zero-value state.
func (s *OrderbookState) Initialize(id MarketID, capacity int) error {
	if s.Bids != nil || s.Asks != nil {
		return ErrAlreadyInitialized
	}
	s.MarketID = id
	s.Bids = slab.New(capacity)
	s.Asks = slab.New(capacity)
	s.CommitToHeader()
	return nil
}

// CommitToHeader stamps each arena with its role and market so the two
// blobs identify themselves when stored separately.
func (s *OrderbookState) CommitToHeader() {
	s.Bids.WriteHeader(slab.Bids, s.MarketID)
	s.Asks.WriteHeader(slab.Asks, s.MarketID)
}

// Check verifies the arenas belong to this market and sit on the right side.
func (s *OrderbookState) Check() error {
	if s.Bids == nil || s.Bids.Tag() != slab.Bids || s.Bids.Market() != s.MarketID {
		return ErrWrongBidsAccount
	}
	if s.Asks == nil || s.Asks.Tag() != slab.Asks || s.Asks.Market() != s.MarketID {
		return ErrWrongAsksAccount
	}
	return nil
}

func (s *OrderbookState) book(side Side) *slab.Slab {
	if side == Bid {
		return s.Bids
	}
	return s.Asks
}

// ---- queries ----

// FindBBO returns the best resting order of side: highest bid or lowest ask,
// earliest first among equal prices.
func (s *OrderbookState) FindBBO(side Side) (slab.Handle, bool) {
	return s.book(side).Min()
}

func (s *OrderbookState) BestPrice(side Side) (uint64, bool) {
	b := s.book(side)
	h, ok := b.Min()
	if !ok {
		return 0, false
	}
	return b.Get(h).Price, true
}

// Spread is the best bid and ask; a side without orders is reported absent.
type Spread struct {
	Bid    uint64
	HasBid bool
	Ask    uint64
	HasAsk bool
}

func (s *OrderbookState) Spread() Spread {
	var sp Spread
	sp.Bid, sp.HasBid = s.BestPrice(Bid)
	sp.Ask, sp.HasAsk = s.BestPrice(Ask)
	return sp
}

func (s *OrderbookState) IsEmpty() bool {
	return s.Bids.Len() == 0 && s.Asks.Len() == 0
}

// Order returns a copy of the resting order id on side.
func (s *OrderbookState) Order(id OrderID, side Side) (slab.Node, bool) {
	b := s.book(side)
	h, ok := b.Find(id.key())
	if !ok {
		return slab.Node{}, false
	}
	return *b.Get(h), true
}

// Level aggregates the resting orders at one price.
type Level struct {
	Price   uint64
	BaseQty uint64
	Orders  int
}

// Levels returns up to depth price levels of side, best first. depth <= 0
// returns every level. A level's BaseQty saturates at math.MaxUint64.
func (s *OrderbookState) Levels(side Side, depth int) []Level {
	var out []Level
	s.book(side).Ascend(func(_ slab.Handle, n *slab.Node) bool {
		if k := len(out); k > 0 && out[k-1].Price == n.Price {
			qty, err := addQty(out[k-1].BaseQty, n.RemainingBaseQty)
			if err != nil {
				qty = math.MaxUint64
			}
			out[k-1].BaseQty = qty
			out[k-1].Orders++
			return true
		}
		if depth > 0 && len(out) == depth {
			return false
		}
		out = append(out, Level{Price: n.Price, BaseQty: n.RemainingBaseQty, Orders: 1})
		return true
	})
	return out
}

func (s *OrderbookState) Clone() *OrderbookState {
	return &OrderbookState{
		MarketID: s.MarketID,
		Sequence: s.Sequence,
		Bids:     s.Bids.Clone(),
		Asks:     s.Asks.Clone(),
	}
}

// ---- encoding ----

// MarshalBinary layout: [market:32][sequence:8][len:4][bids][len:4][asks].
// Each arena blob starts with its StateType tag.
func (s *OrderbookState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 32+8+8+slab.EncodedLen(s.Bids.Cap())+slab.EncodedLen(s.Asks.Cap()))
	buf = append(buf, s.MarketID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, s.Sequence)
	for _, b := range []*slab.Slab{s.Bids, s.Asks} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(slab.EncodedLen(b.Cap())))
		var err error
		if buf, err = b.AppendBinary(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (s *OrderbookState) UnmarshalBinary(b []byte) error {
	if len(b) < 32+8 {
		return errors.Wrap(slab.ErrCorrupt, "short orderbook state")
	}
	var d OrderbookState
	copy(d.MarketID[:], b[:32])
	d.Sequence = binary.BigEndian.Uint64(b[32:40])
	rest := b[40:]

	arenas := make([]*slab.Slab, 2)
	for i := range arenas {
		if len(rest) < 4 {
			return errors.Wrap(slab.ErrCorrupt, "short arena length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		rest = rest[4:]
		if n > len(rest) {
			return errors.Wrap(slab.ErrCorrupt, "truncated arena")
		}
		arenas[i] = &slab.Slab{}
		if err := arenas[i].UnmarshalBinary(rest[:n]); err != nil {
			return err
		}
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return errors.Wrap(slab.ErrCorrupt, "trailing bytes")
	}
	d.Bids, d.Asks = arenas[0], arenas[1]
	if err := d.Check(); err != nil {
		return err
	}
	*s = d
	return nil
}

// Digest is the BLAKE3 hash of the encoded state. Equal digests mean
// byte-identical books.
func (s *OrderbookState) Digest() ([32]byte, error) {
	b, err := s.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(b), nil
}
