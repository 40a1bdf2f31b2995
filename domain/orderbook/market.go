package orderbook

import "github.com/cockroachdb/errors"

// Market holds the static parameters of one order book.
type Market struct {
	Name string
	ID   MarketID

	// TickSize divides every limit price.
	TickSize uint64
	// MinBaseSize is the smallest quantity allowed to rest on the book.
	MinBaseSize uint64
	FeeBudget   uint64
}

// NewMarket validates the parameters and derives the market id.
func NewMarket(name string, tickSize, minBaseSize, feeBudget uint64) (Market, error) {
	if name == "" {
		return Market{}, errors.Wrap(ErrInvalidMarket, "empty name")
	}
	if tickSize == 0 {
		return Market{}, errors.Wrap(ErrInvalidMarket, "tick size must be > 0")
	}
	return Market{
		Name:        name,
		ID:          MarketIDFromName(name),
		TickSize:    tickSize,
		MinBaseSize: minBaseSize,
		FeeBudget:   feeBudget,
	}, nil
}

// OpenMarket creates the empty book of m and records MarketCreated.
func OpenMarket(m Market, capacity int, q *EventQueue) (*OrderbookState, error) {
	if m.TickSize == 0 || m.ID != MarketIDFromName(m.Name) {
		return nil, ErrInvalidMarket
	}
	if err := q.check(m.ID); err != nil {
		return nil, err
	}
	if err := q.reserve(1); err != nil {
		return nil, err
	}
	s := NewOrderbookState(m.ID, capacity)
	_ = q.Append(MarketCreated{MarketID: m.ID, Name: m.Name})
	return s, nil
}

// CloseMarket records MarketClosed. Only an empty book can be closed.
func (s *OrderbookState) CloseMarket(m Market, q *EventQueue) error {
	if m.ID != s.MarketID {
		return ErrInvalidMarket
	}
	if err := s.Check(); err != nil {
		return err
	}
	if err := q.check(s.MarketID); err != nil {
		return err
	}
	if !s.IsEmpty() {
		return ErrMarketStillActive
	}
	if err := q.reserve(1); err != nil {
		return err
	}
	_ = q.Append(MarketClosed{MarketID: m.ID, Name: m.Name})
	return nil
}
