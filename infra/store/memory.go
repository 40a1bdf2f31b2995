package store

import (
	"sync"

	"github.com/cockroachdb/errors"

	"aaob/domain/orderbook"
)

// Memory keeps encoded books in a map. It behaves like Pebble, including
// copy-on-load, and is used by tests and throwaway nodes.
type Memory struct {
	mu      sync.RWMutex
	markets map[orderbook.MarketID]orderbook.Market
	states  map[orderbook.MarketID][]byte
	applied uint64
}

func NewMemory() *Memory {
	return &Memory{
		markets: make(map[orderbook.MarketID]orderbook.Market),
		states:  make(map[orderbook.MarketID][]byte),
	}
}

func (m *Memory) Books() ([]Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Book, 0, len(m.markets))
	for id := range m.markets {
		b, err := m.load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	sortBooks(out)
	return out, nil
}

func (m *Memory) Load(id orderbook.MarketID) (Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(id)
}

func (m *Memory) load(id orderbook.MarketID) (Book, error) {
	mk, ok := m.markets[id]
	if !ok {
		return Book{}, orderbook.ErrMarketNotFound
	}
	s := &orderbook.OrderbookState{}
	if err := s.UnmarshalBinary(m.states[id]); err != nil {
		return Book{}, errors.Wrapf(err, "decode book %s", mk.Name)
	}
	return Book{Market: mk, State: s}, nil
}

func (m *Memory) Apply(u Update) error {
	encoded := make([][]byte, len(u.Books))
	for i, b := range u.Books {
		var err error
		if encoded[i], err = b.State.MarshalBinary(); err != nil {
			return errors.Wrapf(err, "encode book %s", b.Market.Name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range u.Books {
		m.markets[b.Market.ID] = b.Market
		m.states[b.Market.ID] = encoded[i]
	}
	for _, id := range u.Closed {
		delete(m.markets, id)
		delete(m.states, id)
	}
	m.applied = u.Seq
	return nil
}

func (m *Memory) LastApplied() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied, nil
}

func (m *Memory) Close() error { return nil }
