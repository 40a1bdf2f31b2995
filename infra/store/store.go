// Package store persists market books between restarts. The engine works
// on in-memory books; a store holds the last checkpoint of each and the
// command sequence that checkpoint reflects.
package store

import (
	"sort"

	"aaob/domain/orderbook"
)

// Book is one market with its state.
type Book struct {
	Market orderbook.Market
	State  *orderbook.OrderbookState
}

// Update is written atomically: either every book, every removal and Seq
// become visible, or none do.
type Update struct {
	Seq    uint64
	Books  []Book
	Closed []orderbook.MarketID
}

// Accessor loads and saves books. Loaded states are private copies.
type Accessor interface {
	// Books returns every stored market ordered by name.
	Books() ([]Book, error)
	Load(id orderbook.MarketID) (Book, error)
	Apply(u Update) error
	// LastApplied is the Seq of the newest Update, 0 for an empty store.
	LastApplied() (uint64, error)
	Close() error
}

func sortBooks(b []Book) {
	sort.Slice(b, func(i, j int) bool { return b[i].Market.Name < b[j].Market.Name })
}
