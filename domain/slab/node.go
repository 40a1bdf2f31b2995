package slab

// StateType tags a serialized slab so a reader can tell what the blob holds
// without knowing the key it was stored under.
type StateType uint8

const (
	Uninitialized StateType = iota
	Market
	Bids
	Asks
)

func (t StateType) String() string {
	switch t {
	case Uninitialized:
		return "UNINITIALIZED"
	case Market:
		return "MARKET"
	case Bids:
		return "BIDS"
	case Asks:
		return "ASKS"
	default:
		return "UNKNOWN"
	}
}

// Key orders nodes inside a slab. Hi carries the price component and Lo the
// admission sequence, so no two live nodes compare equal.
type Key struct {
	Hi uint64
	Lo uint64
}

// Compare returns -1, 0 or +1.
func (k Key) Compare(o Key) int {
	switch {
	case k.Hi < o.Hi:
		return -1
	case k.Hi > o.Hi:
		return 1
	case k.Lo < o.Lo:
		return -1
	case k.Lo > o.Lo:
		return 1
	default:
		return 0
	}
}

func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// AccountID identifies the owner of an order.
type AccountID [32]byte

// Uint128 is an unsigned 128-bit value stored as two words.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// CallbackInfo travels with every resting order so self-trades can be
// detected and fills attributed without reading any other state.
type CallbackInfo struct {
	Owner          AccountID
	OpenOrdersSlot uint64
	OrderNonce     Uint128
	ClientOrderID  uint64
}

// Node is the arena payload.
type Node struct {
	Key              Key
	Price            uint64
	RemainingBaseQty uint64
	Callback         CallbackInfo
}
