package orderbook

import (
	"encoding/hex"
	"fmt"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/sha3"

	"aaob/domain/slab"
)

// MarketID is immutable once a market exists.
type MarketID [32]byte

// MarketIDFromName derives the id of a market from its name.
func MarketIDFromName(name string) MarketID {
	return MarketID(sha3.Sum256([]byte(name)))
}

func (id MarketID) String() string { return hex.EncodeToString(id[:]) }

// ParseMarketID decodes the hex form produced by String.
func ParseMarketID(s string) (MarketID, error) {
	var id MarketID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, errors.Newf("invalid market id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

// OrderID is the public handle of an order. Lo is the market's admission
// sequence; Hi is the price component of the order's key on its own side,
// so the id of a resting order is exactly its slab key.
type OrderID struct {
	Hi uint64
	Lo uint64
}

func (id OrderID) Sequence() uint64 { return id.Lo }

func (id OrderID) key() slab.Key { return slab.Key{Hi: id.Hi, Lo: id.Lo} }

func (id OrderID) String() string { return fmt.Sprintf("%016x%016x", id.Hi, id.Lo) }

// ParseOrderID decodes the 32-digit hex form produced by String.
func ParseOrderID(s string) (OrderID, error) {
	var id OrderID
	if len(s) != 32 {
		return id, errors.Newf("invalid order id %q", s)
	}
	if _, err := fmt.Sscanf(s, "%016x%016x", &id.Hi, &id.Lo); err != nil {
		return id, errors.Wrapf(err, "invalid order id %q", s)
	}
	return id, nil
}

type (
	AccountID    = slab.AccountID
	Uint128      = slab.Uint128
	CallbackInfo = slab.CallbackInfo
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

func (s Side) valid() bool { return s == Bid || s == Ask }

// keyPrice maps a price onto the ascending key space of its side: asks keep
// the price, bids use its complement so the best bid is the minimum key.
func (s Side) keyPrice(price uint64) uint64 {
	if s == Bid {
		return ^price
	}
	return price
}

type OrderType uint8

const (
	Limit OrderType = iota
	ImmediateOrCancel
	FillOrKill
	PostOnlyOrder
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case ImmediateOrCancel:
		return "IOC"
	case FillOrKill:
		return "FOK"
	case PostOnlyOrder:
		return "POST_ONLY"
	case MarketOrder:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

func (t OrderType) valid() bool { return t <= MarketOrder }

// mayRest reports whether an unmatched remainder of this type can be posted.
func (t OrderType) mayRest() bool { return t == Limit || t == PostOnlyOrder }

// SelfTradeHandler decides what happens when a taker meets its own owner's
// resting order.
type SelfTradeHandler uint8

const (
	// DecrementTake cancels the overlapping quantity on both orders with no
	// trade credited.
	DecrementTake SelfTradeHandler = iota
	// CancelProvide removes the resting order and keeps matching.
	CancelProvide
	// AbortTx fails the whole call.
	AbortTx
)

func (h SelfTradeHandler) String() string {
	switch h {
	case DecrementTake:
		return "DECREMENT_TAKE"
	case CancelProvide:
		return "CANCEL_PROVIDE"
	case AbortTx:
		return "ABORT_TX"
	default:
		return "UNKNOWN"
	}
}

func (h SelfTradeHandler) valid() bool { return h <= AbortTx }

// CompletedReason classifies why an order, or the taking phase of one, ended.
type CompletedReason uint8

const (
	Cancelled CompletedReason = iota
	Filled
	Booted
	SelfTradeAbort
	PostNotAllowed
	MatchLimitExhausted
	PostOnly
)

func (r CompletedReason) String() string {
	switch r {
	case Cancelled:
		return "CANCELLED"
	case Filled:
		return "FILLED"
	case Booted:
		return "BOOTED"
	case SelfTradeAbort:
		return "SELF_TRADE_ABORT"
	case PostNotAllowed:
		return "POST_NOT_ALLOWED"
	case MatchLimitExhausted:
		return "MATCH_LIMIT_EXHAUSTED"
	case PostOnly:
		return "POST_ONLY"
	default:
		return "UNKNOWN"
	}
}
