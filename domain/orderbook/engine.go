package orderbook

import (
	"math"

	"github.com/cockroachdb/errors"

	"aaob/domain/slab"
)

// OrderParams describes a new order.
type OrderParams struct {
	Side       Side
	Type       OrderType
	LimitPrice uint64
	MaxBaseQty uint64
	// MaxQuoteQty caps the quote the order may trade and post. 0 is unbounded.
	MaxQuoteQty uint64
	SelfTrade   SelfTradeHandler
	// MatchLimit bounds the number of resting orders one call may consume.
	MatchLimit uint64
	Callback   CallbackInfo
}

// Fill is one maker leg of a match. Fills are returned to the caller for
// attribution and are never written to the event queue.
type Fill struct {
	MakerOrderID OrderID
	Maker        CallbackInfo
	Price        uint64
	BaseQty      uint64
	QuoteQty     uint64
}

// Removal is a resting order taken off the book while matching.
type Removal struct {
	OrderID  OrderID
	Callback CallbackInfo
	Reason   CompletedReason
	// RemainingBaseQty is non-zero when the order was cancelled by the
	// self-trade policy or dropped below the market's minimum size.
	RemainingBaseQty uint64
}

// OrderSummary reports the outcome of NewOrder.
type OrderSummary struct {
	OrderID OrderID
	Side    Side
	Reason  CompletedReason

	FilledBaseQty  uint64
	FilledQuoteQty uint64
	// SelfDecrementedQty was cancelled against the owner's own resting
	// orders under DecrementTake; it is not credited as a fill.
	SelfDecrementedQty uint64
	PostedBaseQty      uint64
	Matches            uint64

	Fills   []Fill
	Removed []Removal
	Event   OrderCreated
}

// CancelSummary reports the outcome of CancelOrder.
type CancelSummary struct {
	OrderID          OrderID
	Side             Side
	Price            uint64
	RemainingBaseQty uint64
	Callback         CallbackInfo
	Event            OrderCancelled
}

// ---- matching ----

type stepKind uint8

const (
	stepTrade stepKind = iota
	stepDecrement
	stepCancelProvide
)

type step struct {
	kind   stepKind
	handle slab.Handle
	qty    uint64
	quote  uint64
	remove bool
}

type matchPlan struct {
	steps []step

	remaining      uint64
	quoteRemaining uint64
	filledBase     uint64
	filledQuote    uint64
	decremented    uint64
	matches        uint64

	crossing        bool
	limitHit        bool
	postOnlyCrossed bool
}

// NewOrder admits an order: it crosses the opposite side under price-time
// priority, applies the self-trade policy, and posts or discards what is
// left. Exactly one OrderCreated is appended on success.
//
// Matching is planned against the untouched book and committed only once
// every check has passed, so a failed call changes nothing. The one partial
// outcome is ErrSlabOutOfSpace returned with a non-nil summary: the fills
// were committed and only the remainder could not be posted.
func (s *OrderbookState) NewOrder(m Market, p OrderParams, q *EventQueue) (*OrderSummary, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if err := q.check(s.MarketID); err != nil {
		return nil, err
	}
	if err := s.validate(m, p); err != nil {
		return nil, err
	}
	if s.Sequence == math.MaxUint64 {
		return nil, ErrNumericalOverflow
	}
	if err := q.reserve(1); err != nil {
		return nil, err
	}

	seq := s.Sequence + 1
	id := OrderID{Hi: p.Side.keyPrice(p.LimitPrice), Lo: seq}

	pl, err := s.plan(m, p)
	if err != nil {
		return nil, err
	}
	if p.Type == FillOrKill && pl.filledBase != p.MaxBaseQty {
		return nil, ErrFillOrKillUnfilled
	}

	sum := &OrderSummary{
		OrderID:            id,
		Side:               p.Side,
		FilledBaseQty:      pl.filledBase,
		FilledQuoteQty:     pl.filledQuote,
		SelfDecrementedQty: pl.decremented,
		Matches:            pl.matches,
	}

	var post uint64
	switch {
	case pl.postOnlyCrossed:
		sum.Reason = PostOnly
	case pl.remaining == 0:
		sum.Reason = Filled
	case pl.crossing && pl.limitHit:
		// Resting the remainder would cross the book; the caller cranks.
		sum.Reason = MatchLimitExhausted
	case pl.crossing:
		// quote budget spent
		sum.Reason = Filled
	case !p.Type.mayRest():
		sum.Reason = PostNotAllowed
	default:
		post = pl.remaining
		if p.MaxQuoteQty != 0 {
			post = min(post, pl.quoteRemaining/p.LimitPrice)
		}
		if post == 0 || post < m.MinBaseSize {
			post = 0
			sum.Reason = Filled
		} else {
			sum.Reason = Booted
		}
	}

	var postErr error
	own := s.book(p.Side)
	if post > 0 && own.Full() {
		if len(pl.steps) == 0 {
			return nil, ErrSlabOutOfSpace
		}
		post = 0
		sum.Reason = PostNotAllowed
		postErr = ErrSlabOutOfSpace
	}

	postQuote, err := mulQty(post, p.LimitPrice)
	if err != nil {
		return nil, err
	}
	totalBase, err := addQty(pl.filledBase, post)
	if err != nil {
		return nil, err
	}
	totalQuote, err := addQty(pl.filledQuote, postQuote)
	if err != nil {
		return nil, err
	}

	// ---- commit ----

	s.Sequence = seq
	s.commit(pl, sum)

	if post > 0 {
		if _, err := own.Alloc(slab.Node{
			Key:              id.key(),
			Price:            p.LimitPrice,
			RemainingBaseQty: post,
			Callback:         p.Callback,
		}); err != nil {
			panic(errors.Wrap(err, "orderbook: post after capacity check"))
		}
		sum.PostedBaseQty = post
	}

	sum.Event = OrderCreated{
		OrderID:            id,
		MarketID:           s.MarketID,
		Side:               p.Side,
		TotalBaseQty:       totalBase,
		TotalQuoteQty:      totalQuote,
		TotalBaseQtyPosted: post,
	}
	_ = q.Append(sum.Event)
	return sum, postErr
}

func (s *OrderbookState) validate(m Market, p OrderParams) error {
	if m.ID != s.MarketID || m.TickSize == 0 {
		return ErrInvalidMarket
	}
	if !p.Side.valid() || !p.Type.valid() || !p.SelfTrade.valid() {
		return ErrInvalidOrder
	}
	if p.MaxBaseQty == 0 {
		return ErrInvalidBaseQuantity
	}
	if p.Type != MarketOrder && (p.LimitPrice == 0 || p.LimitPrice%m.TickSize != 0) {
		return ErrInvalidLimitPrice
	}
	return nil
}

func crosses(p OrderParams, restingPrice uint64) bool {
	if p.Type == MarketOrder {
		return true
	}
	if p.Side == Bid {
		return p.LimitPrice >= restingPrice
	}
	return p.LimitPrice <= restingPrice
}

// plan walks the opposite side from its best key without mutating it and
// records what matching would do.
func (s *OrderbookState) plan(m Market, p OrderParams) (matchPlan, error) {
	opp := s.book(p.Side.Opposite())
	pl := matchPlan{
		remaining:      p.MaxBaseQty,
		quoteRemaining: p.MaxQuoteQty,
	}
	if p.MaxQuoteQty == 0 {
		pl.quoteRemaining = math.MaxUint64
	}

	h, ok := opp.Min()
	for ok && pl.remaining > 0 {
		n := opp.Get(h)
		if !crosses(p, n.Price) {
			break
		}
		if p.Type == PostOnlyOrder {
			pl.postOnlyCrossed = true
			break
		}
		if pl.matches >= p.MatchLimit {
			pl.limitHit = true
			break
		}

		if n.Callback.Owner == p.Callback.Owner {
			switch p.SelfTrade {
			case AbortTx:
				return matchPlan{}, ErrWouldSelfTrade
			case CancelProvide:
				pl.steps = append(pl.steps, step{kind: stepCancelProvide, handle: h, remove: true})
				pl.matches++
				h, ok = opp.Next(h)
				continue
			case DecrementTake:
				d := min(pl.remaining, n.RemainingBaseQty)
				pl.remaining -= d
				pl.decremented += d
				left := n.RemainingBaseQty - d
				remove := left == 0 || left < m.MinBaseSize
				pl.steps = append(pl.steps, step{kind: stepDecrement, handle: h, qty: d, remove: remove})
				if remove {
					h, ok = opp.Next(h)
				}
				continue
			}
		}

		qty := min(pl.remaining, n.RemainingBaseQty)
		if p.MaxQuoteQty != 0 {
			qty = min(qty, pl.quoteRemaining/n.Price)
		}
		if qty == 0 {
			break
		}
		quote, err := mulQty(qty, n.Price)
		if err != nil {
			return matchPlan{}, err
		}
		if pl.filledQuote, err = addQty(pl.filledQuote, quote); err != nil {
			return matchPlan{}, err
		}
		if p.MaxQuoteQty != 0 {
			pl.quoteRemaining -= quote
		}
		pl.remaining -= qty
		pl.filledBase += qty
		pl.matches++

		left := n.RemainingBaseQty - qty
		remove := left == 0 || left < m.MinBaseSize
		pl.steps = append(pl.steps, step{kind: stepTrade, handle: h, qty: qty, quote: quote, remove: remove})
		if remove {
			h, ok = opp.Next(h)
		}
	}

	if ok && pl.remaining > 0 {
		pl.crossing = crosses(p, opp.Get(h).Price)
	}
	return pl, nil
}

// commit applies planned steps in order. Handles stay valid while earlier
// steps free other slots.
func (s *OrderbookState) commit(pl matchPlan, sum *OrderSummary) {
	opp := s.book(sum.Side.Opposite())
	for _, st := range pl.steps {
		n := opp.Get(st.handle)
		makerID := OrderID{Hi: n.Key.Hi, Lo: n.Key.Lo}

		if st.kind == stepTrade {
			sum.Fills = append(sum.Fills, Fill{
				MakerOrderID: makerID,
				Maker:        n.Callback,
				Price:        n.Price,
				BaseQty:      st.qty,
				QuoteQty:     st.quote,
			})
		}
		n.RemainingBaseQty -= st.qty

		if !st.remove {
			continue
		}
		reason := Filled
		if st.kind == stepCancelProvide {
			reason = SelfTradeAbort
		}
		sum.Removed = append(sum.Removed, Removal{
			OrderID:          makerID,
			Callback:         n.Callback,
			Reason:           reason,
			RemainingBaseQty: n.RemainingBaseQty,
		})
		if err := opp.Free(st.handle); err != nil {
			panic(errors.Wrap(err, "orderbook: free planned maker"))
		}
	}
}

// CancelOrder removes a resting order and appends OrderCancelled. A second
// cancel of the same id fails with ErrOrderNotFound.
func (s *OrderbookState) CancelOrder(id OrderID, side Side, q *EventQueue) (*CancelSummary, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if err := q.check(s.MarketID); err != nil {
		return nil, err
	}
	if !side.valid() {
		return nil, ErrInvalidOrder
	}
	b := s.book(side)
	h, ok := b.Find(id.key())
	if !ok {
		return nil, ErrOrderNotFound
	}
	if err := q.reserve(1); err != nil {
		return nil, err
	}

	n := *b.Get(h)
	if err := b.Free(h); err != nil {
		return nil, err
	}
	ev := OrderCancelled{OrderID: id, MarketID: s.MarketID, Side: side}
	_ = q.Append(ev)
	return &CancelSummary{
		OrderID:          id,
		Side:             side,
		Price:            n.Price,
		RemainingBaseQty: n.RemainingBaseQty,
		Callback:         n.Callback,
		Event:            ev,
	}, nil
}
