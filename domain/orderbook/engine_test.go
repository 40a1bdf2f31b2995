package orderbook

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = AccountID{0xa1}
	bob   = AccountID{0xb0}
	carol = AccountID{0xc4}
)

func openBook(t *testing.T, tick, minBase uint64, capacity int) (Market, *OrderbookState, *EventQueue) {
	t.Helper()
	m, err := NewMarket("SOL/USDC", tick, minBase, 0)
	require.NoError(t, err)
	q := NewEventQueue(m.ID, 64)
	s, err := OpenMarket(m, capacity, q)
	require.NoError(t, err)
	q.Drain()
	return m, s, q
}

func limitOrder(side Side, price, qty uint64, owner AccountID) OrderParams {
	return OrderParams{
		Side:       side,
		Type:       Limit,
		LimitPrice: price,
		MaxBaseQty: qty,
		SelfTrade:  DecrementTake,
		MatchLimit: 100,
		Callback:   CallbackInfo{Owner: owner},
	}
}

func place(t *testing.T, s *OrderbookState, m Market, q *EventQueue, p OrderParams) *OrderSummary {
	t.Helper()
	sum, err := s.NewOrder(m, p, q)
	require.NoError(t, err)
	return sum
}

func digest(t *testing.T, s *OrderbookState) [32]byte {
	t.Helper()
	d, err := s.Digest()
	require.NoError(t, err)
	return d
}

func restingQty(s *OrderbookState) uint64 {
	var total uint64
	for _, side := range []Side{Bid, Ask} {
		for _, l := range s.Levels(side, 0) {
			total += l.BaseQty
		}
	}
	return total
}

func TestNewOrderPostsAndReportsBBO(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)

	b1 := place(t, s, m, q, limitOrder(Bid, 100, 10, bob))
	b2 := place(t, s, m, q, limitOrder(Bid, 101, 5, bob))
	a1 := place(t, s, m, q, limitOrder(Ask, 105, 3, alice))

	assert.Equal(t, Booted, b1.Reason)
	assert.Equal(t, uint64(10), b1.PostedBaseQty)
	assert.Equal(t, uint64(1), b1.OrderID.Sequence())
	assert.Equal(t, uint64(2), b2.OrderID.Sequence())
	assert.Equal(t, uint64(3), a1.OrderID.Sequence())
	assert.Equal(t, uint64(3), s.Sequence)

	assert.Equal(t, Spread{Bid: 101, HasBid: true, Ask: 105, HasAsk: true}, s.Spread())

	h, ok := s.FindBBO(Bid)
	require.True(t, ok)
	assert.Equal(t, b2.OrderID.key(), s.Bids.Get(h).Key)

	n, ok := s.Order(b1.OrderID, Bid)
	require.True(t, ok)
	assert.Equal(t, uint64(100), n.Price)
	assert.Equal(t, bob, n.Callback.Owner)

	events := q.Events()
	require.Len(t, events, 3)
	assert.Equal(t, OrderCreated{
		OrderID:            b1.OrderID,
		MarketID:           m.ID,
		Side:               Bid,
		TotalBaseQty:       10,
		TotalQuoteQty:      1000,
		TotalBaseQtyPosted: 10,
	}, events[0])
}

func TestNewOrderPriceThenTimePriority(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)

	late := place(t, s, m, q, limitOrder(Ask, 101, 4, alice))
	first := place(t, s, m, q, limitOrder(Ask, 102, 5, alice))
	second := place(t, s, m, q, limitOrder(Ask, 102, 5, carol))
	better := place(t, s, m, q, limitOrder(Ask, 101, 3, carol))

	sum := place(t, s, m, q, limitOrder(Bid, 102, 10, bob))

	require.Len(t, sum.Fills, 3)
	assert.Equal(t, late.OrderID, sum.Fills[0].MakerOrderID)
	assert.Equal(t, better.OrderID, sum.Fills[1].MakerOrderID)
	assert.Equal(t, first.OrderID, sum.Fills[2].MakerOrderID)
	assert.Equal(t, uint64(3), sum.Fills[2].BaseQty)
	assert.Equal(t, uint64(102), sum.Fills[2].Price)

	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(10), sum.FilledBaseQty)
	assert.Equal(t, uint64(4*101+3*101+3*102), sum.FilledQuoteQty)
	assert.Len(t, sum.Removed, 2)

	n, ok := s.Order(first.OrderID, Ask)
	require.True(t, ok)
	assert.Equal(t, uint64(2), n.RemainingBaseQty)
	_, ok = s.Order(second.OrderID, Ask)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Bids.Len())
}

func TestNewOrderConservesQuantity(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 10, alice))

	sum := place(t, s, m, q, limitOrder(Bid, 100, 4, bob))
	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(4), sum.FilledBaseQty)
	assert.Equal(t, uint64(0), sum.PostedBaseQty)
	assert.Equal(t, uint64(6), restingQty(s))

	sum = place(t, s, m, q, limitOrder(Bid, 100, 15, bob))
	assert.Equal(t, Booted, sum.Reason)
	assert.Equal(t, uint64(6), sum.FilledBaseQty)
	assert.Equal(t, uint64(9), sum.PostedBaseQty)
	assert.Equal(t, OrderCreated{
		OrderID:            sum.OrderID,
		MarketID:           m.ID,
		Side:               Bid,
		TotalBaseQty:       15,
		TotalQuoteQty:      1500,
		TotalBaseQtyPosted: 9,
	}, sum.Event)
	assert.Equal(t, uint64(9), restingQty(s))
	assert.Equal(t, 0, s.Asks.Len())
}

func TestCancelOrder(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	sum := place(t, s, m, q, limitOrder(Bid, 100, 10, bob))
	q.Drain()

	_, err := s.CancelOrder(sum.OrderID, Ask, q)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	c, err := s.CancelOrder(sum.OrderID, Bid, q)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), c.RemainingBaseQty)
	assert.Equal(t, uint64(100), c.Price)
	assert.Equal(t, bob, c.Callback.Owner)
	assert.True(t, s.IsEmpty())

	_, err = s.CancelOrder(sum.OrderID, Bid, q)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events := q.Events()
	require.Len(t, events, 1)
	assert.Equal(t, OrderCancelled{OrderID: sum.OrderID, MarketID: m.ID, Side: Bid}, events[0])
}

func TestNewOrderSlabOutOfSpace(t *testing.T) {
	t.Run("nothing to match", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 2)
		place(t, s, m, q, limitOrder(Bid, 90, 1, bob))
		place(t, s, m, q, limitOrder(Bid, 91, 1, bob))
		before := digest(t, s)
		n := q.Len()

		sum, err := s.NewOrder(m, limitOrder(Bid, 92, 1, bob), q)
		assert.ErrorIs(t, err, ErrSlabOutOfSpace)
		assert.Nil(t, sum)
		assert.Equal(t, before, digest(t, s))
		assert.Equal(t, n, q.Len())
		assert.Equal(t, uint64(2), s.Sequence)
	})

	t.Run("fills kept, remainder dropped", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 2)
		place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
		place(t, s, m, q, limitOrder(Bid, 90, 1, bob))
		place(t, s, m, q, limitOrder(Bid, 91, 1, bob))
		q.Drain()

		sum, err := s.NewOrder(m, limitOrder(Bid, 100, 10, bob), q)
		assert.ErrorIs(t, err, ErrSlabOutOfSpace)
		require.NotNil(t, sum)
		assert.Equal(t, uint64(5), sum.FilledBaseQty)
		assert.Equal(t, uint64(0), sum.PostedBaseQty)
		assert.Equal(t, 0, s.Asks.Len())
		assert.Equal(t, 2, s.Bids.Len())
		require.Equal(t, 1, q.Len())
		assert.Equal(t, uint64(5), q.Events()[0].(OrderCreated).TotalBaseQty)
	})
}

func TestSelfTradePolicies(t *testing.T) {
	t.Run("decrement take", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 16)
		place(t, s, m, q, limitOrder(Bid, 100, 10, alice))

		sum := place(t, s, m, q, limitOrder(Ask, 100, 10, alice))
		assert.Equal(t, uint64(10), sum.SelfDecrementedQty)
		assert.Equal(t, uint64(0), sum.FilledBaseQty)
		assert.Empty(t, sum.Fills)
		assert.Equal(t, uint64(0), sum.Matches)
		assert.Equal(t, uint64(0), sum.Event.TotalBaseQty)
		assert.True(t, s.IsEmpty())
	})

	t.Run("decrement take partial", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 16)
		bid := place(t, s, m, q, limitOrder(Bid, 100, 10, alice))

		sum := place(t, s, m, q, limitOrder(Ask, 100, 4, alice))
		assert.Equal(t, uint64(4), sum.SelfDecrementedQty)
		n, ok := s.Order(bid.OrderID, Bid)
		require.True(t, ok)
		assert.Equal(t, uint64(6), n.RemainingBaseQty)
	})

	t.Run("abort tx", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 16)
		place(t, s, m, q, limitOrder(Ask, 99, 3, bob))
		place(t, s, m, q, limitOrder(Bid, 100, 10, alice))
		before := digest(t, s)
		n := q.Len()

		p := limitOrder(Ask, 99, 10, alice)
		p.SelfTrade = AbortTx
		_, err := s.NewOrder(m, p, q)
		assert.ErrorIs(t, err, ErrWouldSelfTrade)
		assert.Equal(t, before, digest(t, s))
		assert.Equal(t, n, q.Len())
	})

	t.Run("cancel provide", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 16)
		bid := place(t, s, m, q, limitOrder(Bid, 100, 10, alice))

		p := limitOrder(Ask, 100, 10, alice)
		p.SelfTrade = CancelProvide
		sum := place(t, s, m, q, p)

		require.Len(t, sum.Removed, 1)
		assert.Equal(t, Removal{
			OrderID:          bid.OrderID,
			Callback:         CallbackInfo{Owner: alice},
			Reason:           SelfTradeAbort,
			RemainingBaseQty: 10,
		}, sum.Removed[0])
		assert.Equal(t, Booted, sum.Reason)
		assert.Equal(t, uint64(10), sum.PostedBaseQty)
		assert.Equal(t, uint64(1), sum.Matches)
		assert.Equal(t, 0, s.Bids.Len())
		assert.Equal(t, 1, s.Asks.Len())
	})

	t.Run("other owners still trade", func(t *testing.T) {
		m, s, q := openBook(t, 1, 0, 16)
		place(t, s, m, q, limitOrder(Bid, 101, 2, bob))
		place(t, s, m, q, limitOrder(Bid, 100, 10, alice))

		sum := place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
		assert.Equal(t, uint64(2), sum.FilledBaseQty)
		assert.Equal(t, uint64(3), sum.SelfDecrementedQty)
	})
}

func TestNewOrderMatchLimit(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	for i := 0; i < 5; i++ {
		place(t, s, m, q, limitOrder(Ask, 100, 1, alice))
	}

	p := limitOrder(Bid, 100, 5, bob)
	p.MatchLimit = 3
	sum := place(t, s, m, q, p)

	assert.Equal(t, MatchLimitExhausted, sum.Reason)
	assert.Equal(t, uint64(3), sum.FilledBaseQty)
	assert.Equal(t, uint64(3), sum.Matches)
	assert.Equal(t, uint64(0), sum.PostedBaseQty)
	assert.Equal(t, 2, s.Asks.Len())
	assert.Equal(t, 0, s.Bids.Len())

	p.MatchLimit = 0
	sum = place(t, s, m, q, p)
	assert.Equal(t, MatchLimitExhausted, sum.Reason)
	assert.Equal(t, uint64(0), sum.FilledBaseQty)
	assert.Equal(t, 2, s.Asks.Len())

	// no crossing: a zero limit still posts
	p = limitOrder(Bid, 99, 5, bob)
	p.MatchLimit = 0
	sum = place(t, s, m, q, p)
	assert.Equal(t, Booted, sum.Reason)
}

func TestNewOrderFillOrKill(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
	before := digest(t, s)
	n := q.Len()

	p := limitOrder(Bid, 100, 10, bob)
	p.Type = FillOrKill
	_, err := s.NewOrder(m, p, q)
	assert.ErrorIs(t, err, ErrFillOrKillUnfilled)
	assert.Equal(t, before, digest(t, s))
	assert.Equal(t, n, q.Len())

	p.MaxBaseQty = 5
	sum := place(t, s, m, q, p)
	assert.Equal(t, Filled, sum.Reason)
	assert.True(t, s.IsEmpty())
}

func TestFillOrKillIgnoresSelfDecrement(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 2, bob))
	place(t, s, m, q, limitOrder(Ask, 101, 3, alice))
	before := digest(t, s)
	n := q.Len()

	// two filled against bob, three would only cancel against alice's own ask
	p := limitOrder(Bid, 101, 5, alice)
	p.Type = FillOrKill
	_, err := s.NewOrder(m, p, q)
	assert.ErrorIs(t, err, ErrFillOrKillUnfilled)
	assert.Equal(t, before, digest(t, s))
	assert.Equal(t, n, q.Len())

	p.MaxBaseQty = 3
	_, err = s.NewOrder(m, p, q)
	assert.ErrorIs(t, err, ErrFillOrKillUnfilled)

	p.MaxBaseQty = 2
	sum := place(t, s, m, q, p)
	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(2), sum.FilledBaseQty)
}

func TestNewOrderPostOnly(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
	q.Drain()

	p := limitOrder(Bid, 100, 5, bob)
	p.Type = PostOnlyOrder
	sum := place(t, s, m, q, p)
	assert.Equal(t, PostOnly, sum.Reason)
	assert.Equal(t, uint64(0), sum.FilledBaseQty)
	assert.Equal(t, uint64(0), sum.PostedBaseQty)
	assert.Equal(t, 0, s.Bids.Len())
	assert.Equal(t, 1, q.Len())

	p.LimitPrice = 99
	sum = place(t, s, m, q, p)
	assert.Equal(t, Booted, sum.Reason)
	assert.Equal(t, uint64(5), sum.PostedBaseQty)
}

func TestNewOrderImmediateOrCancelAndMarket(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
	place(t, s, m, q, limitOrder(Ask, 110, 5, alice))

	p := limitOrder(Bid, 100, 8, bob)
	p.Type = ImmediateOrCancel
	sum := place(t, s, m, q, p)
	assert.Equal(t, PostNotAllowed, sum.Reason)
	assert.Equal(t, uint64(5), sum.FilledBaseQty)
	assert.Equal(t, 0, s.Bids.Len())

	p = OrderParams{Side: Bid, Type: MarketOrder, MaxBaseQty: 3, MatchLimit: 10, Callback: CallbackInfo{Owner: bob}}
	sum = place(t, s, m, q, p)
	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(330), sum.FilledQuoteQty)

	p.MaxBaseQty = 10
	sum = place(t, s, m, q, p)
	assert.Equal(t, PostNotAllowed, sum.Reason)
	assert.Equal(t, uint64(2), sum.FilledBaseQty)
	assert.True(t, s.IsEmpty())
}

func TestNewOrderMinBaseSize(t *testing.T) {
	m, s, q := openBook(t, 1, 5, 16)
	ask := place(t, s, m, q, limitOrder(Ask, 100, 12, alice))

	sum := place(t, s, m, q, limitOrder(Bid, 100, 8, bob))
	require.Len(t, sum.Removed, 1)
	assert.Equal(t, ask.OrderID, sum.Removed[0].OrderID)
	assert.Equal(t, Filled, sum.Removed[0].Reason)
	assert.Equal(t, uint64(4), sum.Removed[0].RemainingBaseQty)
	assert.True(t, s.IsEmpty())

	sum = place(t, s, m, q, limitOrder(Bid, 99, 3, bob))
	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(0), sum.PostedBaseQty)
	assert.Equal(t, uint64(0), sum.Event.TotalBaseQty)
	assert.True(t, s.IsEmpty())
}

func TestNewOrderQuoteCap(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 100, 10, alice))

	p := limitOrder(Bid, 100, 10, bob)
	p.MaxQuoteQty = 550
	sum := place(t, s, m, q, p)
	assert.Equal(t, Filled, sum.Reason)
	assert.Equal(t, uint64(5), sum.FilledBaseQty)
	assert.Equal(t, uint64(500), sum.FilledQuoteQty)
	assert.Equal(t, uint64(0), sum.PostedBaseQty)

	p = limitOrder(Bid, 90, 10, bob)
	p.MaxQuoteQty = 300
	sum = place(t, s, m, q, p)
	assert.Equal(t, Booted, sum.Reason)
	assert.Equal(t, uint64(3), sum.PostedBaseQty)
	assert.Equal(t, uint64(270), sum.Event.TotalQuoteQty)
}

func TestNewOrderRejectsInvalidInput(t *testing.T) {
	m, s, q := openBook(t, 5, 0, 16)
	before := digest(t, s)

	cases := []struct {
		name string
		edit func(p *OrderParams)
		want error
	}{
		{"zero quantity", func(p *OrderParams) { p.MaxBaseQty = 0 }, ErrInvalidBaseQuantity},
		{"off tick", func(p *OrderParams) { p.LimitPrice = 102 }, ErrInvalidLimitPrice},
		{"zero price", func(p *OrderParams) { p.LimitPrice = 0 }, ErrInvalidLimitPrice},
		{"unknown side", func(p *OrderParams) { p.Side = 7 }, ErrInvalidOrder},
		{"unknown type", func(p *OrderParams) { p.Type = 9 }, ErrInvalidOrder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := limitOrder(Bid, 100, 1, bob)
			tc.edit(&p)
			_, err := s.NewOrder(m, p, q)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, before, digest(t, s))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint64(0), s.Sequence)
}

func TestNewOrderOverflowFailsClosed(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Ask, 1<<40, 1<<23, alice))
	place(t, s, m, q, limitOrder(Ask, 1<<40, 1<<23, carol))
	before := digest(t, s)

	_, err := s.NewOrder(m, limitOrder(Bid, 1<<40, 1<<24, bob), q)
	assert.ErrorIs(t, err, ErrNumericalOverflow)
	assert.Equal(t, before, digest(t, s))
}

func TestNewOrderEventQueueFull(t *testing.T) {
	m, s, _ := openBook(t, 1, 0, 16)
	q := NewEventQueue(m.ID, 1)
	place(t, s, m, q, limitOrder(Ask, 100, 5, alice))
	before := digest(t, s)

	_, err := s.NewOrder(m, limitOrder(Bid, 100, 5, bob), q)
	assert.ErrorIs(t, err, ErrEventQueueFull)
	assert.Equal(t, before, digest(t, s))
	assert.Equal(t, 1, q.Len())

	q.Drain()
	place(t, s, m, q, limitOrder(Bid, 100, 5, bob))
	assert.True(t, s.IsEmpty())
}

func TestWrongAccounts(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)

	other := NewEventQueue(MarketIDFromName("BTC/USDC"), 8)
	_, err := s.NewOrder(m, limitOrder(Bid, 100, 1, bob), other)
	assert.ErrorIs(t, err, ErrWrongEventQueueAccount)

	_, err = s.NewOrder(m, limitOrder(Bid, 100, 1, bob), nil)
	assert.ErrorIs(t, err, ErrWrongEventQueueAccount)

	swapped := s.Clone()
	swapped.Bids, swapped.Asks = swapped.Asks, swapped.Bids
	_, err = swapped.NewOrder(m, limitOrder(Bid, 100, 1, bob), q)
	assert.ErrorIs(t, err, ErrWrongBidsAccount)
	_, err = swapped.CancelOrder(OrderID{}, Bid, q)
	assert.ErrorIs(t, err, ErrWrongBidsAccount)

	foreign := NewOrderbookState(MarketIDFromName("BTC/USDC"), 4)
	mixed := s.Clone()
	mixed.Asks = foreign.Asks
	_, err = mixed.NewOrder(m, limitOrder(Bid, 100, 1, bob), q)
	assert.ErrorIs(t, err, ErrWrongAsksAccount)

	btc, err := NewMarket("BTC/USDC", 1, 0, 0)
	require.NoError(t, err)
	_, err = s.NewOrder(btc, limitOrder(Bid, 100, 1, bob), q)
	assert.ErrorIs(t, err, ErrInvalidMarket)
}

func TestMarketLifecycle(t *testing.T) {
	m, err := NewMarket("ETH/USDC", 10, 1, 5000)
	require.NoError(t, err)
	q := NewEventQueue(m.ID, 8)

	s, err := OpenMarket(m, 8, q)
	require.NoError(t, err)
	assert.Equal(t, []Event{MarketCreated{MarketID: m.ID, Name: "ETH/USDC"}}, q.Drain())
	assert.ErrorIs(t, s.Initialize(m.ID, 8), ErrAlreadyInitialized)

	sum := place(t, s, m, q, limitOrder(Ask, 1000, 2, alice))
	assert.ErrorIs(t, s.CloseMarket(m, q), ErrMarketStillActive)

	_, err = s.CancelOrder(sum.OrderID, Ask, q)
	require.NoError(t, err)
	q.Drain()
	require.NoError(t, s.CloseMarket(m, q))
	assert.Equal(t, []Event{MarketClosed{MarketID: m.ID, Name: "ETH/USDC"}}, q.Events())

	_, err = NewMarket("", 1, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidMarket)
	_, err = NewMarket("X", 0, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidMarket)
}

func TestLevelsAggregate(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Bid, 100, 3, bob))
	place(t, s, m, q, limitOrder(Bid, 101, 1, bob))
	place(t, s, m, q, limitOrder(Bid, 100, 4, carol))
	place(t, s, m, q, limitOrder(Bid, 98, 2, carol))

	assert.Equal(t, []Level{
		{Price: 101, BaseQty: 1, Orders: 1},
		{Price: 100, BaseQty: 7, Orders: 2},
	}, s.Levels(Bid, 2))
	assert.Len(t, s.Levels(Bid, 0), 3)
	assert.Empty(t, s.Levels(Ask, 0))
}

func TestLevelsSaturate(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Bid, 1, 1<<63, bob))
	place(t, s, m, q, limitOrder(Bid, 1, 1<<63, carol))

	assert.Equal(t, []Level{{Price: 1, BaseQty: math.MaxUint64, Orders: 2}}, s.Levels(Bid, 0))
}

func TestStateBinaryRoundTrip(t *testing.T) {
	m, s, q := openBook(t, 1, 0, 16)
	place(t, s, m, q, limitOrder(Bid, 100, 3, bob))
	place(t, s, m, q, limitOrder(Ask, 105, 4, alice))

	b, err := s.MarshalBinary()
	require.NoError(t, err)

	var got OrderbookState
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, s.Sequence, got.Sequence)
	assert.Equal(t, digest(t, s), digest(t, &got))

	b[0] ^= 0xff
	var bad OrderbookState
	assert.Error(t, bad.UnmarshalBinary(b))
	assert.Error(t, bad.UnmarshalBinary(b[:20]))
}

func TestRandomizedOrderFlow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, s, q := openBook(t, 1, 2, 1024)
	replica := s.Clone()
	rq := NewEventQueue(m.ID, 64)
	owners := []AccountID{alice, bob, carol}

	var live []*OrderSummary
	for i := 0; i < 1500; i++ {
		if len(live) > 0 && rng.Intn(5) == 0 {
			k := rng.Intn(len(live))
			o := live[k]
			live = append(live[:k], live[k+1:]...)
			_, err := s.CancelOrder(o.OrderID, o.Side, q)
			_, rerr := replica.CancelOrder(o.OrderID, o.Side, rq)
			assert.Equal(t, err, rerr)
			continue
		}

		p := limitOrder(Side(rng.Intn(2)), uint64(95+rng.Intn(11)), uint64(1+rng.Intn(10)), owners[rng.Intn(3)])
		p.SelfTrade = SelfTradeHandler(rng.Intn(2))
		if rng.Intn(4) == 0 {
			p.Type = ImmediateOrCancel
		}
		before := restingQty(s)

		sum, err := s.NewOrder(m, p, q)
		require.NoError(t, err)
		rsum, err := replica.NewOrder(m, p, rq)
		require.NoError(t, err)
		assert.Equal(t, sum.Event, rsum.Event)

		var dropped uint64
		for _, r := range sum.Removed {
			dropped += r.RemainingBaseQty
		}
		assert.Equal(t, before+sum.PostedBaseQty-sum.FilledBaseQty-sum.SelfDecrementedQty-dropped, restingQty(s))
		assert.GreaterOrEqual(t, p.MaxBaseQty-sum.FilledBaseQty-sum.SelfDecrementedQty, sum.PostedBaseQty)

		if sum.PostedBaseQty > 0 {
			live = append(live, sum)
		}

		sp := s.Spread()
		if sp.HasBid && sp.HasAsk {
			require.Less(t, sp.Bid, sp.Ask, "book crossed after order %d", i)
		}
		require.NoError(t, s.Bids.Validate())
		require.NoError(t, s.Asks.Validate())
		q.Drain()
		rq.Drain()
	}
	assert.Equal(t, digest(t, s), digest(t, replica))
}
