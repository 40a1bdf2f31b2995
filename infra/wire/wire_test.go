package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"aaob/domain/orderbook"
)

func TestCommandRoundTrip(t *testing.T) {
	m, err := orderbook.NewMarket("SOL/USDC", 10, 2, 77)
	require.NoError(t, err)

	order := orderbook.OrderParams{
		Side:        orderbook.Ask,
		Type:        orderbook.PostOnlyOrder,
		LimitPrice:  1230,
		MaxBaseQty:  5,
		MaxQuoteQty: 1 << 40,
		SelfTrade:   orderbook.CancelProvide,
		MatchLimit:  16,
		Callback: orderbook.CallbackInfo{
			Owner:          orderbook.AccountID{1, 2, 3},
			OpenOrdersSlot: 9,
			OrderNonce:     orderbook.Uint128{Hi: 1, Lo: ^uint64(0)},
			ClientOrderID:  42,
		},
	}

	for _, c := range []Command{
		{Kind: CmdCreateMarket, Market: m, MarketID: m.ID},
		{Kind: CmdCloseMarket, MarketID: m.ID},
		{Kind: CmdNewOrder, MarketID: m.ID, Order: order},
		{Kind: CmdCancelOrder, MarketID: m.ID, OrderID: orderbook.OrderID{Hi: ^uint64(1230), Lo: 7}, Side: orderbook.Bid},
	} {
		t.Run(c.Kind.String(), func(t *testing.T) {
			got, err := ParseCommand(AppendCommand(nil, c))
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
}

func TestParseSkipsUnknownFields(t *testing.T) {
	m, err := orderbook.NewMarket("BTC/USDC", 1, 0, 0)
	require.NoError(t, err)

	b := AppendMarket(nil, m)
	b = appendVarint(b, 99, 12345)
	b = protowire.AppendTag(b, 100, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)

	got, err := ParseMarket(b)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	m, err := orderbook.NewMarket("BTC/USDC", 1, 0, 0)
	require.NoError(t, err)
	good := AppendCommand(nil, Command{Kind: CmdCloseMarket, MarketID: m.ID})

	_, err = ParseCommand(good[:len(good)-3])
	assert.Error(t, err)

	_, err = ParseCommand(appendVarint(nil, 1, 99))
	assert.ErrorIs(t, err, ErrMalformed)

	bad := appendVarint(nil, 1, uint64(CmdCloseMarket))
	bad = appendBytes(bad, 3, []byte{1, 2, 3})
	_, err = ParseCommand(bad)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseEvent(appendVarint(nil, 1, 0))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEventRecordRoundTrip(t *testing.T) {
	id := orderbook.MarketIDFromName("ETH/USDC")
	for _, e := range []orderbook.Event{
		orderbook.OrderCreated{
			OrderID:            orderbook.OrderID{Hi: 100, Lo: 3},
			MarketID:           id,
			Side:               orderbook.Ask,
			TotalBaseQty:       10,
			TotalQuoteQty:      1000,
			TotalBaseQtyPosted: 4,
		},
		orderbook.OrderCancelled{OrderID: orderbook.OrderID{Hi: 100, Lo: 3}, MarketID: id, Side: orderbook.Ask},
		orderbook.MarketCreated{MarketID: id, Name: "ETH/USDC"},
		orderbook.MarketClosed{MarketID: id, Name: "ETH/USDC"},
	} {
		t.Run(e.Kind().String(), func(t *testing.T) {
			r := EventRecord{Seq: 12, Index: 1, Event: e}
			got, err := ParseEventRecord(AppendEventRecord(nil, r))
			require.NoError(t, err)
			assert.Equal(t, r, got)
		})
	}
}
