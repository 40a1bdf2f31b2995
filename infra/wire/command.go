package wire

import (
	"github.com/cockroachdb/errors"

	"aaob/domain/orderbook"
)

type CommandKind uint8

const (
	CmdCreateMarket CommandKind = iota + 1
	CmdCloseMarket
	CmdNewOrder
	CmdCancelOrder
)

func (k CommandKind) String() string {
	switch k {
	case CmdCreateMarket:
		return "CREATE_MARKET"
	case CmdCloseMarket:
		return "CLOSE_MARKET"
	case CmdNewOrder:
		return "NEW_ORDER"
	case CmdCancelOrder:
		return "CANCEL_ORDER"
	default:
		return "UNKNOWN"
	}
}

// Command is one state-changing request as written to the entry WAL.
// Only the fields of its Kind are meaningful.
type Command struct {
	Kind CommandKind

	Market   orderbook.Market // CmdCreateMarket
	MarketID orderbook.MarketID

	Order orderbook.OrderParams // CmdNewOrder

	OrderID orderbook.OrderID // CmdCancelOrder
	Side    orderbook.Side
}

func AppendCommand(b []byte, c Command) []byte {
	b = appendVarint(b, 1, uint64(c.Kind))
	switch c.Kind {
	case CmdCreateMarket:
		b = appendMessage(b, 2, AppendMarket(nil, c.Market))
	case CmdCloseMarket:
		b = appendBytes(b, 3, c.MarketID[:])
	case CmdNewOrder:
		b = appendBytes(b, 3, c.MarketID[:])
		b = appendMessage(b, 4, appendOrderParams(nil, c.Order))
	case CmdCancelOrder:
		b = appendBytes(b, 3, c.MarketID[:])
		b = appendMessage(b, 5, appendOrderID(nil, c.OrderID))
		b = appendVarint(b, 6, uint64(c.Side))
	}
	return b
}

func ParseCommand(b []byte) (Command, error) {
	var c Command
	err := parseFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			c.Kind = CommandKind(f.v)
		case 2:
			c.Market, err = ParseMarket(f.bytes)
		case 3:
			c.MarketID, err = marketID(f.bytes)
		case 4:
			c.Order, err = parseOrderParams(f.bytes)
		case 5:
			c.OrderID, err = parseOrderID(f.bytes)
		case 6:
			c.Side = orderbook.Side(f.v)
		}
		return err
	})
	if err != nil {
		return Command{}, err
	}
	switch c.Kind {
	case CmdCreateMarket:
		c.MarketID = c.Market.ID
	case CmdCloseMarket, CmdNewOrder, CmdCancelOrder:
	default:
		return Command{}, errors.Wrapf(ErrMalformed, "command kind %d", c.Kind)
	}
	return c, nil
}

func appendOrderParams(b []byte, p orderbook.OrderParams) []byte {
	b = appendVarint(b, 1, uint64(p.Side))
	b = appendVarint(b, 2, uint64(p.Type))
	b = appendVarint(b, 3, p.LimitPrice)
	b = appendVarint(b, 4, p.MaxBaseQty)
	b = appendVarint(b, 5, p.MaxQuoteQty)
	b = appendVarint(b, 6, uint64(p.SelfTrade))
	b = appendVarint(b, 7, p.MatchLimit)
	return appendMessage(b, 8, appendCallback(nil, p.Callback))
}

func parseOrderParams(b []byte) (orderbook.OrderParams, error) {
	var p orderbook.OrderParams
	err := parseFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			p.Side = orderbook.Side(f.v)
		case 2:
			p.Type = orderbook.OrderType(f.v)
		case 3:
			p.LimitPrice = f.v
		case 4:
			p.MaxBaseQty = f.v
		case 5:
			p.MaxQuoteQty = f.v
		case 6:
			p.SelfTrade = orderbook.SelfTradeHandler(f.v)
		case 7:
			p.MatchLimit = f.v
		case 8:
			p.Callback, err = parseCallback(f.bytes)
		}
		return err
	})
	return p, err
}
