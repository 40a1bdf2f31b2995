package wire

import (
	"github.com/cockroachdb/errors"

	"aaob/domain/orderbook"
)

// EventRecord is an event as published: Seq is the command that produced
// it and Index its position among that command's events.
type EventRecord struct {
	Seq   uint64
	Index uint32
	Event orderbook.Event
}

func AppendEventRecord(b []byte, r EventRecord) []byte {
	b = appendVarint(b, 1, r.Seq)
	b = appendVarint(b, 2, uint64(r.Index))
	return appendMessage(b, 3, AppendEvent(nil, r.Event))
}

func ParseEventRecord(b []byte) (EventRecord, error) {
	var r EventRecord
	err := parseFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			r.Seq = f.v
		case 2:
			r.Index = uint32(f.v)
		case 3:
			r.Event, err = ParseEvent(f.bytes)
		}
		return err
	})
	if err == nil && r.Event == nil {
		err = errors.Wrap(ErrMalformed, "event record without event")
	}
	return r, err
}

// AppendEvent encodes one queue event:
// 1 kind, 2 market, 3 order id, 4 side, 5 total base, 6 total quote,
// 7 posted base, 8 market name.
func AppendEvent(b []byte, e orderbook.Event) []byte {
	id := e.Market()
	b = appendVarint(b, 1, uint64(e.Kind()))
	b = appendBytes(b, 2, id[:])

	switch e := e.(type) {
	case orderbook.OrderCreated:
		b = appendMessage(b, 3, appendOrderID(nil, e.OrderID))
		b = appendVarint(b, 4, uint64(e.Side))
		b = appendVarint(b, 5, e.TotalBaseQty)
		b = appendVarint(b, 6, e.TotalQuoteQty)
		b = appendVarint(b, 7, e.TotalBaseQtyPosted)
	case orderbook.OrderCancelled:
		b = appendMessage(b, 3, appendOrderID(nil, e.OrderID))
		b = appendVarint(b, 4, uint64(e.Side))
	case orderbook.MarketCreated:
		b = appendBytes(b, 8, []byte(e.Name))
	case orderbook.MarketClosed:
		b = appendBytes(b, 8, []byte(e.Name))
	}
	return b
}

func ParseEvent(b []byte) (orderbook.Event, error) {
	var (
		kind   orderbook.EventKind
		market orderbook.MarketID
		id     orderbook.OrderID
		side   orderbook.Side
		base   uint64
		quote  uint64
		posted uint64
		name   string
	)
	err := parseFields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			kind = orderbook.EventKind(f.v)
		case 2:
			market, err = marketID(f.bytes)
		case 3:
			id, err = parseOrderID(f.bytes)
		case 4:
			side = orderbook.Side(f.v)
		case 5:
			base = f.v
		case 6:
			quote = f.v
		case 7:
			posted = f.v
		case 8:
			name = string(f.bytes)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case orderbook.KindOrderCreated:
		return orderbook.OrderCreated{
			OrderID:            id,
			MarketID:           market,
			Side:               side,
			TotalBaseQty:       base,
			TotalQuoteQty:      quote,
			TotalBaseQtyPosted: posted,
		}, nil
	case orderbook.KindOrderCancelled:
		return orderbook.OrderCancelled{OrderID: id, MarketID: market, Side: side}, nil
	case orderbook.KindMarketCreated:
		return orderbook.MarketCreated{MarketID: market, Name: name}, nil
	case orderbook.KindMarketClosed:
		return orderbook.MarketClosed{MarketID: market, Name: name}, nil
	default:
		return nil, errors.Wrapf(ErrMalformed, "event kind %d", kind)
	}
}
