// Package wire encodes commands, events and markets in the protobuf wire
// format. Messages are built with protowire directly; field numbers are
// stable and only ever appended.
package wire

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"aaob/domain/orderbook"
)

var ErrMalformed = errors.New("wire: malformed message")

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	return appendBytes(b, num, msg)
}

type field struct {
	num   protowire.Number
	typ   protowire.Type
	v     uint64
	bytes []byte
}

// parseFields walks the fields of one message in order. Unknown numbers are
// handed to fn like any other field and ignored there.
func parseFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "wire: tag")
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "wire: field %d", num)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func marketID(b []byte) (orderbook.MarketID, error) {
	var id orderbook.MarketID
	if len(b) != len(id) {
		return id, errors.Wrapf(ErrMalformed, "market id of %d bytes", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ---- shared messages ----

func appendOrderID(b []byte, id orderbook.OrderID) []byte {
	b = appendFixed64(b, 1, id.Hi)
	return appendFixed64(b, 2, id.Lo)
}

func parseOrderID(b []byte) (orderbook.OrderID, error) {
	var id orderbook.OrderID
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			id.Hi = f.v
		case 2:
			id.Lo = f.v
		}
		return nil
	})
	return id, err
}

func appendCallback(b []byte, c orderbook.CallbackInfo) []byte {
	b = appendBytes(b, 1, c.Owner[:])
	b = appendVarint(b, 2, c.OpenOrdersSlot)
	b = appendFixed64(b, 3, c.OrderNonce.Hi)
	b = appendFixed64(b, 4, c.OrderNonce.Lo)
	return appendVarint(b, 5, c.ClientOrderID)
}

func parseCallback(b []byte) (orderbook.CallbackInfo, error) {
	var c orderbook.CallbackInfo
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			if len(f.bytes) != len(c.Owner) {
				return errors.Wrap(ErrMalformed, "owner")
			}
			copy(c.Owner[:], f.bytes)
		case 2:
			c.OpenOrdersSlot = f.v
		case 3:
			c.OrderNonce.Hi = f.v
		case 4:
			c.OrderNonce.Lo = f.v
		case 5:
			c.ClientOrderID = f.v
		}
		return nil
	})
	return c, err
}

// AppendMarket encodes the static parameters of m. The id is derived from
// the name and not stored.
func AppendMarket(b []byte, m orderbook.Market) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)
	b = appendVarint(b, 2, m.TickSize)
	b = appendVarint(b, 3, m.MinBaseSize)
	return appendVarint(b, 4, m.FeeBudget)
}

func ParseMarket(b []byte) (orderbook.Market, error) {
	var m orderbook.Market
	err := parseFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = string(f.bytes)
		case 2:
			m.TickSize = f.v
		case 3:
			m.MinBaseSize = f.v
		case 4:
			m.FeeBudget = f.v
		}
		return nil
	})
	if err != nil {
		return orderbook.Market{}, err
	}
	if m.Name == "" {
		return orderbook.Market{}, errors.Wrap(ErrMalformed, "market without name")
	}
	m.ID = orderbook.MarketIDFromName(m.Name)
	return m, nil
}
