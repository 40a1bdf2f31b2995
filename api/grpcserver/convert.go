package grpcserver

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"aaob/domain/orderbook"
	"aaob/service"
)

// --- converters ---

func toSide(s string) (orderbook.Side, error) {
	switch strings.ToUpper(s) {
	case "BID", "BUY":
		return orderbook.Bid, nil
	case "ASK", "SELL":
		return orderbook.Ask, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown side %q", s)
	}
}

func toType(s string) (orderbook.OrderType, error) {
	switch strings.ToUpper(s) {
	case "", "LIMIT":
		return orderbook.Limit, nil
	case "IOC", "IMMEDIATE_OR_CANCEL":
		return orderbook.ImmediateOrCancel, nil
	case "FOK", "FILL_OR_KILL":
		return orderbook.FillOrKill, nil
	case "POST_ONLY":
		return orderbook.PostOnlyOrder, nil
	case "MARKET":
		return orderbook.MarketOrder, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown order type %q", s)
	}
}

func toSelfTrade(s string) (orderbook.SelfTradeHandler, error) {
	switch strings.ToUpper(s) {
	case "", "DECREMENT_TAKE":
		return orderbook.DecrementTake, nil
	case "CANCEL_PROVIDE":
		return orderbook.CancelProvide, nil
	case "ABORT_TX":
		return orderbook.AbortTx, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown self trade handler %q", s)
	}
}

func toMarketID(s string) (orderbook.MarketID, error) {
	id, err := orderbook.ParseMarketID(s)
	if err != nil {
		return id, status.Error(codes.InvalidArgument, err.Error())
	}
	return id, nil
}

func toAccount(s string) (orderbook.AccountID, error) {
	var a orderbook.AccountID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(a) {
		return a, status.Errorf(codes.InvalidArgument, "owner must be %d hex-encoded bytes", len(a))
	}
	copy(a[:], b)
	return a, nil
}

func toNonce(s string) (orderbook.Uint128, error) {
	var n orderbook.Uint128
	if s == "" {
		return n, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 16 {
		return n, status.Errorf(codes.InvalidArgument, "order nonce must be 16 hex-encoded bytes")
	}
	n.Hi = binary.BigEndian.Uint64(b[:8])
	n.Lo = binary.BigEndian.Uint64(b[8:])
	return n, nil
}

func toParams(req *NewOrderRequest) (orderbook.MarketID, orderbook.OrderParams, error) {
	var p orderbook.OrderParams
	id, err := toMarketID(req.MarketID)
	if err != nil {
		return id, p, err
	}
	if p.Side, err = toSide(req.Side); err != nil {
		return id, p, err
	}
	if p.Type, err = toType(req.Type); err != nil {
		return id, p, err
	}
	if p.SelfTrade, err = toSelfTrade(req.SelfTrade); err != nil {
		return id, p, err
	}
	if p.Callback.Owner, err = toAccount(req.Owner); err != nil {
		return id, p, err
	}
	if p.Callback.OrderNonce, err = toNonce(req.OrderNonce); err != nil {
		return id, p, err
	}
	p.Callback.OpenOrdersSlot = req.OpenOrdersSlot
	p.Callback.ClientOrderID = req.ClientOrderID
	p.LimitPrice = req.LimitPrice
	p.MaxBaseQty = req.MaxBaseQty
	p.MaxQuoteQty = req.MaxQuoteQty
	p.MatchLimit = req.MatchLimit
	return id, p, nil
}

func fromMarket(m orderbook.Market) Market {
	return Market{
		ID:          m.ID.String(),
		Name:        m.Name,
		TickSize:    m.TickSize,
		MinBaseSize: m.MinBaseSize,
		FeeBudget:   m.FeeBudget,
	}
}

func fromSummary(sum *orderbook.OrderSummary) *NewOrderResponse {
	resp := &NewOrderResponse{
		OrderID:            sum.OrderID.String(),
		Reason:             sum.Reason.String(),
		FilledBaseQty:      sum.FilledBaseQty,
		FilledQuoteQty:     sum.FilledQuoteQty,
		SelfDecrementedQty: sum.SelfDecrementedQty,
		PostedBaseQty:      sum.PostedBaseQty,
		Matches:            sum.Matches,
	}
	for _, f := range sum.Fills {
		resp.Fills = append(resp.Fills, Fill{
			MakerOrderID: f.MakerOrderID.String(),
			MakerOwner:   hex.EncodeToString(f.Maker.Owner[:]),
			Price:        f.Price,
			BaseQty:      f.BaseQty,
			QuoteQty:     f.QuoteQty,
		})
	}
	return resp
}

func fromLevels(levels []orderbook.Level) []Level {
	out := make([]Level, len(levels))
	for i, l := range levels {
		out[i] = Level{Price: l.Price, BaseQty: l.BaseQty, Orders: l.Orders}
	}
	return out
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, service.ErrUnavailable):
		code = codes.Unavailable
	case errors.IsAny(err, orderbook.ErrMarketNotFound, orderbook.ErrOrderNotFound):
		code = codes.NotFound
	case errors.IsAny(err, service.ErrMarketExists, orderbook.ErrAlreadyInitialized):
		code = codes.AlreadyExists
	case errors.IsAny(err, orderbook.ErrSlabOutOfSpace, orderbook.ErrEventQueueFull):
		code = codes.ResourceExhausted
	case errors.Is(err, orderbook.ErrNumericalOverflow):
		code = codes.OutOfRange
	case errors.IsAny(err,
		orderbook.ErrWouldSelfTrade,
		orderbook.ErrFillOrKillUnfilled,
		orderbook.ErrMarketStillActive,
	):
		code = codes.FailedPrecondition
	case errors.IsAny(err,
		orderbook.ErrInvalidLimitPrice,
		orderbook.ErrInvalidBaseQuantity,
		orderbook.ErrInvalidOrder,
		orderbook.ErrInvalidMarket,
	):
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
