package grpcserver

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"aaob/domain/orderbook"
	"aaob/service"
)

// Server adapts the Exchange to gRPC.
type Server struct {
	ex  *service.Exchange
	log *zap.Logger
}

func NewServer(ex *service.Exchange, log *zap.Logger) *Server {
	return &Server{ex: ex, log: log.Named("grpc")}
}

// -------------------- Commands --------------------

func (s *Server) CreateMarket(ctx context.Context, req *CreateMarketRequest) (*Market, error) {
	m, err := s.ex.CreateMarket(ctx, req.Name, req.TickSize, req.MinBaseSize, req.FeeBudget)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("market created", zap.String("name", m.Name), zap.Stringer("id", m.ID))
	out := fromMarket(m)
	return &out, nil
}

func (s *Server) CloseMarket(ctx context.Context, req *CloseMarketRequest) (*Empty, error) {
	id, err := toMarketID(req.MarketID)
	if err != nil {
		return nil, err
	}
	if err := s.ex.CloseMarket(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("market closed", zap.Stringer("id", id))
	return &Empty{}, nil
}

func (s *Server) NewOrder(ctx context.Context, req *NewOrderRequest) (*NewOrderResponse, error) {
	id, p, err := toParams(req)
	if err != nil {
		return nil, err
	}

	sum, err := s.ex.NewOrder(ctx, id, p)
	if sum == nil {
		return nil, toStatus(err)
	}
	resp := fromSummary(sum)
	if err != nil {
		resp.Warning = err.Error()
	}

	s.log.Debug("new order",
		zap.Stringer("side", p.Side),
		zap.Stringer("type", p.Type),
		zap.Uint64("price", p.LimitPrice),
		zap.Uint64("qty", p.MaxBaseQty),
		zap.Stringer("reason", sum.Reason),
		zap.Uint64("seq", sum.OrderID.Sequence()),
	)
	return resp, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	id, err := toMarketID(req.MarketID)
	if err != nil {
		return nil, err
	}
	side, err := toSide(req.Side)
	if err != nil {
		return nil, err
	}
	orderID, err := orderbook.ParseOrderID(req.OrderID)
	if err != nil {
		return nil, toStatus(errors.Mark(err, orderbook.ErrInvalidOrder))
	}

	cs, err := s.ex.CancelOrder(ctx, id, orderID, side)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelOrderResponse{
		OrderID:          cs.OrderID.String(),
		Price:            cs.Price,
		RemainingBaseQty: cs.RemainingBaseQty,
	}, nil
}

// -------------------- Queries --------------------

func (s *Server) Markets(ctx context.Context, _ *Empty) (*MarketsResponse, error) {
	markets := s.ex.Markets()
	resp := &MarketsResponse{Markets: make([]Market, 0, len(markets))}
	for _, m := range markets {
		resp.Markets = append(resp.Markets, fromMarket(m))
	}
	return resp, nil
}

func (s *Server) BestBidOffer(ctx context.Context, req *BestBidOfferRequest) (*BestBidOfferResponse, error) {
	id, err := toMarketID(req.MarketID)
	if err != nil {
		return nil, err
	}
	sp, err := s.ex.BestBidOffer(id)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &BestBidOfferResponse{}
	if sp.HasBid {
		resp.Bid = &sp.Bid
	}
	if sp.HasAsk {
		resp.Ask = &sp.Ask
	}
	return resp, nil
}

func (s *Server) Orderbook(ctx context.Context, req *OrderbookRequest) (*OrderbookResponse, error) {
	id, err := toMarketID(req.MarketID)
	if err != nil {
		return nil, err
	}
	bids, asks, err := s.ex.Depth(id, req.Depth)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderbookResponse{Bids: fromLevels(bids), Asks: fromLevels(asks)}, nil
}
