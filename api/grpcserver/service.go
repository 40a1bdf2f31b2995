package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "aaob.Exchange"

// ExchangeServer is the server API of aaob.Exchange.
type ExchangeServer interface {
	CreateMarket(context.Context, *CreateMarketRequest) (*Market, error)
	CloseMarket(context.Context, *CloseMarketRequest) (*Empty, error)
	NewOrder(context.Context, *NewOrderRequest) (*NewOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	Markets(context.Context, *Empty) (*MarketsResponse, error)
	BestBidOffer(context.Context, *BestBidOfferRequest) (*BestBidOfferResponse, error)
	Orderbook(context.Context, *OrderbookRequest) (*OrderbookResponse, error)
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds the handler of one method.
func unary[Req any, Resp any](name string, call func(ExchangeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			})
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateMarket", ExchangeServer.CreateMarket),
		unary("CloseMarket", ExchangeServer.CloseMarket),
		unary("NewOrder", ExchangeServer.NewOrder),
		unary("CancelOrder", ExchangeServer.CancelOrder),
		unary("Markets", ExchangeServer.Markets),
		unary("BestBidOffer", ExchangeServer.BestBidOffer),
		unary("Orderbook", ExchangeServer.Orderbook),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aaob/exchange",
}

// -------------------- Client --------------------

// Client calls aaob.Exchange over conn using the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMarket(ctx context.Context, req *CreateMarketRequest, opts ...grpc.CallOption) (*Market, error) {
	return invoke[Market](ctx, c, "CreateMarket", req, opts)
}

func (c *Client) CloseMarket(ctx context.Context, req *CloseMarketRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "CloseMarket", req, opts)
}

func (c *Client) NewOrder(ctx context.Context, req *NewOrderRequest, opts ...grpc.CallOption) (*NewOrderResponse, error) {
	return invoke[NewOrderResponse](ctx, c, "NewOrder", req, opts)
}

func (c *Client) CancelOrder(ctx context.Context, req *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	return invoke[CancelOrderResponse](ctx, c, "CancelOrder", req, opts)
}

func (c *Client) Markets(ctx context.Context, opts ...grpc.CallOption) (*MarketsResponse, error) {
	return invoke[MarketsResponse](ctx, c, "Markets", &Empty{}, opts)
}

func (c *Client) BestBidOffer(ctx context.Context, req *BestBidOfferRequest, opts ...grpc.CallOption) (*BestBidOfferResponse, error) {
	return invoke[BestBidOfferResponse](ctx, c, "BestBidOffer", req, opts)
}

func (c *Client) Orderbook(ctx context.Context, req *OrderbookRequest, opts ...grpc.CallOption) (*OrderbookResponse, error) {
	return invoke[OrderbookResponse](ctx, c, "Orderbook", req, opts)
}
