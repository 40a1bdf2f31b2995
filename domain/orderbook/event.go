package orderbook

type EventKind uint8

const (
	KindOrderCreated EventKind = iota + 1
	KindOrderCancelled
	KindMarketCreated
	KindMarketClosed
)

func (k EventKind) String() string {
	switch k {
	case KindOrderCreated:
		return "ORDER_CREATED"
	case KindOrderCancelled:
		return "ORDER_CANCELLED"
	case KindMarketCreated:
		return "MARKET_CREATED"
	case KindMarketClosed:
		return "MARKET_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Event is a lifecycle record consumed by indexers and the risk engine.
type Event interface {
	Kind() EventKind
	Market() MarketID
}

// OrderCreated summarises a new order: fills are aggregated, never itemised.
// Totals include the posted quantity.
type OrderCreated struct {
	OrderID            OrderID
	MarketID           MarketID
	Side               Side
	TotalBaseQty       uint64
	TotalQuoteQty      uint64
	TotalBaseQtyPosted uint64
}

type OrderCancelled struct {
	OrderID  OrderID
	MarketID MarketID
	Side     Side
}

type MarketCreated struct {
	MarketID MarketID
	Name     string
}

type MarketClosed struct {
	MarketID MarketID
	Name     string
}

func (OrderCreated) Kind() EventKind   { return KindOrderCreated }
func (OrderCancelled) Kind() EventKind { return KindOrderCancelled }
func (MarketCreated) Kind() EventKind  { return KindMarketCreated }
func (MarketClosed) Kind() EventKind   { return KindMarketClosed }

func (e OrderCreated) Market() MarketID   { return e.MarketID }
func (e OrderCancelled) Market() MarketID { return e.MarketID }
func (e MarketCreated) Market() MarketID  { return e.MarketID }
func (e MarketClosed) Market() MarketID   { return e.MarketID }
