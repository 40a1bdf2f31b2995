package grpcserver

// -------------------- Commands --------------------

type CreateMarketRequest struct {
	Name        string `json:"name"`
	TickSize    uint64 `json:"tick_size"`
	MinBaseSize uint64 `json:"min_base_size"`
	FeeBudget   uint64 `json:"fee_budget"`
}

type CloseMarketRequest struct {
	MarketID string `json:"market_id"`
}

type NewOrderRequest struct {
	MarketID string `json:"market_id"`
	Side     string `json:"side"`
	// Type defaults to LIMIT.
	Type        string `json:"type,omitempty"`
	LimitPrice  uint64 `json:"limit_price"`
	MaxBaseQty  uint64 `json:"max_base_qty"`
	MaxQuoteQty uint64 `json:"max_quote_qty,omitempty"`
	// SelfTrade defaults to DECREMENT_TAKE.
	SelfTrade     string `json:"self_trade,omitempty"`
	MatchLimit    uint64 `json:"match_limit"`
	Owner          string `json:"owner"`
	OpenOrdersSlot uint64 `json:"open_orders_slot,omitempty"`
	// OrderNonce is 32 hex digits, high word first. Empty means zero.
	OrderNonce    string `json:"order_nonce,omitempty"`
	ClientOrderID uint64 `json:"client_order_id,omitempty"`
}

type Fill struct {
	MakerOrderID string `json:"maker_order_id"`
	MakerOwner   string `json:"maker_owner"`
	Price        uint64 `json:"price"`
	BaseQty      uint64 `json:"base_qty"`
	QuoteQty     uint64 `json:"quote_qty"`
}

type NewOrderResponse struct {
	OrderID            string `json:"order_id"`
	Reason             string `json:"reason"`
	FilledBaseQty      uint64 `json:"filled_base_qty"`
	FilledQuoteQty     uint64 `json:"filled_quote_qty"`
	SelfDecrementedQty uint64 `json:"self_decremented_qty,omitempty"`
	PostedBaseQty      uint64 `json:"posted_base_qty"`
	Matches            uint64 `json:"matches"`
	Fills              []Fill `json:"fills,omitempty"`
	// Warning is set when the order traded but its remainder could not be
	// posted.
	Warning string `json:"warning,omitempty"`
}

type CancelOrderRequest struct {
	MarketID string `json:"market_id"`
	OrderID  string `json:"order_id"`
	Side     string `json:"side"`
}

type CancelOrderResponse struct {
	OrderID          string `json:"order_id"`
	Price            uint64 `json:"price"`
	RemainingBaseQty uint64 `json:"remaining_base_qty"`
}

type Empty struct{}

// -------------------- Queries --------------------

type Market struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TickSize    uint64 `json:"tick_size"`
	MinBaseSize uint64 `json:"min_base_size"`
	FeeBudget   uint64 `json:"fee_budget"`
}

type MarketsResponse struct {
	Markets []Market `json:"markets"`
}

type BestBidOfferRequest struct {
	MarketID string `json:"market_id"`
}

// BestBidOfferResponse leaves a side nil when it has no orders.
type BestBidOfferResponse struct {
	Bid *uint64 `json:"bid,omitempty"`
	Ask *uint64 `json:"ask,omitempty"`
}

type OrderbookRequest struct {
	MarketID string `json:"market_id"`
	// Depth <= 0 returns every level.
	Depth int `json:"depth"`
}

type Level struct {
	Price   uint64 `json:"price"`
	BaseQty uint64 `json:"base_qty"`
	Orders  int    `json:"orders"`
}

type OrderbookResponse struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}
