package orderbook

import "github.com/cockroachdb/errors"

// Every failure leaves the OrderbookState and the EventQueue exactly as
// they were, except ErrSlabOutOfSpace returned together with a summary: the
// fills described by that summary were committed.
var (
	// resource exhaustion
	ErrSlabOutOfSpace = errors.New("the market's memory is full")
	ErrEventQueueFull = errors.New("the event queue is full")

	// not-found / state mismatch
	ErrOrderNotFound          = errors.New("the order could not be found")
	ErrMarketNotFound         = errors.New("the market could not be found")
	ErrWrongBidsAccount       = errors.New("an invalid bids account has been provided")
	ErrWrongAsksAccount       = errors.New("an invalid asks account has been provided")
	ErrWrongEventQueueAccount = errors.New("an invalid event queue account has been provided")

	// policy violation
	ErrWouldSelfTrade      = errors.New("the order would self trade")
	ErrInvalidLimitPrice   = errors.New("limit price must be a tick size multiple")
	ErrInvalidBaseQuantity = errors.New("the base quantity must be > 0")
	ErrFillOrKillUnfilled  = errors.New("fill-or-kill order cannot be fully filled")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrInvalidMarket       = errors.New("invalid market parameters")

	// arithmetic
	ErrNumericalOverflow = errors.New("numerical overflow")

	// lifecycle
	ErrAlreadyInitialized = errors.New("this account is already initialized")
	ErrMarketStillActive  = errors.New("the market is still active")
)
