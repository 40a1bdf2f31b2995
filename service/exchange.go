package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"aaob/domain/orderbook"
	"aaob/domain/slab"
	"aaob/infra/sequence"
	"aaob/infra/store"
	entrywal "aaob/infra/wal/entry"
	exitwal "aaob/infra/wal/exit"
	"aaob/infra/wire"
)

type Config struct {
	SlabCapacity       int
	EventQueueCapacity int
	// EntryWALDir is read by Recover.
	EntryWALDir string
}

type market struct {
	market orderbook.Market
	state  *orderbook.OrderbookState
	queue  *orderbook.EventQueue
}

/*
Exchange is the ONLY write entry point into the system.

Every command is processed to completion under one lock:
sequence -> entry WAL -> book -> outbox.
Books are checkpointed to the store in the background.
*/
type Exchange struct {
	mu sync.Mutex

	cfg     Config
	log     *zap.Logger
	metrics *Metrics

	seq      *sequence.Sequencer
	entryWAL *entrywal.WAL
	exitWAL  *exitwal.ExitWAL
	store    store.Accessor

	books   map[orderbook.MarketID]*market
	dirty   map[orderbook.MarketID]bool
	closed  []orderbook.MarketID
	applied uint64
	failed  error
}

// New wires all dependencies. Call Recover before serving traffic.
func New(
	cfg Config,
	log *zap.Logger,
	metrics *Metrics,
	st store.Accessor,
	entryWAL *entrywal.WAL,
	exitWAL *exitwal.ExitWAL,
) *Exchange {
	return &Exchange{
		cfg:      cfg,
		log:      log.Named("exchange"),
		metrics:  metrics,
		seq:      sequence.New(0),
		entryWAL: entryWAL,
		exitWAL:  exitWAL,
		store:    st,
		books:    make(map[orderbook.MarketID]*market),
		dirty:    make(map[orderbook.MarketID]bool),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// CreateMarket opens an empty book for name.
func (e *Exchange) CreateMarket(ctx context.Context, name string, tickSize, minBaseSize, feeBudget uint64) (orderbook.Market, error) {
	m, err := orderbook.NewMarket(name, tickSize, minBaseSize, feeBudget)
	if err != nil {
		return orderbook.Market{}, err
	}
	if _, err := e.exec(ctx, wire.Command{Kind: wire.CmdCreateMarket, Market: m, MarketID: m.ID}); err != nil {
		return orderbook.Market{}, err
	}
	return m, nil
}

// CloseMarket retires an empty book.
func (e *Exchange) CloseMarket(ctx context.Context, id orderbook.MarketID) error {
	_, err := e.exec(ctx, wire.Command{Kind: wire.CmdCloseMarket, MarketID: id})
	return err
}

// NewOrder submits an order. With ErrSlabOutOfSpace the summary may still be
// non-nil: its fills happened, only the remainder was not posted.
func (e *Exchange) NewOrder(ctx context.Context, id orderbook.MarketID, p orderbook.OrderParams) (*orderbook.OrderSummary, error) {
	res, err := e.exec(ctx, wire.Command{Kind: wire.CmdNewOrder, MarketID: id, Order: p})
	sum, _ := res.(*orderbook.OrderSummary)
	return sum, err
}

func (e *Exchange) CancelOrder(ctx context.Context, id orderbook.MarketID, orderID orderbook.OrderID, side orderbook.Side) (*orderbook.CancelSummary, error) {
	res, err := e.exec(ctx, wire.Command{Kind: wire.CmdCancelOrder, MarketID: id, OrderID: orderID, Side: side})
	if err != nil {
		return nil, err
	}
	return res.(*orderbook.CancelSummary), nil
}

func (e *Exchange) exec(ctx context.Context, c wire.Command) (res any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.observe(c, res, err, start) }()

	if e.failed != nil {
		return nil, unavailable(e.failed, "exchange halted")
	}
	if c.Kind == wire.CmdCreateMarket {
		if _, ok := e.books[c.MarketID]; ok {
			return nil, ErrMarketExists
		}
	} else if _, err := e.lookup(c.MarketID); err != nil {
		return nil, err
	}

	seq := e.seq.Next()
	rec := entrywal.NewRecord(entrywal.RecordType(c.Kind), seq, wire.AppendCommand(nil, c))
	if err := e.entryWAL.Append(rec); err != nil {
		e.failed = err
		return nil, unavailable(err, "entry wal")
	}

	res, err = e.apply(seq, c)
	if errors.Is(err, ErrUnavailable) {
		e.failed = err
		e.log.Error("command failed after logging", zap.Uint64("seq", seq), zap.Error(err))
	}
	return res, err
}

// apply runs a logged command. It is shared by live traffic and replay and
// must stay deterministic.
func (e *Exchange) apply(seq uint64, c wire.Command) (any, error) {
	e.applied = seq

	var (
		m   *market
		res any
		err error
	)
	switch c.Kind {
	case wire.CmdCreateMarket:
		if _, ok := e.books[c.Market.ID]; ok {
			return nil, ErrMarketExists
		}
		q := orderbook.NewEventQueue(c.Market.ID, e.cfg.EventQueueCapacity)
		s, oerr := orderbook.OpenMarket(c.Market, e.cfg.SlabCapacity, q)
		if oerr != nil {
			return nil, oerr
		}
		m = &market{market: c.Market, state: s, queue: q}
		e.books[c.Market.ID] = m
		e.closed = slices.DeleteFunc(e.closed, func(id orderbook.MarketID) bool { return id == c.Market.ID })
		res = c.Market

	case wire.CmdCloseMarket:
		if m, err = e.lookup(c.MarketID); err != nil {
			return nil, err
		}
		if err := m.state.CloseMarket(m.market, m.queue); err != nil {
			return nil, err
		}
		delete(e.books, c.MarketID)
		delete(e.dirty, c.MarketID)
		e.closed = append(e.closed, c.MarketID)

	case wire.CmdNewOrder:
		if m, err = e.lookup(c.MarketID); err != nil {
			return nil, err
		}
		var sum *orderbook.OrderSummary
		sum, err = m.state.NewOrder(m.market, c.Order, m.queue)
		if sum == nil {
			return nil, err
		}
		res = sum

	case wire.CmdCancelOrder:
		if m, err = e.lookup(c.MarketID); err != nil {
			return nil, err
		}
		cs, cerr := m.state.CancelOrder(c.OrderID, c.Side, m.queue)
		if cerr != nil {
			return nil, cerr
		}
		res = cs

	default:
		return nil, errors.Newf("unknown command kind %d", c.Kind)
	}

	if c.Kind != wire.CmdCloseMarket {
		e.dirty[m.market.ID] = true
	}
	if perr := e.publish(seq, m.queue); perr != nil {
		return nil, perr
	}
	return res, err
}

// publish moves the queued events of one command into the outbox.
func (e *Exchange) publish(seq uint64, q *orderbook.EventQueue) error {
	events := q.Drain()
	payloads := make([][]byte, len(events))
	for i, ev := range events {
		payloads[i] = wire.AppendEventRecord(nil, wire.EventRecord{Seq: seq, Index: uint32(i), Event: ev})
	}
	if err := e.exitWAL.PutNew(seq, payloads); err != nil {
		return unavailable(err, "outbox")
	}
	return nil
}

func (e *Exchange) lookup(id orderbook.MarketID) (*market, error) {
	m, ok := e.books[id]
	if !ok {
		return nil, orderbook.ErrMarketNotFound
	}
	return m, nil
}

func (e *Exchange) observe(c wire.Command, res any, err error, start time.Time) {
	result := "ok"
	switch {
	case errors.Is(err, ErrUnavailable):
		result = "error"
	case err != nil && res == nil:
		result = "rejected"
	}
	e.metrics.Commands.WithLabelValues(c.Kind.String(), result).Inc()
	e.metrics.CommandTime.Observe(time.Since(start).Seconds())

	if sum, ok := res.(*orderbook.OrderSummary); ok {
		e.metrics.Fills.Add(float64(len(sum.Fills)))
		e.metrics.FilledBaseQty.Add(float64(sum.FilledBaseQty))
	}
	if m, ok := e.books[c.MarketID]; ok {
		e.metrics.RestingOrders.WithLabelValues(m.market.Name, "bid").Set(float64(m.state.Bids.Len()))
		e.metrics.RestingOrders.WithLabelValues(m.market.Name, "ask").Set(float64(m.state.Asks.Len()))
	}
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Markets returns the open markets ordered by name.
func (e *Exchange) Markets() []orderbook.Market {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]orderbook.Market, 0, len(e.books))
	for _, m := range e.books {
		out = append(out, m.market)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Exchange) Market(id orderbook.MarketID) (orderbook.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.lookup(id)
	if err != nil {
		return orderbook.Market{}, err
	}
	return m.market, nil
}

func (e *Exchange) BestBidOffer(id orderbook.MarketID) (orderbook.Spread, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.lookup(id)
	if err != nil {
		return orderbook.Spread{}, err
	}
	return m.state.Spread(), nil
}

// Depth returns up to depth aggregated levels per side, best first.
func (e *Exchange) Depth(id orderbook.MarketID, depth int) (bids, asks []orderbook.Level, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	return m.state.Levels(orderbook.Bid, depth), m.state.Levels(orderbook.Ask, depth), nil
}

// Order returns a resting order.
func (e *Exchange) Order(id orderbook.MarketID, orderID orderbook.OrderID, side orderbook.Side) (slab.Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.lookup(id)
	if err != nil {
		return slab.Node{}, err
	}
	n, ok := m.state.Order(orderID, side)
	if !ok {
		return slab.Node{}, orderbook.ErrOrderNotFound
	}
	return n, nil
}

// Applied is the sequence of the last command executed.
func (e *Exchange) Applied() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applied
}
