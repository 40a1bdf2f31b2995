package orderbook

// EventQueue is an append-only, bounded event log bound to one market.
// Appending past capacity fails; nothing is ever dropped, so consumers may
// assume completeness.
type EventQueue struct {
	market   MarketID
	capacity int
	events   []Event
}

func NewEventQueue(market MarketID, capacity int) *EventQueue {
	if capacity <= 0 {
		panic("orderbook: event queue capacity must be positive")
	}
	return &EventQueue{
		market:   market,
		capacity: capacity,
		events:   make([]Event, 0, capacity),
	}
}

func (q *EventQueue) Market() MarketID { return q.market }
func (q *EventQueue) Len() int         { return len(q.events) }
func (q *EventQueue) Cap() int         { return q.capacity }

// Remaining is the number of events that can still be appended.
func (q *EventQueue) Remaining() int { return q.capacity - len(q.events) }

func (q *EventQueue) Append(e Event) error {
	if len(q.events) >= q.capacity {
		return ErrEventQueueFull
	}
	if e.Market() != q.market {
		return ErrWrongEventQueueAccount
	}
	q.events = append(q.events, e)
	return nil
}

// Events returns a copy of the queued events in append order.
func (q *EventQueue) Events() []Event {
	out := make([]Event, len(q.events))
	copy(out, q.events)
	return out
}

// Drain hands the queued events to the caller and empties the queue.
func (q *EventQueue) Drain() []Event {
	out := q.events
	q.events = make([]Event, 0, q.capacity)
	return out
}

// reserve fails unless n more events fit; operations call it before any
// mutation they could not undo.
func (q *EventQueue) reserve(n int) error {
	if q.Remaining() < n {
		return ErrEventQueueFull
	}
	return nil
}

func (q *EventQueue) check(market MarketID) error {
	if q == nil || q.market != market {
		return ErrWrongEventQueueAccount
	}
	return nil
}
