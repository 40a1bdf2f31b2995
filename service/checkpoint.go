package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aaob/domain/orderbook"
	"aaob/infra/store"
)

// Checkpoint writes every book changed since the previous checkpoint to the
// store, then drops the WAL segments and acknowledged outbox entries the
// checkpoint makes redundant. It returns the checkpointed sequence.
func (e *Exchange) Checkpoint() (uint64, error) {
	e.mu.Lock()
	u := store.Update{Seq: e.applied, Closed: e.closed}
	for id := range e.dirty {
		m := e.books[id]
		u.Books = append(u.Books, store.Book{Market: m.market, State: m.state.Clone()})
	}
	e.dirty = make(map[orderbook.MarketID]bool)
	e.closed = nil
	e.mu.Unlock()

	if err := e.store.Apply(u); err != nil {
		e.mu.Lock()
		for _, b := range u.Books {
			if _, open := e.books[b.Market.ID]; open {
				e.dirty[b.Market.ID] = true
			}
		}
		for _, id := range u.Closed {
			if _, reopened := e.books[id]; !reopened {
				e.closed = append(e.closed, id)
			}
		}
		e.mu.Unlock()
		e.metrics.Checkpoints.WithLabelValues("error").Inc()
		return 0, unavailable(err, "checkpoint")
	}
	e.metrics.Checkpoints.WithLabelValues("ok").Inc()

	segments, err := e.entryWAL.TruncateBefore(u.Seq)
	if err != nil {
		e.log.Warn("entry wal truncation failed", zap.Error(err))
	}
	acked, err := e.exitWAL.TruncateAckedUpTo(u.Seq)
	if err != nil {
		e.log.Warn("outbox truncation failed", zap.Error(err))
	}

	e.log.Debug("checkpoint",
		zap.Uint64("seq", u.Seq),
		zap.Int("books", len(u.Books)),
		zap.Int("closed", len(u.Closed)),
		zap.Int("wal_segments_removed", segments),
		zap.Int("outbox_removed", acked),
	)
	return u.Seq, nil
}

// StartCheckpointJob checkpoints every interval until ctx is done, and once
// more on the way out.
func (e *Exchange) StartCheckpointJob(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				if _, err := e.Checkpoint(); err != nil {
					e.log.Error("final checkpoint failed", zap.Error(err))
				}
				return
			case <-t.C:
				if _, err := e.Checkpoint(); err != nil {
					e.log.Error("checkpoint failed", zap.Error(err))
				}
			}
		}
	}()
	return done
}
