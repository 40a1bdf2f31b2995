package service

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"aaob/domain/orderbook"
	entrywal "aaob/infra/wal/entry"
	"aaob/infra/wire"
)

/*
Recover rebuilds in-memory state: the last checkpoint from the store, then
every entry WAL record after it.

IMPORTANT:
- This MUST run before accepting traffic
- Commands the books rejected when first run are rejected again; only
  WAL, outbox and store failures stop the replay
*/
func (e *Exchange) Recover() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	books, err := e.store.Books()
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}
	checkpoint, err := e.store.LastApplied()
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}
	for _, b := range books {
		e.books[b.Market.ID] = &market{
			market: b.Market,
			state:  b.State,
			queue:  orderbook.NewEventQueue(b.Market.ID, e.cfg.EventQueueCapacity),
		}
	}
	e.applied = checkpoint

	replayed := 0
	lastSeq, err := entrywal.Replay(e.cfg.EntryWALDir, checkpoint, func(rec *entrywal.Record) error {
		c, err := wire.ParseCommand(rec.Data)
		if err != nil {
			return errors.Wrapf(err, "wal seq %d", rec.Seq)
		}
		replayed++
		if _, err := e.apply(rec.Seq, c); err != nil {
			if errors.Is(err, ErrUnavailable) {
				return err
			}
			e.log.Debug("replayed command rejected",
				zap.Uint64("seq", rec.Seq),
				zap.Stringer("kind", c.Kind),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "replay entry wal")
	}

	// Resume sequencing AFTER replay; the WAL may have been truncated past
	// the checkpoint.
	resume := max(lastSeq, checkpoint)
	if resume > e.seq.Current() {
		if err := e.seq.Observe(resume); err != nil {
			return err
		}
	}

	e.log.Info("recovered",
		zap.Int("markets", len(e.books)),
		zap.Uint64("checkpoint", checkpoint),
		zap.Int("replayed", replayed),
		zap.Uint64("last_seq", resume),
	)
	return nil
}
