package broadcaster

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"aaob/infra/kafka"
	exitwal "aaob/infra/wal/exit"
	"aaob/infra/wire"
)

type Config struct {
	Interval  time.Duration
	BatchSize int
	// MaxBackoff caps the wait before a FAILED entry is retried.
	MaxBackoff time.Duration
}

// Broadcaster drains the outbox to Kafka. Delivery is at-least-once:
// an entry is ACKED only after the publisher confirmed it.
type Broadcaster struct {
	cfg     Config
	exitWAL *exitwal.ExitWAL
	pub     kafka.Publisher
	log     *zap.Logger
	now     func() time.Time
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(cfg Config, exitWAL *exitwal.ExitWAL, pub kafka.Publisher, log *zap.Logger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Broadcaster{
		cfg:     cfg,
		exitWAL: exitWAL,
		pub:     pub,
		log:     log.Named("broadcaster"),
		now:     time.Now,
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Start publishes every Interval until ctx is done. The returned channel is
// closed once the loop has exited.
func (b *Broadcaster) Start(ctx context.Context) <-chan struct{} {
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.RunOnce(ctx); err != nil && ctx.Err() == nil {
					b.log.Warn("publish failed, will retry", zap.Error(err))
				}
			}
		}
	}()
	return done
}

// ------------------------------------------------
// PUBLISH LOGIC
// ------------------------------------------------

// errNotDue ends a scan at a FAILED entry still in backoff.
var errNotDue = errors.New("entry not due")

// RunOnce publishes one batch of due entries and returns how many were
// acknowledged. SENT entries are picked up again: they were left behind by
// a crash between publishing and acknowledging. The batch ends at the first
// entry still backing off, so nothing is published ahead of it.
func (b *Broadcaster) RunOnce(ctx context.Context) (int, error) {
	var batch []exitwal.Entry
	err := b.exitWAL.Scan(b.cfg.BatchSize, func(e exitwal.Entry) error {
		if !b.due(e) {
			return errNotDue
		}
		batch = append(batch, e)
		return nil
	}, exitwal.StateNew, exitwal.StateSent, exitwal.StateFailed)
	if err != nil && !errors.Is(err, errNotDue) {
		return 0, errors.Wrap(err, "scan outbox")
	}
	if len(batch) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, len(batch))
	for i, e := range batch {
		msg, err := message(e)
		if err != nil {
			return 0, errors.Wrapf(err, "outbox entry %d/%d", e.Seq, e.Index)
		}
		msgs[i] = msg
		if err := b.exitWAL.UpdateState(e.Seq, e.Index, exitwal.StateSent, e.Record.Retries); err != nil {
			return 0, err
		}
	}

	if perr := b.pub.Publish(ctx, msgs...); perr != nil {
		for _, e := range batch {
			if err := b.exitWAL.UpdateState(e.Seq, e.Index, exitwal.StateFailed, e.Record.Retries+1); err != nil {
				return 0, errors.CombineErrors(perr, err)
			}
		}
		return 0, perr
	}

	for _, e := range batch {
		if err := b.exitWAL.UpdateState(e.Seq, e.Index, exitwal.StateAcked, e.Record.Retries); err != nil {
			return 0, err
		}
	}
	b.log.Debug("published",
		zap.Int("events", len(batch)),
		zap.Uint64("last_seq", batch[len(batch)-1].Seq),
	)
	return len(batch), nil
}

// due reports whether a FAILED entry has waited out its backoff.
func (b *Broadcaster) due(e exitwal.Entry) bool {
	if e.Record.State != exitwal.StateFailed {
		return true
	}
	wait := b.cfg.MaxBackoff
	if e.Record.Retries < 16 {
		wait = min(b.cfg.Interval<<e.Record.Retries, b.cfg.MaxBackoff)
	}
	return !b.now().Before(time.Unix(0, e.Record.LastAttempt).Add(wait))
}

// message keys each event by its market so a market's events stay ordered
// within one partition.
func message(e exitwal.Entry) (kafka.Message, error) {
	rec, err := wire.ParseEventRecord(e.Payload)
	if err != nil {
		return kafka.Message{}, err
	}
	id := rec.Event.Market()
	return kafka.Message{Key: []byte(id.String()), Value: e.Payload}, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
