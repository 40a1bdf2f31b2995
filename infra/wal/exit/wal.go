package exit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
}

// Entry is one outbox event. Seq is the command that produced it, Index its
// position among that command's events.
type Entry struct {
	Seq     uint64
	Index   uint32
	Record  ExitRecord
	Payload []byte
}

const recordHeaderLen = 1 + 4 + 8

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord, payload []byte) []byte {
	buf := make([]byte, recordHeaderLen+len(payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeaderLen:], payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, []byte, error) {
	if len(b) < recordHeaderLen {
		return ExitRecord{}, nil, errors.New("invalid exit record length")
	}
	rec := ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
	}
	payload := make([]byte, len(b)-recordHeaderLen)
	copy(payload, b[recordHeaderLen:])
	return rec, payload, nil
}

// -------------------- WAL --------------------

// ExitWAL is the durable outbox between the engine and the broadcaster.
type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open exit wal")
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores the events of command seq as NEW in one synced batch.
// Entries that already exist keep their state, so re-running a command
// during replay does not publish its events twice.
func (w *ExitWAL) PutNew(seq uint64, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	b := w.db.NewBatch()
	defer b.Close()

	for i, p := range payloads {
		key := keyFor(seq, uint32(i))
		_, closer, err := w.db.Get(key)
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return err
		}
		if err := b.Set(key, encodeRecord(ExitRecord{State: StateNew}, p), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// UpdateState records a send attempt outcome.
func (w *ExitWAL) UpdateState(seq uint64, idx uint32, state ExitState, retries uint32) error {
	e, err := w.Get(seq, idx)
	if err != nil {
		return err
	}
	rec := ExitRecord{
		State:       state,
		Retries:     retries,
		LastAttempt: time.Now().UnixNano(),
	}
	return w.db.Set(keyFor(seq, idx), encodeRecord(rec, e.Payload), pebble.Sync)
}

// Delete removes one entry.
func (w *ExitWAL) Delete(seq uint64, idx uint32) error {
	return w.db.Delete(keyFor(seq, idx), pebble.Sync)
}

// Get returns one entry.
func (w *ExitWAL) Get(seq uint64, idx uint32) (Entry, error) {
	val, closer, err := w.db.Get(keyFor(seq, idx))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()

	rec, payload, err := decodeRecord(val)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Seq: seq, Index: idx, Record: rec, Payload: payload}, nil
}

// -------------------- Scan --------------------

var errStopScan = errors.New("stop scan")

// Scan visits entries in any of states in (seq, index) order, at most
// limit of them when limit > 0. Used by the broadcaster.
func (w *ExitWAL) Scan(limit int, fn func(Entry) error, states ...ExitState) error {
	want := func(s ExitState) bool {
		for _, st := range states {
			if st == s {
				return true
			}
		}
		return false
	}

	visited := 0
	err := w.each(func(e Entry) error {
		if !want(e.Record.State) {
			return nil
		}
		if err := fn(e); err != nil {
			return err
		}
		visited++
		if limit > 0 && visited >= limit {
			return errStopScan
		}
		return nil
	})
	if errors.Is(err, errStopScan) {
		return nil
	}
	return err
}

// TruncateAckedUpTo deletes ACKED entries produced by commands <= seq.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	err := w.each(func(e Entry) error {
		if e.Seq > seq {
			return errStopScan
		}
		if e.Record.State != StateAcked {
			return nil
		}
		n++
		return b.Delete(keyFor(e.Seq, e.Index), nil)
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, b.Commit(pebble.Sync)
}

// Counts returns the number of entries per state.
func (w *ExitWAL) Counts() (map[ExitState]int, error) {
	out := make(map[ExitState]int, 4)
	err := w.each(func(e Entry) error {
		out[e.Record.State]++
		return nil
	})
	return out, err
}

func (w *ExitWAL) each(fn func(Entry) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, idx, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, payload, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if err := fn(Entry{Seq: seq, Index: idx, Record: rec, Payload: payload}); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64, idx uint32) []byte {
	return []byte(fmt.Sprintf("%s%020d-%05d", keyPrefix, seq, idx))
}

func parseKey(b []byte) (seq uint64, idx uint32, err error) {
	_, err = fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%020d-%05d", &seq, &idx)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "exit wal key %q", b)
	}
	return seq, idx, nil
}
