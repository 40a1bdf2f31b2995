package entry

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrClosed = errors.New("entry wal: closed")

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// Sync fsyncs every append before it returns.
	Sync bool
}

// WAL is the append-only command log. Records are written before the
// command they describe is executed.
type WAL struct {
	mu sync.Mutex

	dir        string
	segSize    int64
	segDur     time.Duration
	sync       bool
	current    *segment
	segIndex   int
	lastRotate time.Time
}

// Open appends to the newest segment in cfg.Dir, creating the first one if
// the directory is empty.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		return nil, errors.New("entry wal: segment size must be positive")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(files) > 0 {
		if index, err = segmentIndex(files[len(files)-1]); err != nil {
			return nil, errors.Wrapf(err, "entry wal: segment name %s", files[len(files)-1])
		}
	}

	// Drop a torn tail left by a crash so new records follow intact ones.
	if len(files) > 0 {
		keep, err := validPrefix(files[len(files)-1])
		if err != nil {
			return nil, err
		}
		if err := os.Truncate(files[len(files)-1], keep); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		sync:       cfg.Sync,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
	}, nil
}

func encodeRecord(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerLen+int(payloadLen)+crcLen)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerLen:], r.Data)

	crc := CRC32(buf[:headerLen+payloadLen])
	binary.BigEndian.PutUint32(buf[headerLen+payloadLen:], crc)
	return buf
}

func (w *WAL) Append(r *Record) error {
	buf := encodeRecord(r)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return ErrClosed
	}

	if err := w.current.append(buf); err != nil {
		return errors.Wrapf(err, "entry wal: append seq %d", r.Seq)
	}
	if w.sync {
		if err := w.current.sync(); err != nil {
			return errors.Wrapf(err, "entry wal: sync seq %d", r.Seq)
		}
	}

	if w.current.offset >= w.segSize ||
		(w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur) {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		w.current = nil
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

// TruncateBefore removes closed segments whose records are all at or below
// seq. The segment being written is kept.
func (w *WAL) TruncateBefore(seq uint64) (removed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := segments(w.dir)
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		if w.current != nil && path == w.current.path {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := errors.CombineErrors(w.current.sync(), w.current.close())
	w.current = nil
	return err
}
