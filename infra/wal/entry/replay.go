package entry

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var ErrCorrupt = errors.New("entry wal: corrupt record")

type ReplayHandler func(*Record) error

// Replay reads every segment of dir in order and calls fn for records with
// Seq > after. It returns the highest sequence found, applied or not.
//
// A torn record at the very end of the newest segment is the trace of a
// crash during Append and ends the log; anywhere else it is corruption.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range files {
		last := i == len(files)-1
		lastSeq, err = replaySegment(path, last, lastSeq, after, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, newest bool, lastSeq, after uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			return lastSeq, nil
		}
		if err == io.ErrUnexpectedEOF && newest {
			return lastSeq, nil
		}
		if err != nil {
			return lastSeq, errors.Wrapf(err, "entry wal: %s after seq %d", path, lastSeq)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrCorrupt, "non-monotonic seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if rec.Seq <= after {
			continue
		}
		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	t := RecordType(header[0])
	seq := binary.BigEndian.Uint64(header[1:9])
	ts := binary.BigEndian.Uint64(header[9:17])
	l := binary.BigEndian.Uint32(header[17:21])
	if l > maxPayload {
		return nil, errors.Wrapf(ErrCorrupt, "payload of %d bytes at seq %d", l, seq)
	}

	data := make([]byte, int(l)+crcLen)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := data[:l]
	crc := binary.BigEndian.Uint32(data[l:])

	if !CRC32Valid(append(header, payload...), crc) {
		return nil, errors.Wrapf(ErrCorrupt, "crc mismatch at seq %d", seq)
	}

	return &Record{
		Type: t,
		Seq:  seq,
		Time: int64(ts),
		Data: payload,
	}, nil
}
