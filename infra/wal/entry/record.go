package entry

import "time"

// RecordType is chosen by the writer; the log never interprets it.
type RecordType uint8

// Record is one framed WAL entry.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Frame:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerLen = 1 + 8 + 8 + 4
	crcLen    = 4

	maxPayload = 16 << 20
)
