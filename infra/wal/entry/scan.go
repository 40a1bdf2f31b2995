package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
)

// maxSeqInSegment returns the largest sequence in a segment, skipping
// payloads. It is used only to decide truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerLen)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}

		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+crcLen, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}

// validPrefix returns the length of the leading run of intact records.
func validPrefix(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var n int64
	for {
		rec, err := readRecord(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return n, nil
			}
			return n, err
		}
		n += int64(headerLen + len(rec.Data) + crcLen)
	}
}
