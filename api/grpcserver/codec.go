package grpcserver

import (
	"github.com/sugawarayuuta/sonnet"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype clients select with
// grpc.CallContentSubtype.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec carries the Exchange messages as JSON.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return sonnet.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return sonnet.Unmarshal(data, v) }
func (codec) Name() string                       { return CodecName }
