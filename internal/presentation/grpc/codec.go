package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype the LoginRiskService messages travel
// under. Clients select it with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

// jsonCodec carries the hand-written message types until the generated
// protobuf types replace them. Health and reflection keep the proto codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
