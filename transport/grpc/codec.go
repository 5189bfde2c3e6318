package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype under which the JSON codec is registered.
// Both ends of the channel negotiate it via the grpc-encoding content type, so
// client and server need no generated message types to interoperate.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: failed to unmarshal message: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return CodecName }
