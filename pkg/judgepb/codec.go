package judgepb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with google.golang.org/grpc/encoding and
// selected via grpc.CallContentSubtype/grpc.ForceServerCodec, standing
// in for protobuf's "proto" codec since no .proto compiler produced a
// protobuf Marshaler for these message types.
const codecName = "judgepb-json"

// jsonCodec implements encoding.Codec by delegating to encoding/json.
// It is registered once via init so both judgeserver and any client of
// it share the same wire format without either side needing to
// remember to configure it.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("judgepb: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("judgepb: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
