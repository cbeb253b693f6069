package api

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Ensure Codec implements connect.Codec
var _ connect.Codec = Codec{}

// Codec marshals plain Go messages as JSON. It registers under the name
// "json", replacing connect's protobuf-only JSON codec.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
