package platform

import "encoding/json"

// MessageCodec translates channel payloads between Go values and the byte
// slices that cross the native bridge.
type MessageCodec interface {
	// Encode renders a Go value into bytes for the native side.
	Encode(value any) ([]byte, error)

	// Decode turns bytes from the native side back into a Go value.
	Decode(data []byte) (any, error)
}

// JSONCodec is the codec every geolocator channel speaks. Both native halves
// of the plugin serialize positions, status values, and error envelopes as
// JSON objects.
type JSONCodec struct{}

// Encode marshals value as JSON.
func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode unmarshals data into an untyped value. Empty input decodes to nil,
// matching method calls that carry no payload.
func (JSONCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto unmarshals data into dst for call sites that want a typed
// struct instead of the generic map form.
func (JSONCodec) DecodeInto(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

// DefaultCodec is used by all channels in this package.
var DefaultCodec MessageCodec = JSONCodec{}
