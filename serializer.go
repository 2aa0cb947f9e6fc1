package dialogue

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// SerializerKind names a record encoding for persistent backends.
type SerializerKind string

const (
	SerializerJSON SerializerKind = "json"
	SerializerCBOR SerializerKind = "cbor"
)

// Serializer converts dialogue records to and from the bytes a medium stores.
type Serializer[D any] interface {
	Serialize(d D) ([]byte, error)
	Deserialize(data []byte) (D, error)
}

// JSON encodes records as JSON.
type JSON[D any] struct{}

func (JSON[D]) Serialize(d D) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrSerialization, err)
	}
	return b, nil
}

func (JSON[D]) Deserialize(data []byte) (D, error) {
	var d D
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: json: %v", ErrSerialization, err)
	}
	return d, nil
}

// CBOR encodes records as CBOR (RFC 8949).
type CBOR[D any] struct{}

func (CBOR[D]) Serialize(d D) ([]byte, error) {
	b, err := cbor.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: cbor: %v", ErrSerialization, err)
	}
	return b, nil
}

func (CBOR[D]) Deserialize(data []byte) (D, error) {
	var d D
	if err := cbor.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: cbor: %v", ErrSerialization, err)
	}
	return d, nil
}

// SerializerFor returns the serializer registered under kind.
// An empty kind selects JSON.
func SerializerFor[D any](kind SerializerKind) (Serializer[D], error) {
	switch kind {
	case "", SerializerJSON:
		return JSON[D]{}, nil
	case SerializerCBOR:
		return CBOR[D]{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown serializer %q", ErrInvalidConfig, kind)
	}
}

// Extension returns the file extension used for records of this kind.
func (k SerializerKind) Extension() string {
	if k == SerializerCBOR {
		return ".cbor"
	}
	return ".json"
}
