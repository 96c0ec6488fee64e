package types

import (
	"encoding/json"

	collcodec "cosmossdk.io/collections/codec"
)

// JSONValue is a collections value codec for plain Go state types.
func JSONValue[T any](name string) collcodec.ValueCodec[T] {
	return jsonValue[T]{name: name}
}

type jsonValue[T any] struct {
	name string
}

func (c jsonValue[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (c jsonValue[T]) Decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, err
	}
	return v, nil
}

func (c jsonValue[T]) EncodeJSON(value T) ([]byte, error) {
	return c.Encode(value)
}

func (c jsonValue[T]) DecodeJSON(b []byte) (T, error) {
	return c.Decode(b)
}

func (c jsonValue[T]) Stringify(value T) string {
	b, err := json.Marshal(value)
	if err != nil {
		return "<invalid " + c.name + ">"
	}
	return string(b)
}

func (c jsonValue[T]) ValueType() string {
	return "json/" + c.name
}
