package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Codec converts structured objects to and from the text stored in an
// object entry. Output must be valid UTF-8.
type Codec interface {
	// Name identifies the codec in stored entries. Objects written by one
	// codec are never decoded by another.
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Validator is implemented by codecs that cannot decode into an untyped
// value and so check raw input some other way.
type Validator interface {
	Validate(data []byte) error
}

func validateObject(c Codec, data []byte) error {
	if v, ok := c.(Validator); ok {
		return v.Validate(data)
	}
	var probe any
	return c.Unmarshal(data, &probe)
}

// JSON is the default codec. Decoding is strict: unknown fields and
// trailing data are rejected.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
