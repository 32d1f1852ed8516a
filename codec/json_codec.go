package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Jeffail/gabs"
)

// JSONCodec uses encoding/json for serialization. Parsed documents keep
// numbers as json.Number so integer fields survive without float rounding.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocument, err)
	}
	// A document is exactly one value; anything after it means the text was
	// cut or concatenated.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrNotDocument)
	}
	return newDocument(c, data, root)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
