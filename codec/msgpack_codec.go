package codec

import (
	"bytes"
	"fmt"

	"github.com/Jeffail/gabs"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec serializes with MessagePack. It produces the same document
// shapes as JSONCodec in a denser binary form.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgpackCodec) Decode(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

func (c *MsgpackCodec) Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrNotDocument)
	}
	r := bytes.NewReader(data)
	var v any
	if err := msgpack.NewDecoder(r).Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocument, err)
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("%w: trailing data after document", ErrNotDocument)
	}
	root, err := gabs.Consume(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocument, err)
	}
	return newDocument(c, data, root)
}

func (c *MsgpackCodec) Type() CodecType {
	return CodecTypeMsgpack
}
