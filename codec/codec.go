// Package codec provides the serializers the framework sends wire text with.
//
// A Codec turns values into wire text and back, and parses wire text into a
// navigable Document so a reader can inspect single fields (the result code of
// a response, the endpoint key of a request) before decoding the whole message.
package codec

import (
	"errors"
	"fmt"
)

type CodecType byte

const (
	CodecTypeJSON    CodecType = 0
	CodecTypeMsgpack CodecType = 1
)

var (
	ErrUnknownCodec = errors.New("codec: unknown codec type")
	ErrNotDocument  = errors.New("codec: wire text is not a document")
)

// Codec is the serialization subsystem used by protocol definitions, the
// client and the server. Implementations are stateless and safe for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	// Parse turns wire text into a Document. It fails with ErrNotDocument when
	// the text is not a single object, before any field is looked at.
	Parse(data []byte) (*Document, error)
	Type() CodecType // 0=JSON, 1=Msgpack
}

func (t CodecType) Valid() bool {
	return t == CodecTypeJSON || t == CodecTypeMsgpack
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// ParseType maps a configuration name ("json", "msgpack") to its CodecType.
func ParseType(name string) (CodecType, error) {
	switch name {
	case "", "json":
		return CodecTypeJSON, nil
	case "msgpack":
		return CodecTypeMsgpack, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func GetCodec(codecType CodecType) (Codec, error) {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}, nil
	case CodecTypeMsgpack:
		return &MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, byte(codecType))
	}
}
