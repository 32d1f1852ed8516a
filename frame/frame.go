// Package frame delimits wire text on a byte stream.
//
// Each frame is a fixed 14-byte header followed by the body. The receiver
// reads the header first to learn the body length, then reads exactly that
// many bytes.
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│   seq   │ bodyLen │    body ...    │
//	│ rrp  │01│  │  │ uint32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
//
// The sequence number correlates a response frame with the request frame on
// the same connection. It is independent of the correlation tag a tagged
// protocol carries inside the body.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"rest-rpc/codec"
)

const (
	Version    byte   = 0x01
	HeaderSize int    = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (type) + 4 (seq) + 4 (bodyLen)
	MaxBodyLen uint32 = 64 << 20
)

var magic = [3]byte{'r', 'r', 'p'}

var (
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrUnsupportedCodec   = errors.New("frame: unsupported codec type")
	ErrUnsupportedType    = errors.New("frame: unsupported message type")
	ErrBodyTooLarge       = errors.New("frame: body too large")
)

type MsgType byte

const (
	MsgTypeRequest   MsgType = 0
	MsgTypeResponse  MsgType = 1
	MsgTypeHeartbeat MsgType = 2 // keepalive probe, no body
)

func (t MsgType) valid() bool {
	return t <= MsgTypeHeartbeat
}

type Header struct {
	Codec   codec.CodecType
	Type    MsgType
	Seq     uint32
	BodyLen uint32
}

// Encode writes header and body to w. BodyLen is taken from body. Callers
// sharing w between goroutines must serialise calls, or frames interleave.
func Encode(w io.Writer, h *Header, body []byte) error {
	if len(body) > int(MaxBodyLen) {
		return ErrBodyTooLarge
	}
	buf := make([]byte, HeaderSize+len(body))
	copy(buf[0:3], magic[:])
	buf[3] = Version
	buf[4] = byte(h.Codec)
	buf[5] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))
	copy(buf[HeaderSize:], body)

	_, err := w.Write(buf)
	return err
}

// Decode reads one frame from r, validating every header field before the
// body is read.
func Decode(r io.Reader) (*Header, []byte, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, err
	}

	if head[0] != magic[0] || head[1] != magic[1] || head[2] != magic[2] {
		return nil, nil, fmt.Errorf("%w: %x", ErrInvalidMagic, head[0:3])
	}
	if head[3] != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, head[3])
	}
	ct := codec.CodecType(head[4])
	if !ct.Valid() {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedCodec, head[4])
	}
	mt := MsgType(head[5])
	if !mt.valid() {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedType, head[5])
	}

	h := &Header{
		Codec:   ct,
		Type:    mt,
		Seq:     binary.BigEndian.Uint32(head[6:10]),
		BodyLen: binary.BigEndian.Uint32(head[10:14]),
	}
	if h.BodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, h.BodyLen)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return h, body, nil
}
