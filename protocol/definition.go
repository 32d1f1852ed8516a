package protocol

import (
	"errors"
	"fmt"

	"rest-rpc/codec"
	"rest-rpc/message"
)

// Endpoint is what a caller needs to perform one call: build the request and
// interpret its response. Definition and Tagged both implement it.
type Endpoint[In Arguments, Out any] interface {
	Name() string
	Kind() Kind
	Codec() codec.Codec
	MakeRequest(args In) ([]byte, error)
	ParseResponse(wire []byte) (Out, error)
}

type Option func(*options)

type options struct {
	codec codec.Codec
}

// WithCodec selects the serializer a Definition builds and parses wire text
// with. The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// Definition binds an endpoint name to the signature Out(In). It is immutable
// once built and safe for concurrent use without locking.
type Definition[In Arguments, Out any] struct {
	name  string
	codec codec.Codec
}

// Define builds a Definition. It panics if name is empty.
func Define[In Arguments, Out any](name string, opts ...Option) *Definition[In, Out] {
	if name == "" {
		panic("protocol: endpoint name is required")
	}
	o := options{codec: &codec.JSONCodec{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Definition[In, Out]{name: name, codec: o.codec}
}

func (d *Definition[In, Out]) Name() string {
	return d.name
}

// Kind is KindDefault: requests built from a bare Definition carry no tag.
func (d *Definition[In, Out]) Kind() Kind {
	return KindDefault
}

func (d *Definition[In, Out]) Codec() codec.Codec {
	return d.codec
}

// Arity is the number of arguments the signature declares.
func (d *Definition[In, Out]) Arity() int {
	var in In
	return in.Arity()
}

// MakeRequest serializes {name: [args...]}.
func (d *Definition[In, Out]) MakeRequest(args In) ([]byte, error) {
	return d.encodeRequest(args.Values())
}

// ParseResponse returns the payload of an OK response.
func (d *Definition[In, Out]) ParseResponse(wire []byte) (Out, error) {
	var zero Out
	doc, err := d.inspect(wire)
	if err != nil {
		return zero, err
	}
	var out Out
	if err := doc.DecodeField(message.FieldResult, &out); err != nil {
		return zero, d.malformed(err)
	}
	return out, nil
}

func (d *Definition[In, Out]) encodeRequest(values []any) ([]byte, error) {
	data, err := d.codec.Encode(message.NewRequest(d.name, values))
	if err != nil {
		return nil, fmt.Errorf("protocol: %s: encode request: %w", d.name, err)
	}
	return data, nil
}

// inspect parses wire and gates on the result code. A document is returned
// only for an OK response that carries a result; the payload itself is left
// undecoded.
func (d *Definition[In, Out]) inspect(wire []byte) (*codec.Document, error) {
	doc, err := d.codec.Parse(wire)
	if err != nil {
		return nil, d.malformed(err)
	}

	code, err := doc.Int(message.FieldCode)
	if errors.Is(err, codec.ErrFieldMissing) {
		return nil, d.malformed(ErrMissingCode)
	}
	if err != nil {
		return nil, d.malformed(err)
	}
	if message.Code(code) != message.CodeOK {
		text, _ := doc.String(message.FieldResult)
		return nil, &RemoteError{Endpoint: d.name, Code: message.Code(code), Message: text}
	}

	if !doc.Has(message.FieldResult) {
		return nil, d.malformed(ErrMissingResult)
	}
	return doc, nil
}

func (d *Definition[In, Out]) malformed(err error) error {
	return &ProtocolError{Endpoint: d.name, Err: err}
}
