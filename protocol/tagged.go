package protocol

import (
	"rest-rpc/codec"
	"rest-rpc/message"
)

// Tagged is a Definition paired with the correlation tag of one outstanding
// call. The tag goes out as the first request element and the response must
// echo a tag the policy accepts.
//
// A Tagged borrows its base Definition, which must outlive it. It is meant for
// a single owner and a single request, and does no locking.
type Tagged[In Arguments, Out, T any] struct {
	base   *Definition[In, Out]
	tag    T
	policy TagPolicy[T]
}

// WithTag wraps base with tag, compared by equality.
func WithTag[In Arguments, Out any, T comparable](base *Definition[In, Out], tag T) *Tagged[In, Out, T] {
	return WithTagPolicy(base, tag, Equal[T]())
}

// WithTagPolicy wraps base with tag, compared by policy. A nil policy compares
// with DeepEqual. It panics if base is nil.
func WithTagPolicy[In Arguments, Out, T any](base *Definition[In, Out], tag T, policy TagPolicy[T]) *Tagged[In, Out, T] {
	if base == nil {
		panic("protocol: tagged protocol needs a base definition")
	}
	if policy == nil {
		policy = DeepEqual[T]()
	}
	return &Tagged[In, Out, T]{base: base, tag: tag, policy: policy}
}

func (t *Tagged[In, Out, T]) Name() string {
	return t.base.name
}

// Kind is KindRoundtrip: requests carry a tag the response must echo.
func (t *Tagged[In, Out, T]) Kind() Kind {
	return KindRoundtrip
}

func (t *Tagged[In, Out, T]) Codec() codec.Codec {
	return t.base.codec
}

func (t *Tagged[In, Out, T]) Tag() T {
	return t.tag
}

func (t *Tagged[In, Out, T]) Base() *Definition[In, Out] {
	return t.base
}

// MakeRequest serializes {name: [tag, args...]}.
func (t *Tagged[In, Out, T]) MakeRequest(args In) ([]byte, error) {
	values := append([]any{t.tag}, args.Values()...)
	return t.base.encodeRequest(values)
}

// ParseResponse returns the payload of an OK response whose echoed tag
// satisfies the policy. The policy is consulted at most once, and only for OK
// responses.
func (t *Tagged[In, Out, T]) ParseResponse(wire []byte) (Out, error) {
	var zero Out
	doc, err := t.base.inspect(wire)
	if err != nil {
		return zero, err
	}
	if !doc.Has(message.FieldTag) {
		return zero, t.base.malformed(ErrMissingTag)
	}

	var echoed T
	if err := doc.DecodeField(message.FieldTag, &echoed); err != nil {
		return zero, t.base.malformed(err)
	}
	if !t.policy(t.tag, echoed) {
		return zero, &CorrelationError{Endpoint: t.base.name, Stored: t.tag, Echoed: echoed}
	}
	var out Out
	if err := doc.DecodeField(message.FieldResult, &out); err != nil {
		return zero, t.base.malformed(err)
	}
	return out, nil
}
