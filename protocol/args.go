package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Arguments is a fixed-arity argument tuple. The tuple type is a type
// parameter of a Definition, so the compiler checks the arity and element
// types at every call site.
//
// Tuples encode as arrays in both JSON and MessagePack, and decoding checks
// the element count, so a server can decode a request straight into the
// tuple its handler was bound with.
type Arguments interface {
	// Values returns the elements in declared order.
	Values() []any
	Arity() int
}

type Args0 struct{}

type Args1[T1 any] struct {
	V1 T1
}

type Args2[T1, T2 any] struct {
	V1 T1
	V2 T2
}

type Args3[T1, T2, T3 any] struct {
	V1 T1
	V2 T2
	V3 T3
}

type Args4[T1, T2, T3, T4 any] struct {
	V1 T1
	V2 T2
	V3 T3
	V4 T4
}

func Arg1[T1 any](v1 T1) Args1[T1] {
	return Args1[T1]{V1: v1}
}

func Arg2[T1, T2 any](v1 T1, v2 T2) Args2[T1, T2] {
	return Args2[T1, T2]{V1: v1, V2: v2}
}

func Arg3[T1, T2, T3 any](v1 T1, v2 T2, v3 T3) Args3[T1, T2, T3] {
	return Args3[T1, T2, T3]{V1: v1, V2: v2, V3: v3}
}

func Arg4[T1, T2, T3, T4 any](v1 T1, v2 T2, v3 T3, v4 T4) Args4[T1, T2, T3, T4] {
	return Args4[T1, T2, T3, T4]{V1: v1, V2: v2, V3: v3, V4: v4}
}

func (Args0) Values() []any { return []any{} }
func (Args0) Arity() int { return 0 }

func (a Args1[T1]) Values() []any { return []any{a.V1} }
func (Args1[T1]) Arity() int { return 1 }

func (a Args2[T1, T2]) Values() []any { return []any{a.V1, a.V2} }
func (Args2[T1, T2]) Arity() int { return 2 }

func (a Args3[T1, T2, T3]) Values() []any { return []any{a.V1, a.V2, a.V3} }
func (Args3[T1, T2, T3]) Arity() int { return 3 }

func (a Args4[T1, T2, T3, T4]) Values() []any { return []any{a.V1, a.V2, a.V3, a.V4} }
func (Args4[T1, T2, T3, T4]) Arity() int { return 4 }

func (a Args0) MarshalJSON() ([]byte, error) { return json.Marshal(a.Values()) }
func (a Args1[T1]) MarshalJSON() ([]byte, error) { return json.Marshal(a.Values()) }
func (a Args2[T1, T2]) MarshalJSON() ([]byte, error) { return json.Marshal(a.Values()) }
func (a Args3[T1, T2, T3]) MarshalJSON() ([]byte, error) { return json.Marshal(a.Values()) }
func (a Args4[T1, T2, T3, T4]) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Values())
}

func (a *Args0) UnmarshalJSON(data []byte) error {
	return unmarshalJSONTuple(data)
}

func (a *Args1[T1]) UnmarshalJSON(data []byte) error {
	return unmarshalJSONTuple(data, &a.V1)
}

func (a *Args2[T1, T2]) UnmarshalJSON(data []byte) error {
	return unmarshalJSONTuple(data, &a.V1, &a.V2)
}

func (a *Args3[T1, T2, T3]) UnmarshalJSON(data []byte) error {
	return unmarshalJSONTuple(data, &a.V1, &a.V2, &a.V3)
}

func (a *Args4[T1, T2, T3, T4]) UnmarshalJSON(data []byte) error {
	return unmarshalJSONTuple(data, &a.V1, &a.V2, &a.V3, &a.V4)
}

func (a Args0) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeMsgpackTuple(enc, a.Values())
}

func (a Args1[T1]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeMsgpackTuple(enc, a.Values())
}

func (a Args2[T1, T2]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeMsgpackTuple(enc, a.Values())
}

func (a Args3[T1, T2, T3]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeMsgpackTuple(enc, a.Values())
}

func (a Args4[T1, T2, T3, T4]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeMsgpackTuple(enc, a.Values())
}

func (a *Args0) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeMsgpackTuple(dec)
}

func (a *Args1[T1]) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeMsgpackTuple(dec, &a.V1)
}

func (a *Args2[T1, T2]) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeMsgpackTuple(dec, &a.V1, &a.V2)
}

func (a *Args3[T1, T2, T3]) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeMsgpackTuple(dec, &a.V1, &a.V2, &a.V3)
}

func (a *Args4[T1, T2, T3, T4]) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeMsgpackTuple(dec, &a.V1, &a.V2, &a.V3, &a.V4)
}

func unmarshalJSONTuple(data []byte, targets ...any) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if len(elems) != len(targets) {
		return fmt.Errorf("%w: want %d arguments, got %d", ErrBadArguments, len(targets), len(elems))
	}
	for i, elem := range elems {
		if err := json.Unmarshal(elem, targets[i]); err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i+1, err)
		}
	}
	return nil
}

func encodeMsgpackTuple(enc *msgpack.Encoder, values []any) error {
	if err := enc.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func decodeMsgpackTuple(dec *msgpack.Decoder, targets ...any) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if n < 0 { // nil array
		n = 0
	}
	if n != len(targets) {
		return fmt.Errorf("%w: want %d arguments, got %d", ErrBadArguments, len(targets), n)
	}
	for i, target := range targets {
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i+1, err)
		}
	}
	return nil
}
