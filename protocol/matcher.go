package protocol

import (
	"context"
	"errors"
	"fmt"

	"rest-rpc/codec"
)

// Invoker is a handler bound to an endpoint, the only form a server accepts.
// Values are produced by the Match functions.
type Invoker interface {
	Name() string
	Arity() int
	// Invoke decodes params, the encoded argument sequence without any tag,
	// and runs the handler. Decoding failures wrap ErrBadArguments.
	Invoke(ctx context.Context, c codec.Codec, params []byte) (any, error)
}

// Bound is a handler whose signature has been checked against a Definition.
type Bound[In Arguments, Out any] struct {
	def *Definition[In, Out]
	fn  func(context.Context, In) (Out, error)
}

// Match binds fn to def. fn must accept exactly the definition's argument
// tuple and return its result type, or the call does not compile.
func Match[In Arguments, Out any](def *Definition[In, Out], fn func(context.Context, In) (Out, error)) *Bound[In, Out] {
	if def == nil || fn == nil {
		panic("protocol: Match needs a definition and a handler")
	}
	return &Bound[In, Out]{def: def, fn: fn}
}

func Match0[R any](def *Definition[Args0, R], fn func(context.Context) (R, error)) *Bound[Args0, R] {
	if fn == nil {
		panic("protocol: Match needs a handler")
	}
	return Match(def, func(ctx context.Context, _ Args0) (R, error) {
		return fn(ctx)
	})
}

func Match1[A, R any](def *Definition[Args1[A], R], fn func(context.Context, A) (R, error)) *Bound[Args1[A], R] {
	if fn == nil {
		panic("protocol: Match needs a handler")
	}
	return Match(def, func(ctx context.Context, in Args1[A]) (R, error) {
		return fn(ctx, in.V1)
	})
}

func Match2[A, B, R any](def *Definition[Args2[A, B], R], fn func(context.Context, A, B) (R, error)) *Bound[Args2[A, B], R] {
	if fn == nil {
		panic("protocol: Match needs a handler")
	}
	return Match(def, func(ctx context.Context, in Args2[A, B]) (R, error) {
		return fn(ctx, in.V1, in.V2)
	})
}

func Match3[A, B, C, R any](def *Definition[Args3[A, B, C], R], fn func(context.Context, A, B, C) (R, error)) *Bound[Args3[A, B, C], R] {
	if fn == nil {
		panic("protocol: Match needs a handler")
	}
	return Match(def, func(ctx context.Context, in Args3[A, B, C]) (R, error) {
		return fn(ctx, in.V1, in.V2, in.V3)
	})
}

func Match4[A, B, C, D, R any](def *Definition[Args4[A, B, C, D], R], fn func(context.Context, A, B, C, D) (R, error)) *Bound[Args4[A, B, C, D], R] {
	if fn == nil {
		panic("protocol: Match needs a handler")
	}
	return Match(def, func(ctx context.Context, in Args4[A, B, C, D]) (R, error) {
		return fn(ctx, in.V1, in.V2, in.V3, in.V4)
	})
}

func (b *Bound[In, Out]) Name() string {
	return b.def.name
}

func (b *Bound[In, Out]) Arity() int {
	return b.def.Arity()
}

func (b *Bound[In, Out]) Definition() *Definition[In, Out] {
	return b.def
}

func (b *Bound[In, Out]) Invoke(ctx context.Context, c codec.Codec, params []byte) (any, error) {
	var in In
	if err := c.Decode(params, &in); err != nil {
		if errors.Is(err, ErrBadArguments) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	out, err := b.fn(ctx, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}
