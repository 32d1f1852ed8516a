package message

import "rest-rpc/codec"

// Call is a decoded request as seen by the server's handler chain.
type Call struct {
	Endpoint string
	// Params is the encoded argument sequence with the tag already removed,
	// in the codec the request arrived with.
	Params []byte
	Codec  codec.Codec
	Tag    any
	Tagged bool
}

// Reply is what a server handler produces for a Call.
type Reply struct {
	Code   Code
	Result any
	Tag    any
	Tagged bool
}

// Failed builds a failure reply whose result is the error text.
func Failed(code Code, text string) *Reply {
	return &Reply{Code: code, Result: text}
}

// Envelope returns the document to encode on the wire. The tag field is only
// present for tagged calls; the result field is always present.
func (r *Reply) Envelope() any {
	if r.Tagged {
		return TaggedResponse[any, any]{Code: r.Code, Result: r.Result, Tag: r.Tag}
	}
	return Response[any]{Code: r.Code, Result: r.Result}
}
