// Package protocol declares RPC endpoints and marshals calls against them.
//
// A Definition binds an endpoint name to a signature: the argument tuple type
// In and the result type Out. It builds request wire text from an In value and
// turns response wire text into an Out, or into one of three errors:
//
//   - *ProtocolError: the response is not a usable document.
//   - *RemoteError: the response carries a result code other than OK.
//   - *CorrelationError: a tagged response echoes a tag that does not belong
//     to the request.
//
// Definitions are built once at startup and shared freely:
//
//	add := protocol.Define[protocol.Args2[int, int], int]("add")
//	req, err := add.MakeRequest(protocol.Arg2(2, 3)) // {"add":[2,3]}
//	sum, err := add.ParseResponse(resp)
//
// WithTag wraps a Definition for a single outstanding call so its response can
// be checked against the tag that went out with the request:
//
//	call := protocol.WithTag(add, 7)
//	req, err := call.MakeRequest(protocol.Arg2(2, 3)) // {"add":[7,2,3]}
//
// The Match functions bind server-side handlers to a Definition. The handler's
// parameter and result types are checked by the compiler against the
// signature, so a handler that cannot serve the endpoint never builds.
//
// Nothing in this package blocks or performs I/O.
package protocol
