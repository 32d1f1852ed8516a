// Package message defines the shapes exchanged between client and server.
//
// A request is a document keyed by the endpoint name whose value is the
// ordered argument sequence (the correlation tag first, for tagged calls):
//
//	{"add": [2, 3]}        {"ping": [7]}
//
// A response always carries the result code, inspected before anything else,
// followed by the payload and, for tagged calls, the echoed tag:
//
//	{"code": 0, "result": 5}        {"code": 0, "result": true, "tag": 7}
package message

import "fmt"

// Field names of the response envelope.
const (
	FieldCode   = "code"
	FieldResult = "result"
	FieldTag    = "tag"
)

// Code is the result status present in every response. Values other than the
// ones declared here are application-defined failures and pass through as is.
type Code int

const (
	CodeOK        Code = 0
	CodeFail      Code = 1
	CodeException Code = 2
	CodeArgsError Code = 3
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeFail:
		return "FAIL"
	case CodeException:
		return "EXCEPTION"
	case CodeArgsError:
		return "ARGS_ERROR"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Response is the decoded envelope of an untagged call.
type Response[R any] struct {
	Code   Code `json:"code" msgpack:"code"`
	Result R    `json:"result" msgpack:"result"`
}

// TaggedResponse is the decoded envelope of a tagged call.
type TaggedResponse[R, T any] struct {
	Code   Code `json:"code" msgpack:"code"`
	Result R    `json:"result" msgpack:"result"`
	Tag    T    `json:"tag" msgpack:"tag"`
}

// NewRequest builds the outbound request document for endpoint name.
// A nil sequence is sent as an empty one.
func NewRequest(name string, values []any) map[string][]any {
	if values == nil {
		values = []any{}
	}
	return map[string][]any{name: values}
}
