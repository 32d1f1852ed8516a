package protocol

import (
	"errors"
	"fmt"

	"rest-rpc/message"
)

var (
	ErrMissingCode   = errors.New("protocol: response has no result code")
	ErrMissingResult = errors.New("protocol: response has no result")
	ErrMissingTag    = errors.New("protocol: tagged response has no tag")
	ErrBadArguments  = errors.New("protocol: arguments do not match signature")
)

// ProtocolError reports wire text that could not be used as a response: it is
// not a parseable document, or a required field is missing or mistyped.
type ProtocolError struct {
	Endpoint string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: malformed response: %v", e.Endpoint, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RemoteError reports a well-formed response whose result code is not OK.
// Message holds the error text the remote side put in the result field, if any.
type RemoteError struct {
	Endpoint string
	Code     message.Code
	Message  string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("protocol: %s: remote failure %s: %s", e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("protocol: %s: remote failure %s", e.Endpoint, e.Code)
}

// CorrelationError reports a successful response that belongs to another
// request: the echoed tag failed the tag policy. The payload it carried is
// never returned.
type CorrelationError struct {
	Endpoint string
	Stored   any
	Echoed   any
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("protocol: %s: response tag %v does not match request tag %v", e.Endpoint, e.Echoed, e.Stored)
}
