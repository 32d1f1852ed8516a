package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"rest-rpc/codec"
	"rest-rpc/message"
	"rest-rpc/protocol"
)

var ErrDuplicateEndpoint = errors.New("server: endpoint already registered")

// service is the endpoint table of one named service.
type service struct {
	name string

	mu        sync.RWMutex
	endpoints map[string]protocol.Invoker
}

func newService(name string) *service {
	return &service{
		name:      name,
		endpoints: make(map[string]protocol.Invoker),
	}
}

func (s *service) register(inv protocol.Invoker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[inv.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, inv.Name())
	}
	s.endpoints[inv.Name()] = inv
	return nil
}

func (s *service) lookup(name string) protocol.Invoker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints[name]
}

func (s *service) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// decodeCall turns a request body into a Call. A request names exactly one
// endpoint; its element count tells a tagged request (arity+1, tag first)
// from an untagged one (arity). When the body cannot be used, the reply to
// send instead is returned.
func (s *service) decodeCall(c codec.Codec, body []byte) (*message.Call, *message.Reply) {
	doc, err := c.Parse(body)
	if err != nil {
		return nil, message.Failed(message.CodeArgsError, fmt.Sprintf("malformed request: %v", err))
	}
	keys := doc.Keys()
	if len(keys) != 1 {
		return nil, message.Failed(message.CodeArgsError, fmt.Sprintf("request must name one endpoint, got %d", len(keys)))
	}
	name := keys[0]

	items, err := doc.Elements(name)
	if err != nil {
		return nil, message.Failed(message.CodeArgsError, fmt.Sprintf("%s: malformed arguments: %v", name, err))
	}

	inv := s.lookup(name)
	if inv == nil {
		return nil, message.Failed(message.CodeFail, fmt.Sprintf("unknown endpoint %q", name))
	}

	call := &message.Call{Endpoint: name, Codec: c}
	switch len(items) {
	case inv.Arity():
	case inv.Arity() + 1:
		call.Tag, call.Tagged = items[0], true
		items = items[1:]
	default:
		return nil, message.Failed(message.CodeArgsError,
			fmt.Sprintf("%s: want %d arguments, got %d", name, inv.Arity(), len(items)))
	}

	if items == nil {
		items = []any{}
	}
	params, err := c.Encode(items)
	if err != nil {
		return call, message.Failed(message.CodeArgsError, fmt.Sprintf("%s: %v", name, err))
	}
	call.Params = params
	return call, nil
}

// dispatch is the innermost handler of the chain. Handler errors become
// result codes: a *protocol.RemoteError keeps its own code, argument decoding
// failures are ARGS_ERROR and anything else is FAIL.
func (s *service) dispatch(ctx context.Context, call *message.Call) *message.Reply {
	inv := s.lookup(call.Endpoint)
	if inv == nil {
		return message.Failed(message.CodeFail, fmt.Sprintf("unknown endpoint %q", call.Endpoint))
	}

	out, err := inv.Invoke(ctx, call.Codec, call.Params)
	var remote *protocol.RemoteError
	switch {
	case err == nil:
		return &message.Reply{Code: message.CodeOK, Result: out}
	case errors.As(err, &remote):
		return message.Failed(remote.Code, remote.Message)
	case errors.Is(err, protocol.ErrBadArguments):
		return message.Failed(message.CodeArgsError, err.Error())
	default:
		return message.Failed(message.CodeFail, err.Error())
	}
}
