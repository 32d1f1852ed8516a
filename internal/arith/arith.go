// Package arith is the demo service served and called by the restrpc
// command: integer addition, a liveness ping and a greeting.
package arith

import (
	"context"
	"fmt"
	"strings"

	"rest-rpc/protocol"
	"rest-rpc/server"
)

const Service = "arith"

// Protocol holds the service's endpoint definitions. Build it once and share
// it between call sites.
type Protocol struct {
	Add   *protocol.Definition[protocol.Args2[int, int], int]
	Ping  *protocol.Definition[protocol.Args0, bool]
	Greet *protocol.Definition[protocol.Args1[string], string]
}

func New(opts ...protocol.Option) *Protocol {
	return &Protocol{
		Add:   protocol.Define[protocol.Args2[int, int], int]("add", opts...),
		Ping:  protocol.Define[protocol.Args0, bool]("ping", opts...),
		Greet: protocol.Define[protocol.Args1[string], string]("greet", opts...),
	}
}

// Register binds the handlers to s.
func (p *Protocol) Register(s *server.Server) error {
	for _, inv := range []protocol.Invoker{
		protocol.Match2(p.Add, Add),
		protocol.Match0(p.Ping, Ping),
		protocol.Match1(p.Greet, Greet),
	} {
		if err := s.Register(inv); err != nil {
			return err
		}
	}
	return nil
}

func Add(_ context.Context, a, b int) (int, error) {
	return a + b, nil
}

func Ping(context.Context) (bool, error) {
	return true, nil
}

func Greet(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", protocol.ErrBadArguments)
	}
	return "hello, " + name, nil
}
