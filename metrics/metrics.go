// Package metrics holds the prometheus collectors for calls made by the
// client and requests served by the server.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rest-rpc/message"
	"rest-rpc/protocol"
)

const (
	namespace = "restrpc"

	LabelEndpoint = "endpoint"
	LabelKind     = "kind"
	LabelOutcome  = "outcome"
	LabelCode     = "code"
)

// Outcome labels.
const (
	OutcomeOK          = "ok"
	OutcomeProtocol    = "protocol"
	OutcomeRemote      = "remote"
	OutcomeCorrelation = "correlation"
	OutcomeCanceled    = "canceled"
	OutcomeTransport   = "transport"
)

// Outcome classifies the error of a finished call.
func Outcome(err error) string {
	var (
		perr *protocol.ProtocolError
		rerr *protocol.RemoteError
		cerr *protocol.CorrelationError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &cerr):
		return OutcomeCorrelation
	case errors.As(err, &rerr):
		return OutcomeRemote
	case errors.As(err, &perr):
		return OutcomeProtocol
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeTransport
	}
}

type Client struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewClient creates the client collectors and registers them with reg, if
// reg is not nil.
func NewClient(reg prometheus.Registerer) *Client {
	c := &Client{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Calls made, by endpoint, protocol kind and outcome.",
		}, []string{LabelEndpoint, LabelKind, LabelOutcome}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Call duration in seconds, from request encoding to response parsing.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelEndpoint, LabelKind, LabelOutcome}),
	}
	if reg != nil {
		reg.MustRegister(c.Requests, c.Duration)
	}
	return c
}

func (c *Client) Observe(endpoint string, kind protocol.Kind, err error, took time.Duration) {
	outcome := Outcome(err)
	c.Requests.WithLabelValues(endpoint, kind.String(), outcome).Inc()
	c.Duration.WithLabelValues(endpoint, kind.String(), outcome).Observe(took.Seconds())
}

type Server struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewServer creates the server collectors and registers them with reg, if
// reg is not nil.
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests served, by endpoint and result code.",
		}, []string{LabelEndpoint, LabelCode}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Handler duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelEndpoint, LabelCode}),
	}
	if reg != nil {
		reg.MustRegister(s.Requests, s.Duration)
	}
	return s
}

func (s *Server) Observe(endpoint string, code message.Code, took time.Duration) {
	label := strconv.Itoa(int(code))
	s.Requests.WithLabelValues(endpoint, label).Inc()
	s.Duration.WithLabelValues(endpoint, label).Observe(took.Seconds())
}
