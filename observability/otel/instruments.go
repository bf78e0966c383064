package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RPCInstruments push JSON-RPC request counts and latencies through the OTLP
// meter provider installed by Init.
type RPCInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRPCInstruments registers the instruments on the global meter provider.
// Instruments created before Init forward to the provider once it is set.
func NewRPCInstruments() (*RPCInstruments, error) {
	meter := otel.Meter(InstrumentationName)
	requests, err := meter.Int64Counter("bazaar.rpc.requests",
		metric.WithDescription("JSON-RPC requests by method and HTTP status"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("bazaar.rpc.duration",
		metric.WithDescription("JSON-RPC handler latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &RPCInstruments{requests: requests, duration: duration}, nil
}

// Record is safe on a nil receiver.
func (i *RPCInstruments) Record(ctx context.Context, method string, status int, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("rpc.method", method),
		attribute.Int("http.status_code", status),
	)
	i.requests.Add(ctx, 1, attrs)
	i.duration.Record(ctx, elapsed.Seconds(), attrs)
}
