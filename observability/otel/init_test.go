package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization=Bearer abc , x-tenant=bazaar,broken, =empty")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "x-tenant": "bazaar"}, got)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "bazaard"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	if err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestShutdownChainRunsInReverse(t *testing.T) {
	var order []string
	failure := errors.New("flush failed")
	chain := shutdownChain{
		func(context.Context) error { order = append(order, "traces"); return nil },
		func(context.Context) error { order = append(order, "metrics"); return failure },
	}
	err := chain.run(context.Background())
	require.ErrorIs(t, err, failure)
	require.Equal(t, []string{"metrics", "traces"}, order)
	require.NoError(t, shutdownChain(nil).run(context.Background()))
}
