package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTelemetryInstallsProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := InitTelemetry(context.Background(), "tileworld-test", 42)
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	assert.NotEqual(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()), "без span'ов остановка не ходит в сеть")
}

func TestNoop(t *testing.T) {
	var s Shutdown = Noop
	assert.NoError(t, s(context.Background()))
}
