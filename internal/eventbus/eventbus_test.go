package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDelivers(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []BlockChanged
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventBlockChanged}}, func(ctx context.Context, ev *Envelope) {
		var p BlockChanged
		assert.NoError(t, ev.Decode(&p))
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	require.NoError(t, err)

	ev, err := NewEnvelope("test", EventBlockChanged, 5, BlockChanged{X: 5, Y: 5, Type: "dirt"})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	require.NoError(t, bus.Publish(context.Background(), ev))

	other, err := NewEnvelope("test", EventPlayerJoined, 5, PlayerEvent{ID: 1, Name: "a"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), other))

	// Close дожидается рассылки буфера
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1, "фильтр по типу")
	assert.Equal(t, BlockChanged{X: 5, Y: 5, Type: "dirt"}, got[0])

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие")

	ev, err := NewEnvelope("test", EventPlayerLeft, 0, PlayerEvent{})
	require.NoError(t, err)
	assert.ErrorIs(t, bus.Publish(context.Background(), ev), ErrClosed)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	calls := 0
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { calls++ })
	require.NoError(t, err)
	sub.Unsubscribe()

	ev, err := NewEnvelope("test", EventWorldSaved, 0, nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, calls)
}

func TestRegisterMetrics(t *testing.T) {
	bus := NewMemoryBus(4)
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg, bus))

	ev, err := NewEnvelope("test", EventWorldSaved, 0, nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Close())

	n, err := testutil.GatherAndCount(reg, "eventbus_messages_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, mustCount(t, reg))
}

func mustCount(t *testing.T, reg *prometheus.Registry) int {
	families, err := reg.Gather()
	require.NoError(t, err)
	return len(families)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "tileworld.BlockChanged", Subject(EventBlockChanged))
}
