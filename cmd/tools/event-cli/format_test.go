package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/eventbus"
)

func TestParseSinceTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseSinceTime("30m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-30*time.Minute), got)

	got, err = parseSinceTime("2d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	got, err = parseSinceTime("2024-05-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSinceTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	_, err = parseSinceTime("вчера", now)
	assert.Error(t, err)
}

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"BlockChanged", "PlayerLeft"}, parseStringList(" BlockChanged, ,PlayerLeft "))
}

func TestFormatEvent(t *testing.T) {
	ev, err := eventbus.NewEnvelope("tileworld-server", eventbus.EventBlockChanged, 1,
		eventbus.BlockChanged{X: 5, Y: -3, Type: "torch", Player: "alice"})
	require.NoError(t, err)
	assert.Contains(t, formatEvent(ev), "tileworld-server/BlockChanged (5,-3) -> torch by alice")

	ev, err = eventbus.NewEnvelope("tileworld-server", eventbus.EventPlayerLeft, 1, eventbus.PlayerEvent{ID: 2, Name: "bob"})
	require.NoError(t, err)
	assert.Contains(t, formatEvent(ev), "PlayerLeft #2 bob")

	ev, err = eventbus.NewEnvelope("tileworld-server", eventbus.EventWorldSaved, 1, map[string]int{"players": 3})
	require.NoError(t, err)
	assert.Contains(t, formatEvent(ev), `{"players":3}`)

	assert.True(t, matchTypes(ev, nil))
	assert.True(t, matchTypes(ev, []string{"worldsaved"}))
	assert.False(t, matchTypes(ev, []string{"BlockChanged"}))
}
