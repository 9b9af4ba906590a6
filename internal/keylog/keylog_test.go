package keylog

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keysmith/internal/keyboard"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKeyboard(t *testing.T) *keyboard.Keyboard {
	t.Helper()
	kb, err := keyboard.Parse(strings.NewReader(`Fingers
LP: 70
LI: 100
RI: 100
RP: 70

Keys
---------------------
| Q | W |   | O | P |
|LP |LI |   |RI |RP |
|75 |100|   |100|75 |
---------------------
| A | S |   | K | L |
|LP |LI |   |RI |RP |
|90 |100|   |100|90 |
---------------------
`))
	require.NoError(t, err)
	return kb
}

func TestReadEventsParsesAndSkipsMalformed(t *testing.T) {
	log := strings.Join([]string{
		"A 1 1000",
		"A 0 1100",
		"garbage",
		"S 2 1200",  // bad press flag
		"S 1 notms", // bad timestamp
		"S 1 1300",
		"W 1", // legacy two-field record
		"",
	}, "\n")

	events, err := ReadEvents(strings.NewReader(log), discardLogger())
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, keyboard.KeyID("A"), events[0].Key)
	assert.True(t, events[0].Press)
	assert.Equal(t, time.UnixMilli(1000), events[0].Time)
	assert.False(t, events[1].Press)
	assert.True(t, events[3].Time.IsZero())
}

func TestCollectCountsPressesAndBigrams(t *testing.T) {
	kb := testKeyboard(t)
	events := []Event{
		{Key: "A", Press: true, Time: time.UnixMilli(0)},
		{Key: "A", Press: false, Time: time.UnixMilli(50)},
		{Key: "S", Press: true, Time: time.UnixMilli(100)},
		{Key: "A", Press: true, Time: time.UnixMilli(200)},
		// A pause longer than the window breaks the bigram chain.
		{Key: "K", Press: true, Time: time.UnixMilli(10_000)},
		{Key: "L", Press: true, Time: time.UnixMilli(10_100)},
	}

	st := Collect(events, kb, Options{BigramWindow: time.Second}, discardLogger())

	assert.Equal(t, 5, st.TotalPresses)
	assert.Equal(t, uint64(2), st.KeyCounts["A"])
	assert.Equal(t, uint64(1), st.KeyCounts["S"])

	assert.Equal(t, uint64(1), st.BigramCounts[Bigram{"A", "S"}])
	assert.Equal(t, uint64(1), st.BigramCounts[Bigram{"S", "A"}])
	assert.Equal(t, uint64(1), st.BigramCounts[Bigram{"K", "L"}])
	assert.Zero(t, st.BigramCounts[Bigram{"A", "K"}])

	var keyMass float64
	for _, f := range st.KeyFreq {
		keyMass += f
	}
	assert.InDelta(t, 1.0, keyMass, 1e-9)

	var bigramMass float64
	for _, f := range st.BigramFreq {
		bigramMass += f
	}
	assert.InDelta(t, 1.0, bigramMass, 1e-9)
}

func TestCollectDropsUnplaceableKeys(t *testing.T) {
	kb := testKeyboard(t)
	events := []Event{
		{Key: "F13", Press: true},
		{Key: "F13", Press: true},
		{Key: "A", Press: true},
	}

	st := Collect(events, kb, Options{}, discardLogger())

	assert.Equal(t, uint64(2), st.DroppedKeys["F13"])
	assert.Zero(t, st.KeyCounts["F13"])
	assert.InDelta(t, 1.0, st.KeyFreq["A"], 1e-9)
}

func TestCollectAllUnplaceableYieldsZeroMass(t *testing.T) {
	kb := testKeyboard(t)
	events := []Event{
		{Key: "F13", Press: true},
		{Key: "F14", Press: true},
	}

	st := Collect(events, kb, Options{}, discardLogger())

	assert.Empty(t, st.KeyFreq)
	assert.Empty(t, st.BigramFreq)
}

func TestCollectLegacyEventsAlwaysPair(t *testing.T) {
	kb := testKeyboard(t)
	events := []Event{
		{Key: "A", Press: true},
		{Key: "S", Press: true},
	}

	st := Collect(events, kb, Options{BigramWindow: time.Millisecond}, discardLogger())
	assert.Equal(t, uint64(1), st.BigramCounts[Bigram{"A", "S"}])
}
