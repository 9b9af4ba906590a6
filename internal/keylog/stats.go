package keylog

import (
	"log/slog"
	"time"

	"keysmith/internal/keyboard"
)

// Bigram is an ordered pair of consecutively pressed keys.
type Bigram struct {
	First  keyboard.KeyID
	Second keyboard.KeyID
}

// Stats is the immutable snapshot of typing behaviour derived from the full
// event sequence. Frequencies are normalized so key frequencies sum to 1 and
// bigram frequencies sum to 1, making cost comparable across sessions of
// different lengths. A log with no placeable presses yields empty maps; the
// search still runs, every layout scoring zero.
type Stats struct {
	TotalEvents  int
	TotalPresses int

	KeyCounts    map[keyboard.KeyID]uint64
	BigramCounts map[Bigram]uint64
	KeyFreq      map[keyboard.KeyID]float64
	BigramFreq   map[Bigram]float64

	// DroppedKeys holds press counts for keys observed in the log that have
	// no slot on the keyboard. They can never be placed, so they carry no
	// frequency mass.
	DroppedKeys map[keyboard.KeyID]uint64
}

// Options tune statistics collection.
type Options struct {
	// BigramWindow is the longest gap between two presses still counted as
	// a deliberate bigram; a pause is not a transition. Zero means the
	// default of 2s. Events without timestamps always pair up.
	BigramWindow time.Duration
}

const defaultBigramWindow = 2 * time.Second

// Collect aggregates events against the keyboard's key set. Only press
// events count; keys absent from the keyboard are dropped with a warning.
func Collect(events []Event, kb *keyboard.Keyboard, opts Options, logger *slog.Logger) *Stats {
	if logger == nil {
		logger = slog.Default()
	}
	window := opts.BigramWindow
	if window <= 0 {
		window = defaultBigramWindow
	}

	placeable := make(map[keyboard.KeyID]struct{}, kb.SlotCount())
	for _, key := range kb.KeyIDs() {
		placeable[key] = struct{}{}
	}

	st := &Stats{
		TotalEvents:  len(events),
		KeyCounts:    make(map[keyboard.KeyID]uint64),
		BigramCounts: make(map[Bigram]uint64),
		KeyFreq:      make(map[keyboard.KeyID]float64),
		BigramFreq:   make(map[Bigram]float64),
		DroppedKeys:  make(map[keyboard.KeyID]uint64),
	}

	var (
		prevKey  keyboard.KeyID
		prevTime time.Time
		havePrev bool
	)
	for _, ev := range events {
		if !ev.Press {
			continue
		}
		st.TotalPresses++
		if _, ok := placeable[ev.Key]; !ok {
			st.DroppedKeys[ev.Key]++
			continue
		}
		st.KeyCounts[ev.Key]++
		if havePrev && withinWindow(prevTime, ev.Time, window) {
			st.BigramCounts[Bigram{First: prevKey, Second: ev.Key}]++
		}
		prevKey, prevTime, havePrev = ev.Key, ev.Time, true
	}

	for key, count := range st.DroppedKeys {
		logger.Warn("key has no slot on this keyboard, dropping its presses",
			"key", string(key), "presses", count)
	}

	normalize(st)
	return st
}

// withinWindow treats zero timestamps (legacy logs) as always adjacent.
func withinWindow(prev, cur time.Time, window time.Duration) bool {
	if prev.IsZero() || cur.IsZero() {
		return true
	}
	gap := cur.Sub(prev)
	return gap >= 0 && gap <= window
}

func normalize(st *Stats) {
	var keyTotal uint64
	for _, c := range st.KeyCounts {
		keyTotal += c
	}
	if keyTotal > 0 {
		for key, c := range st.KeyCounts {
			st.KeyFreq[key] = float64(c) / float64(keyTotal)
		}
	}

	var bigramTotal uint64
	for _, c := range st.BigramCounts {
		bigramTotal += c
	}
	if bigramTotal > 0 {
		for bg, c := range st.BigramCounts {
			st.BigramFreq[bg] = float64(c) / float64(bigramTotal)
		}
	}
}
