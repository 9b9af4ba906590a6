// Package keylog turns a raw keystroke log into the normalized typing
// statistics the fitness evaluator consumes. The log is an append-only
// sequence of press/release records produced by an external capture
// process; it is read in full once at startup and never re-read.
package keylog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"keysmith/internal/keyboard"
)

// Event is one observed press or release of a physical key.
type Event struct {
	Key   keyboard.KeyID
	Press bool
	Time  time.Time
}

// Individual malformed lines are logged and skipped rather than failing the
// whole session; past this many, only the final summary is reported.
const maxMalformedWarnings = 10

// ReadEvents parses the log stream. Each record is
// "<key> <1|0> <unix-millis>"; the timestamp field may be absent in logs
// written by older captures, in which case the event carries the zero time
// and timing-derived statistics degrade gracefully. Only an I/O failure is
// returned as an error.
func ReadEvents(r io.Reader, logger *slog.Logger) ([]Event, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var events []Event
	malformed := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ev, err := parseEvent(text)
		if err != nil {
			malformed++
			if malformed <= maxMalformedWarnings {
				logger.Warn("skipping malformed keystroke record",
					"line", lineNo, "error", err)
			}
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keystroke log: %w", err)
	}
	if malformed > maxMalformedWarnings {
		logger.Warn("additional malformed keystroke records skipped",
			"total_skipped", malformed)
	}
	return events, nil
}

func parseEvent(text string) (Event, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 && len(fields) != 3 {
		return Event{}, fmt.Errorf("want 2 or 3 fields, got %d", len(fields))
	}

	var press bool
	switch fields[1] {
	case "1":
		press = true
	case "0":
		press = false
	default:
		return Event{}, fmt.Errorf("press flag must be 0 or 1, got %q", fields[1])
	}

	ev := Event{Key: keyboard.KeyID(fields[0]), Press: press}
	if len(fields) == 3 {
		ms, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("bad timestamp %q: %w", fields[2], err)
		}
		ev.Time = time.UnixMilli(ms)
	}
	return ev, nil
}
