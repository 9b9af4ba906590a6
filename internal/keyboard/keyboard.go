// Package keyboard models the physical keyboard: fingers with strength
// scores and key slots with positional scores, loaded once from the
// two-section text description and read-only afterwards.
package keyboard

import (
	"fmt"
	"math"
)

// KeyID names a physical key cap. The identifier space is shared by the
// layout grid notation and the keystroke log ("A", "Key1", "Space", ...).
type KeyID string

type Hand int

const (
	LeftHand Hand = iota
	RightHand
)

func (h Hand) String() string {
	if h == LeftHand {
		return "left"
	}
	return "right"
}

type FingerKind int

const (
	Pinky FingerKind = iota
	Ring
	Middle
	Index
	Thumb
)

// Finger is one of the ten physical fingers.
type Finger struct {
	Hand Hand
	Kind FingerKind
}

// Slot is a single physical key position bound to a finger, a positional
// ease-of-reach score in (0, 1], and its row/column on the grid.
type Slot struct {
	Key    KeyID
	Finger Finger
	Score  float64
	Row    int
	Col    int
}

// Keyboard is the full slot collection plus the finger strength table.
// Immutable for the duration of a run.
type Keyboard struct {
	fingers map[Finger]float64
	slots   []Slot
	grid    [][]int // slot index per cell, -1 for blank
}

// SlotCount reports the number of non-blank slots.
func (kb *Keyboard) SlotCount() int {
	return len(kb.slots)
}

// Slot returns the slot at index i. Slot indices are stable for the run.
func (kb *Keyboard) Slot(i int) Slot {
	return kb.slots[i]
}

// Slots returns a copy of all slots in index order.
func (kb *Keyboard) Slots() []Slot {
	return append([]Slot(nil), kb.slots...)
}

// KeyIDs returns the keyboard's key set in slot-index order. This is the
// exact multiset a layout must place (it is a set: duplicates are rejected
// at parse time).
func (kb *Keyboard) KeyIDs() []KeyID {
	out := make([]KeyID, len(kb.slots))
	for i, s := range kb.slots {
		out[i] = s.Key
	}
	return out
}

// FingerStrength returns the strength score for f.
func (kb *Keyboard) FingerStrength(f Finger) (float64, bool) {
	v, ok := kb.fingers[f]
	return v, ok
}

// Fingers returns a copy of the finger strength table.
func (kb *Keyboard) Fingers() map[Finger]float64 {
	out := make(map[Finger]float64, len(kb.fingers))
	for f, v := range kb.fingers {
		out[f] = v
	}
	return out
}

// SlotDistance is the euclidean distance between two slots on the grid.
func (kb *Keyboard) SlotDistance(i, j int) float64 {
	a, b := kb.slots[i], kb.slots[j]
	dr := float64(a.Row - b.Row)
	dc := float64(a.Col - b.Col)
	return math.Sqrt(dr*dr + dc*dc)
}

func (kb *Keyboard) validate() error {
	if len(kb.fingers) == 0 {
		return &ParseError{Msg: "no fingers defined"}
	}
	if len(kb.slots) == 0 {
		return &ParseError{Msg: "no key slots defined"}
	}
	for f, strength := range kb.fingers {
		if strength <= 0 {
			return &ParseError{Msg: fmt.Sprintf("finger %s has non-positive strength", fingerAbbrev(f))}
		}
	}
	seen := make(map[KeyID]struct{}, len(kb.slots))
	for _, s := range kb.slots {
		if _, ok := kb.fingers[s.Finger]; !ok {
			return &ParseError{Msg: fmt.Sprintf("slot %s references undefined finger %s", s.Key, fingerAbbrev(s.Finger))}
		}
		if s.Score <= 0 {
			return &ParseError{Msg: fmt.Sprintf("slot %s has non-positive score", s.Key)}
		}
		if _, dup := seen[s.Key]; dup {
			return &ParseError{Msg: fmt.Sprintf("duplicate key %s in grid", s.Key)}
		}
		seen[s.Key] = struct{}{}
	}
	return nil
}
