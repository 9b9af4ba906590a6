package keyboard

import (
	"fmt"
	"strings"
)

// Render serializes the keyboard back into its grid notation with placement
// substituted for each slot: placement[i] is the key shown at slot index i.
// Passing the keyboard's own KeyIDs reproduces the parsed description
// (cell alignment aside). This is how the best layout found by the search
// is written out.
func Render(kb *Keyboard, placement []KeyID) (string, error) {
	if len(placement) != len(kb.slots) {
		return "", fmt.Errorf("placement has %d keys, keyboard has %d slots", len(placement), len(kb.slots))
	}

	var b strings.Builder
	b.WriteString("Fingers\n")
	for _, f := range AllFingers() {
		strength, ok := kb.fingers[f]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %d\n", fingerAbbrev(f), int(strength*100+0.5))
	}
	b.WriteString("\nKeys\n")

	if len(kb.grid) == 0 {
		return "", fmt.Errorf("keyboard has no grid")
	}
	rule := strings.Repeat("-", len(kb.grid[0])*4+1)
	for _, gridRow := range kb.grid {
		b.WriteString(rule)
		b.WriteByte('\n')
		if err := renderCells(&b, gridRow, func(slot int) (string, error) {
			cell, ok := keyToCell[placement[slot]]
			if !ok {
				return "", fmt.Errorf("key %s has no grid token", placement[slot])
			}
			return cell, nil
		}); err != nil {
			return "", err
		}
		if err := renderCells(&b, gridRow, func(slot int) (string, error) {
			return fingerAbbrev(kb.slots[slot].Finger), nil
		}); err != nil {
			return "", err
		}
		if err := renderCells(&b, gridRow, func(slot int) (string, error) {
			return fmt.Sprintf("%d", int(kb.slots[slot].Score*100+0.5)), nil
		}); err != nil {
			return "", err
		}
	}
	b.WriteString(rule)
	b.WriteByte('\n')
	return b.String(), nil
}

func renderCells(b *strings.Builder, gridRow []int, cell func(slot int) (string, error)) error {
	for _, slot := range gridRow {
		text := ""
		if slot >= 0 {
			var err error
			text, err = cell(slot)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(b, "|%-3s", text)
	}
	b.WriteString("|\n")
	return nil
}
