// Package genome defines the layout genome: a bijective assignment of the
// keyboard's key set onto its non-blank slots. Every code path that produces
// a genome routes through New or through a bijection-preserving operator on
// valid genomes: Swap, Random's shuffle of the key set, and PMX recombination
// with its mapping-chain repair. Either way a malformed layout can never
// reach the search.
package genome

import (
	"fmt"
	"math/rand"

	"keysmith/internal/keyboard"
)

// Layout assigns Keys[slot] to the slot with that index. The backing array
// is owned by the layout; callers that need an independent copy use Clone.
type Layout struct {
	ID   string
	Keys []keyboard.KeyID
}

// New validates that keys is a bijection onto kb's slot set and returns the
// layout. The slice is retained, not copied.
func New(id string, keys []keyboard.KeyID, kb *keyboard.Keyboard) (Layout, error) {
	if len(keys) != kb.SlotCount() {
		return Layout{}, fmt.Errorf("layout %s: %d keys for %d slots", id, len(keys), kb.SlotCount())
	}
	want := make(map[keyboard.KeyID]struct{}, kb.SlotCount())
	for _, key := range kb.KeyIDs() {
		want[key] = struct{}{}
	}
	for i, key := range keys {
		if _, ok := want[key]; !ok {
			return Layout{}, fmt.Errorf("layout %s: slot %d holds %s, which is duplicated or not on this keyboard", id, i, key)
		}
		delete(want, key)
	}
	return Layout{ID: id, Keys: keys}, nil
}

// Random produces a uniformly random valid layout.
func Random(rng *rand.Rand, kb *keyboard.Keyboard, id string) Layout {
	keys := kb.KeyIDs()
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	return Layout{ID: id, Keys: keys}
}

// Clone copies the layout under a new ID.
func (l Layout) Clone(id string) Layout {
	return Layout{ID: id, Keys: append([]keyboard.KeyID(nil), l.Keys...)}
}

// Swap exchanges the keys of two slots in place. Swapping within a valid
// layout keeps it a valid bijection.
func (l Layout) Swap(i, j int) {
	l.Keys[i], l.Keys[j] = l.Keys[j], l.Keys[i]
}

// Distance is the fraction of slots whose assigned key differs: 0 for
// identical layouts, approaching 1 for fully distinct ones.
func Distance(a, b Layout) float64 {
	if len(a.Keys) == 0 || len(a.Keys) != len(b.Keys) {
		return 0
	}
	differ := 0
	for i := range a.Keys {
		if a.Keys[i] != b.Keys[i] {
			differ++
		}
	}
	return float64(differ) / float64(len(a.Keys))
}
