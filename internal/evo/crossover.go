package evo

import (
	"math/rand"

	"keysmith/internal/genome"
	"keysmith/internal/keyboard"
)

// PMXCrossover recombines two parent layouts with partially-mapped
// crossover: the child inherits a random slot segment from the first parent
// and the remaining placements from the second, repaired through the
// segment's mapping chain. A naive segment exchange would duplicate keys;
// PMX keeps every child a valid bijection by construction.
func PMXCrossover(rng *rand.Rand, a, b genome.Layout, id string) genome.Layout {
	n := len(a.Keys)
	if n < 2 {
		return a.Clone(id)
	}

	lo := rng.Intn(n)
	hi := rng.Intn(n)
	if lo > hi {
		lo, hi = hi, lo
	}
	hi++ // segment is [lo, hi)

	child := make([]keyboard.KeyID, n)
	inSegment := make(map[keyboard.KeyID]bool, hi-lo)
	for i := lo; i < hi; i++ {
		child[i] = a.Keys[i]
		inSegment[a.Keys[i]] = true
	}

	posInB := make(map[keyboard.KeyID]int, n)
	for i, key := range b.Keys {
		posInB[key] = i
	}

	// Keys of b displaced by the segment are re-homed by following the
	// mapping a[pos] -> position of a[pos] in b until a free slot appears.
	for i := lo; i < hi; i++ {
		key := b.Keys[i]
		if inSegment[key] {
			continue
		}
		pos := i
		for pos >= lo && pos < hi {
			pos = posInB[a.Keys[pos]]
		}
		child[pos] = key
	}

	for i := range child {
		if child[i] == "" {
			child[i] = b.Keys[i]
		}
	}

	return genome.Layout{ID: id, Keys: child}
}
