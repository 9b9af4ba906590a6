package evo

import (
	"math/rand"

	"keysmith/internal/genome"
)

// SwapMutation swaps the placements of two randomly chosen slots with
// probability Rate per layout, Swaps times. A swap cannot break the
// bijection, so mutated layouts never need repair.
type SwapMutation struct {
	Rate  float64
	Swaps int
}

func (m SwapMutation) Name() string {
	return "swap"
}

// Apply mutates the layout in place.
func (m SwapMutation) Apply(rng *rand.Rand, l genome.Layout) {
	n := len(l.Keys)
	if n < 2 {
		return
	}
	swaps := m.Swaps
	if swaps <= 0 {
		swaps = 1
	}
	for s := 0; s < swaps; s++ {
		if rng.Float64() >= m.Rate {
			continue
		}
		i := rng.Intn(n)
		j := rng.Intn(n - 1)
		if j >= i {
			j++
		}
		l.Swap(i, j)
	}
}

// Diversity is the mean pairwise distance across the population: 0 when
// every layout is identical, approaching 1 when layouts share nothing.
func Diversity(population []genome.Layout) float64 {
	if len(population) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			total += genome.Distance(population[i], population[j])
			pairs++
		}
	}
	return total / float64(pairs)
}
