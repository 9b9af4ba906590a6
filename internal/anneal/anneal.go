// Package anneal refines elite layouts between generations with simulated
// annealing: random single swaps, accepted unconditionally when they lower
// cost and with probability exp(-delta/temperature) otherwise, under a
// monotonically cooling temperature schedule.
package anneal

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"keysmith/internal/genome"
)

// EvalFn scores a layout; lower is better.
type EvalFn func(genome.Layout) float64

// Schedule is a geometric cooling schedule. Temperature never increases
// across generations and never drops below Floor.
type Schedule struct {
	Initial float64
	Decay   float64
	Floor   float64
}

func (s Schedule) Validate() error {
	if s.Initial < 0 {
		return errors.New("initial temperature must be >= 0")
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return errors.New("decay must be in (0, 1]")
	}
	if s.Floor < 0 {
		return errors.New("temperature floor must be >= 0")
	}
	if s.Floor > s.Initial {
		return errors.New("temperature floor above initial temperature")
	}
	return nil
}

// Temp returns the temperature for a generation.
func (s Schedule) Temp(generation int) float64 {
	if generation < 0 {
		generation = 0
	}
	t := s.Initial * math.Pow(s.Decay, float64(generation))
	if t < s.Floor {
		return s.Floor
	}
	return t
}

// Refiner applies annealed local search to a single layout. Safe for
// concurrent use; the random source is guarded.
type Refiner struct {
	Rand  *rand.Rand
	Steps int

	mu sync.Mutex
}

// Refine proposes Steps random slot swaps starting from layout (whose cost
// is already known) at the given temperature and returns the best layout
// seen with its cost. The input layout is not modified.
func (r *Refiner) Refine(ctx context.Context, layout genome.Layout, cost, temp float64, eval EvalFn) (genome.Layout, float64, error) {
	if r == nil || r.Rand == nil {
		return genome.Layout{}, 0, errors.New("random source is required")
	}
	if r.Steps <= 0 {
		return genome.Layout{}, 0, errors.New("steps must be > 0")
	}
	if eval == nil {
		return genome.Layout{}, 0, errors.New("eval function is required")
	}
	n := len(layout.Keys)
	if n < 2 {
		return layout.Clone(layout.ID), cost, nil
	}

	current := layout.Clone(layout.ID)
	currentCost := cost
	best := current.Clone(current.ID)
	bestCost := currentCost

	for step := 0; step < r.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return genome.Layout{}, 0, err
		}

		i, j := r.pickPair(n)
		current.Swap(i, j)
		candidateCost := eval(current)
		delta := candidateCost - currentCost

		if delta < 0 || r.accept(delta, temp) {
			currentCost = candidateCost
			if currentCost < bestCost {
				best = current.Clone(current.ID)
				bestCost = currentCost
			}
			continue
		}
		current.Swap(i, j)
	}

	return best, bestCost, nil
}

func (r *Refiner) pickPair(n int) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.Rand.Intn(n)
	j := r.Rand.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

// accept implements the Metropolis criterion for a worsening move. At zero
// temperature the search is purely greedy.
func (r *Refiner) accept(delta, temp float64) bool {
	if temp <= 0 {
		return false
	}
	p := math.Exp(-delta / temp)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Rand.Float64() < p
}
