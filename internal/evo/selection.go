package evo

import (
	"fmt"
	"math/rand"

	"keysmith/internal/genome"
)

// ScoredLayout pairs a layout with its evaluated cost. Populations are
// ranked ascending: index 0 is the cheapest layout of its generation.
type ScoredLayout struct {
	Layout genome.Layout
	Cost   float64
}

// Selector chooses parents from ranked layouts for replication.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []ScoredLayout, eliteCount int) (genome.Layout, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []ScoredLayout, eliteCount int) (genome.Layout, error) {
	if rng == nil {
		return genome.Layout{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return genome.Layout{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return ranked[rng.Intn(eliteCount)].Layout, nil
}

// TournamentSelector samples candidates and picks the lowest cost among them.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []ScoredLayout, eliteCount int) (genome.Layout, error) {
	if rng == nil {
		return genome.Layout{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return genome.Layout{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	poolSize := s.PoolSize
	if poolSize <= 0 {
		poolSize = eliteCount * 2
	}
	if poolSize < eliteCount {
		poolSize = eliteCount
	}
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > poolSize {
		tournamentSize = poolSize
	}

	best := ranked[rng.Intn(poolSize)]
	for i := 1; i < tournamentSize; i++ {
		candidate := ranked[rng.Intn(poolSize)]
		if candidate.Cost < best.Cost {
			best = candidate
		}
	}
	return best.Layout, nil
}

// RouletteSelector is fitness-proportionate selection: each layout's weight
// is 1/(1+cost), so cheaper layouts are drawn more often but nothing is
// ever excluded.
type RouletteSelector struct{}

func (RouletteSelector) Name() string {
	return "roulette"
}

func (RouletteSelector) PickParent(rng *rand.Rand, ranked []ScoredLayout, eliteCount int) (genome.Layout, error) {
	if rng == nil {
		return genome.Layout{}, fmt.Errorf("random source is required")
	}
	if len(ranked) == 0 {
		return genome.Layout{}, fmt.Errorf("empty population")
	}

	total := 0.0
	for _, item := range ranked {
		total += 1.0 / (1.0 + item.Cost)
	}
	if total <= 0 {
		return ranked[rng.Intn(len(ranked))].Layout, nil
	}

	pick := rng.Float64() * total
	acc := 0.0
	for _, item := range ranked {
		acc += 1.0 / (1.0 + item.Cost)
		if pick <= acc {
			return item.Layout, nil
		}
	}
	return ranked[len(ranked)-1].Layout, nil
}

// SelectorByName resolves the configured selector.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{}, nil
	case "elite":
		return EliteSelector{}, nil
	case "roulette":
		return RouletteSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selector: %s", name)
	}
}
