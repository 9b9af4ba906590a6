// Package evo owns the population: selection, crossover, mutation,
// diversity measurement, and the generational search loop that ties the
// evaluator, the annealing refiner, and the persistence sink together.
package evo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"keysmith/internal/anneal"
	"keysmith/internal/genome"
	"keysmith/internal/keyboard"
	"keysmith/internal/model"
)

// Evaluator scores a layout; lower cost is better. Implementations must be
// deterministic and safe for concurrent use.
type Evaluator interface {
	Evaluate(genome.Layout) float64
}

// BestSink receives every new best-ever layout. Offer must not block: a
// slow persistence write may never stall the next generation.
type BestSink interface {
	Offer(layout genome.Layout, cost float64)
}

type MonitorConfig struct {
	Evaluator Evaluator
	Selector  Selector
	Mutation  SwapMutation
	Refiner   *anneal.Refiner
	Schedule  anneal.Schedule

	PopulationSize int
	EliteCount     int
	// Generations bounds the run; zero or negative means run until the
	// context is cancelled.
	Generations int
	Workers     int
	Seed        int64

	Progress io.Writer
	Logger   *slog.Logger
	Best     BestSink
}

type RunResult struct {
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	Best             ScoredLayout
	Generations      int
}

// Monitor drives the generational cycle. The only terminal transitions are
// reaching the configured generation bound or external cancellation, which
// takes effect between generations so the persisted best always reflects a
// fully evaluated genome.
type Monitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Mutation.Rate < 0 || cfg.Mutation.Rate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0, 1]")
	}
	if cfg.Refiner != nil {
		if err := cfg.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("annealing schedule: %w", err)
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{}
	}
	if cfg.Progress == nil {
		cfg.Progress = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Monitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// SeedPopulation builds a fresh population of random valid layouts.
func SeedPopulation(rng *rand.Rand, kb *keyboard.Keyboard, size int) []genome.Layout {
	population := make([]genome.Layout, size)
	for i := range population {
		population[i] = genome.Random(rng, kb, fmt.Sprintf("seed-%03d", i))
	}
	return population
}

// Run evolves the population until the generation bound is reached or ctx is
// cancelled. Cancellation is honoured between generations only; the
// generation in flight completes its evaluation before Run returns, and the
// result carries the best layout of a fully evaluated population.
func (m *Monitor) Run(ctx context.Context, initial []genome.Layout) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}

	population := make([]genome.Layout, len(initial))
	copy(population, initial)

	var result RunResult
	var bestEver ScoredLayout
	haveBest := false

	for gen := 0; ; gen++ {
		if m.cfg.Generations > 0 && gen >= m.cfg.Generations {
			break
		}
		if err := ctx.Err(); err != nil {
			m.cfg.Logger.Info("search cancelled", "generations_completed", gen)
			break
		}

		scored := m.evaluatePopulation(population)
		sort.Slice(scored, func(i, j int) bool {
			return scored[i].Cost < scored[j].Cost
		})

		temp := m.cfg.Schedule.Temp(gen)
		if m.cfg.Refiner != nil {
			m.refineElite(scored, temp)
			sort.Slice(scored, func(i, j int) bool {
				return scored[i].Cost < scored[j].Cost
			})
		}

		diag := summarizeGeneration(scored, population, gen+1, temp)
		result.Diagnostics = append(result.Diagnostics, diag)
		result.BestByGeneration = append(result.BestByGeneration, diag.BestCost)
		fmt.Fprintf(m.cfg.Progress, "gen %-6d best %.6f mean %.6f worst %.6f diversity %.4f temp %.4f\n",
			diag.Generation, diag.BestCost, diag.MeanCost, diag.WorstCost, diag.Diversity, diag.Temperature)

		// The best-ever record only ever improves; an equal score keeps
		// the incumbent.
		if !haveBest || scored[0].Cost < bestEver.Cost {
			bestEver = ScoredLayout{
				Layout: scored[0].Layout.Clone(scored[0].Layout.ID),
				Cost:   scored[0].Cost,
			}
			haveBest = true
			if m.cfg.Best != nil {
				m.cfg.Best.Offer(bestEver.Layout.Clone(bestEver.Layout.ID), bestEver.Cost)
			}
		}

		population = m.nextGeneration(scored, gen)
		result.Generations = gen + 1
	}

	result.Best = bestEver
	return result, nil
}

// evaluatePopulation scores every layout in parallel. Evaluation is pure and
// read-only over shared state, so the only coordination is the join; the
// phase always runs to completion even if cancellation arrives meanwhile.
func (m *Monitor) evaluatePopulation(population []genome.Layout) []ScoredLayout {
	scored := make([]ScoredLayout, len(population))
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Workers)
	for i := range population {
		i := i
		g.Go(func() error {
			scored[i] = ScoredLayout{
				Layout: population[i],
				Cost:   m.cfg.Evaluator.Evaluate(population[i]),
			}
			return nil
		})
	}
	_ = g.Wait()
	return scored
}

// refineElite anneals the current elite in place. It runs under a background
// context: the refinement belongs to the in-flight generation, which always
// completes.
func (m *Monitor) refineElite(scored []ScoredLayout, temp float64) {
	for i := 0; i < m.cfg.EliteCount; i++ {
		refined, cost, err := m.cfg.Refiner.Refine(
			context.Background(), scored[i].Layout, scored[i].Cost, temp, m.cfg.Evaluator.Evaluate)
		if err != nil {
			m.cfg.Logger.Warn("annealing refinement failed, keeping elite as-is",
				"layout", scored[i].Layout.ID, "error", err)
			continue
		}
		if cost <= scored[i].Cost {
			scored[i] = ScoredLayout{Layout: refined, Cost: cost}
		}
	}
}

func (m *Monitor) nextGeneration(ranked []ScoredLayout, gen int) []genome.Layout {
	next := make([]genome.Layout, 0, m.cfg.PopulationSize)
	for i := 0; i < m.cfg.EliteCount; i++ {
		next = append(next, ranked[i].Layout.Clone(ranked[i].Layout.ID))
	}

	for len(next) < m.cfg.PopulationSize {
		parentA, err := m.cfg.Selector.PickParent(m.rng, ranked, m.cfg.EliteCount)
		if err != nil {
			// Selection over a ranked, non-empty population cannot fail
			// with a validated config; fall back to the best layout.
			parentA = ranked[0].Layout
		}
		parentB, err := m.cfg.Selector.PickParent(m.rng, ranked, m.cfg.EliteCount)
		if err != nil {
			parentB = ranked[0].Layout
		}

		child := PMXCrossover(m.rng, parentA, parentB, fmt.Sprintf("g%d-i%d", gen+1, len(next)))
		m.cfg.Mutation.Apply(m.rng, child)
		next = append(next, child)
	}
	return next
}

func summarizeGeneration(scored []ScoredLayout, population []genome.Layout, generation int, temp float64) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation, Temperature: temp}
	}

	total := 0.0
	for _, item := range scored {
		total += item.Cost
	}

	return model.GenerationDiagnostics{
		Generation:  generation,
		BestCost:    scored[0].Cost,
		MeanCost:    total / float64(len(scored)),
		WorstCost:   scored[len(scored)-1].Cost,
		Diversity:   Diversity(population),
		Temperature: temp,
	}
}
