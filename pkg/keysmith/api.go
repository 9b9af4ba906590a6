// Package keysmith is the embeddable API for optimizing keyboard layouts
// against a personal keystroke log.
package keysmith

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"keysmith/internal/anneal"
	"keysmith/internal/evo"
	"keysmith/internal/fitness"
	"keysmith/internal/genome"
	"keysmith/internal/keyboard"
	"keysmith/internal/keylog"
	"keysmith/internal/model"
	"keysmith/internal/sink"
	"keysmith/internal/storage"
)

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	KeymapPath string
	LogPath    string
	// OutputPath, when set, receives the best layout found so far as the
	// run progresses and is safe to read at any time.
	OutputPath string

	Population int
	EliteCount int
	// Generations <= 0 runs until the context is cancelled.
	Generations   int
	Workers       int
	Seed          int64
	Selection     string
	MutationRate  float64
	MutationSwaps int
	// AnnealSteps < 0 disables the annealing refinement stage entirely;
	// zero selects the default.
	AnnealSteps  int
	InitialTemp  float64
	TempDecay    float64
	TempFloor    float64
	BigramWindow time.Duration

	Progress io.Writer
}

type RunSummary struct {
	RunID            string
	Generations      int
	BestByGeneration []float64
	FinalBestCost    float64
	BestLayoutID     string
	BestGrid         string
	OutputPath       string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID         string
	CreatedAtUTC  string
	KeymapPath    string
	LogPath       string
	Seed          int64
	Population    int
	Generations   int
	FinalBestCost float64
}

type BestLayoutRequest struct {
	RunID  string
	Latest bool
}

type BestLayoutItem struct {
	RunID    string
	LayoutID string
	Keys     []string
	Cost     float64
	Grid     string
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsItem struct {
	Generation  int
	BestCost    float64
	MeanCost    float64
	WorstCost   float64
	Diversity   float64
	Temperature float64
}

type LogStatsRequest struct {
	KeymapPath   string
	LogPath      string
	BigramWindow time.Duration
	Top          int
}

type KeyCount struct {
	Key   string
	Count uint64
	Freq  float64
}

type BigramCount struct {
	First  string
	Second string
	Count  uint64
	Freq   float64
}

type LogStatsSummary struct {
	TotalEvents  int
	TotalPresses int
	DistinctKeys int
	TopKeys      []KeyCount
	TopBigrams   []BigramCount
	DroppedKeys  []KeyCount
}

func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}

	return &Client{store: store, logger: logger}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

// Optimize runs the full search: parse the keyboard, digest the log, evolve
// layouts until the generation bound or cancellation, and persist the run.
// Cancelling the context is the normal way to stop an unbounded run; the
// best layout found is still returned and recorded.
func (c *Client) Optimize(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.KeymapPath == "" {
		return RunSummary{}, errors.New("keymap path is required")
	}
	if req.LogPath == "" {
		return RunSummary{}, errors.New("log path is required")
	}
	if req.Population <= 0 {
		req.Population = 1000
	}
	if req.EliteCount <= 0 {
		req.EliteCount = req.Population / 20
		if req.EliteCount < 1 {
			req.EliteCount = 1
		}
	}
	if req.Workers <= 0 {
		req.Workers = runtime.NumCPU()
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if req.MutationRate <= 0 {
		req.MutationRate = 0.4
	}
	if req.MutationSwaps <= 0 {
		req.MutationSwaps = 1
	}
	if req.AnnealSteps == 0 {
		req.AnnealSteps = 250
	}
	if req.InitialTemp <= 0 {
		req.InitialTemp = 1.0
	}
	if req.TempDecay <= 0 {
		req.TempDecay = 0.97
	}
	if req.TempFloor <= 0 {
		req.TempFloor = 0.01
	}

	selector, err := evo.SelectorByName(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}

	kb, err := loadKeyboard(req.KeymapPath)
	if err != nil {
		return RunSummary{}, err
	}
	stats, err := loadStats(req.LogPath, kb, req.BigramWindow, c.logger)
	if err != nil {
		return RunSummary{}, err
	}
	evaluator := fitness.NewEvaluator(kb, stats)

	var writer *sink.BestWriter
	var best evo.BestSink
	if req.OutputPath != "" {
		writer, err = sink.NewBestWriter(req.OutputPath, c.logger)
		if err != nil {
			return RunSummary{}, err
		}
		best = &renderSink{kb: kb, writer: writer, logger: c.logger}
	}

	var refiner *anneal.Refiner
	if req.AnnealSteps > 0 {
		refiner = &anneal.Refiner{
			Rand:  rand.New(rand.NewSource(req.Seed + 1000)),
			Steps: req.AnnealSteps,
		}
	}

	monitor, err := evo.NewMonitor(evo.MonitorConfig{
		Evaluator:      evaluator,
		Selector:       selector,
		Mutation:       evo.SwapMutation{Rate: req.MutationRate, Swaps: req.MutationSwaps},
		Refiner:        refiner,
		Schedule:       anneal.Schedule{Initial: req.InitialTemp, Decay: req.TempDecay, Floor: req.TempFloor},
		PopulationSize: req.Population,
		EliteCount:     req.EliteCount,
		Generations:    req.Generations,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Progress:       req.Progress,
		Logger:         c.logger,
		Best:           best,
	})
	if err != nil {
		if writer != nil {
			_ = writer.Close()
		}
		return RunSummary{}, err
	}

	initial := evo.SeedPopulation(rand.New(rand.NewSource(req.Seed)), kb, req.Population)
	now := time.Now().UTC()
	runID := uuid.NewString()

	c.logger.Info("starting optimization run",
		"run_id", runID,
		"population", req.Population,
		"elite", req.EliteCount,
		"generations", req.Generations,
		"workers", req.Workers,
		"seed", req.Seed)

	result, runErr := monitor.Run(ctx, initial)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil {
			c.logger.Warn("best layout file may be stale", "path", req.OutputPath, "error", cerr)
		}
	}
	if runErr != nil {
		return RunSummary{}, runErr
	}

	grid := ""
	if len(result.Best.Layout.Keys) > 0 {
		grid, err = keyboard.Render(kb, result.Best.Layout.Keys)
		if err != nil {
			return RunSummary{}, fmt.Errorf("render best layout: %w", err)
		}
	}

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		KeymapPath:      req.KeymapPath,
		LogPath:         req.LogPath,
		Seed:            req.Seed,
		PopulationSize:  req.Population,
		EliteCount:      req.EliteCount,
		Generations:     result.Generations,
		Workers:         req.Workers,
		MutationRate:    req.MutationRate,
		AnnealSteps:     req.AnnealSteps,
		FinalBestCost:   result.Best.Cost,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return RunSummary{}, err
	}
	if grid != "" {
		if err := c.store.SaveBestLayout(ctx, model.BestLayoutRecord{
			VersionedRecord: storage.CurrentVersion(),
			RunID:           runID,
			LayoutID:        result.Best.Layout.ID,
			Keys:            keysToStrings(result.Best.Layout.Keys),
			Cost:            result.Best.Cost,
			Grid:            grid,
		}); err != nil {
			return RunSummary{}, err
		}
	}

	return RunSummary{
		RunID:            runID,
		Generations:      result.Generations,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestCost:    result.Best.Cost,
		BestLayoutID:     result.Best.Layout.ID,
		BestGrid:         grid,
		OutputPath:       req.OutputPath,
	}, nil
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, len(runs))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		r := runs[i]
		out = append(out, RunItem{
			RunID:         r.ID,
			CreatedAtUTC:  r.CreatedAtUTC,
			KeymapPath:    r.KeymapPath,
			LogPath:       r.LogPath,
			Seed:          r.Seed,
			Population:    r.PopulationSize,
			Generations:   r.Generations,
			FinalBestCost: r.FinalBestCost,
		})
	}
	return out, nil
}

// BestLayout fetches the best layout a run produced.
func (c *Client) BestLayout(ctx context.Context, req BestLayoutRequest) (BestLayoutItem, error) {
	if err := c.ensureInit(ctx); err != nil {
		return BestLayoutItem{}, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return BestLayoutItem{}, err
	}

	best, ok, err := c.store.GetBestLayout(ctx, runID)
	if err != nil {
		return BestLayoutItem{}, err
	}
	if !ok {
		return BestLayoutItem{}, fmt.Errorf("no best layout recorded for run %s", runID)
	}
	return BestLayoutItem{
		RunID:    best.RunID,
		LayoutID: best.LayoutID,
		Keys:     append([]string(nil), best.Keys...),
		Cost:     best.Cost,
		Grid:     best.Grid,
	}, nil
}

// Diagnostics fetches a run's per-generation progress snapshots.
func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]DiagnosticsItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no diagnostics recorded for run %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[len(diagnostics)-req.Limit:]
	}

	out := make([]DiagnosticsItem, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, DiagnosticsItem{
			Generation:  d.Generation,
			BestCost:    d.BestCost,
			MeanCost:    d.MeanCost,
			WorstCost:   d.WorstCost,
			Diversity:   d.Diversity,
			Temperature: d.Temperature,
		})
	}
	return out, nil
}

// LogStats digests a keystroke log against a keyboard without running the
// search, for inspecting what the optimizer will optimize for.
func (c *Client) LogStats(_ context.Context, req LogStatsRequest) (LogStatsSummary, error) {
	if req.KeymapPath == "" {
		return LogStatsSummary{}, errors.New("keymap path is required")
	}
	if req.LogPath == "" {
		return LogStatsSummary{}, errors.New("log path is required")
	}
	if req.Top <= 0 {
		req.Top = 10
	}

	kb, err := loadKeyboard(req.KeymapPath)
	if err != nil {
		return LogStatsSummary{}, err
	}
	stats, err := loadStats(req.LogPath, kb, req.BigramWindow, c.logger)
	if err != nil {
		return LogStatsSummary{}, err
	}

	summary := LogStatsSummary{
		TotalEvents:  stats.TotalEvents,
		TotalPresses: stats.TotalPresses,
		DistinctKeys: len(stats.KeyCounts),
	}

	for key, count := range stats.KeyCounts {
		summary.TopKeys = append(summary.TopKeys, KeyCount{
			Key:   string(key),
			Count: count,
			Freq:  stats.KeyFreq[key],
		})
	}
	sortKeyCounts(summary.TopKeys)
	if len(summary.TopKeys) > req.Top {
		summary.TopKeys = summary.TopKeys[:req.Top]
	}

	for bigram, count := range stats.BigramCounts {
		summary.TopBigrams = append(summary.TopBigrams, BigramCount{
			First:  string(bigram.First),
			Second: string(bigram.Second),
			Count:  count,
			Freq:   stats.BigramFreq[bigram],
		})
	}
	sort.Slice(summary.TopBigrams, func(i, j int) bool {
		a, b := summary.TopBigrams[i], summary.TopBigrams[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.First != b.First {
			return a.First < b.First
		}
		return a.Second < b.Second
	})
	if len(summary.TopBigrams) > req.Top {
		summary.TopBigrams = summary.TopBigrams[:req.Top]
	}

	for key, count := range stats.DroppedKeys {
		summary.DroppedKeys = append(summary.DroppedKeys, KeyCount{Key: string(key), Count: count})
	}
	sortKeyCounts(summary.DroppedKeys)

	return summary, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs recorded")
	}
	return runs[len(runs)-1].ID, nil
}

// renderSink turns improved layouts into rendered keymap text for the
// asynchronous file writer.
type renderSink struct {
	kb     *keyboard.Keyboard
	writer *sink.BestWriter
	logger *slog.Logger
}

func (s *renderSink) Offer(l genome.Layout, cost float64) {
	grid, err := keyboard.Render(s.kb, l.Keys)
	if err != nil {
		s.logger.Warn("cannot render improved layout", "layout", l.ID, "error", err)
		return
	}
	s.writer.Offer(grid)
}

func loadKeyboard(path string) (*keyboard.Keyboard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keymap: %w", err)
	}
	defer f.Close()

	kb, err := keyboard.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse keymap %s: %w", path, err)
	}
	return kb, nil
}

func loadStats(path string, kb *keyboard.Keyboard, window time.Duration, logger *slog.Logger) (*keylog.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	events, err := keylog.ReadEvents(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	return keylog.Collect(events, kb, keylog.Options{BigramWindow: window}, logger), nil
}

func keysToStrings(keys []keyboard.KeyID) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = string(key)
	}
	return out
}

func sortKeyCounts(items []KeyCount) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
}
