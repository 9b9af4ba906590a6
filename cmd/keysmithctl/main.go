// Package main provides the CLI entrypoint for keysmith.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"keysmith/internal/config"
	"keysmith/pkg/keysmith"
)

const (
	defaultPopulation     = 1000
	defaultGenerations    = 0
	defaultMutationRate   = 0.4
	defaultMutationSwaps  = 1
	defaultAnnealSteps    = 250
	defaultInitialTemp    = 1.0
	defaultTempDecay      = 0.97
	defaultTempFloor      = 0.01
	defaultBigramWindowMS = 2000
	defaultSelector       = "tournament"
	defaultRunsLimit      = 20
	defaultStatsTop       = 10
)

var (
	flagVerbose bool
	flagConfig  string
	flagStore   string
	flagDBPath  string

	runKeymap         string
	runLog            string
	runOutput         string
	runPopulation     int
	runElite          int
	runGenerations    int
	runWorkers        int
	runSeed           int64
	runSelector       string
	runMutationRate   float64
	runMutationSwaps  int
	runAnnealSteps    int
	runInitialTemp    float64
	runTempDecay      float64
	runTempFloor      float64
	runBigramWindowMS int

	statsKeymap         string
	statsLog            string
	statsTop            int
	statsBigramWindowMS int

	runsLimit int

	bestRunID  string
	bestLatest bool

	diagRunID  string
	diagLatest bool
	diagLimit  int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keysmithctl",
		Short:         "Evolve keyboard layouts from your own typing",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "memory", "store backend (memory, sqlite)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "sqlite database path (default: XDG data dir)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newBestCmd())
	rootCmd.AddCommand(newDiagnosticsCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the layout search against a keystroke log",
		RunE:  runRunCmd,
	}

	cmd.Flags().StringVar(&runKeymap, "keymap", "", "keyboard description file (required)")
	cmd.Flags().StringVar(&runLog, "log", "", "keystroke log file (required)")
	cmd.Flags().StringVar(&runOutput, "output", "", "file receiving the best layout as the search runs")
	cmd.Flags().IntVar(&runPopulation, "population", defaultPopulation, "population size")
	cmd.Flags().IntVar(&runElite, "elite", 0, "elite count (default: population/20)")
	cmd.Flags().IntVar(&runGenerations, "generations", defaultGenerations, "generation bound (0 runs until interrupted)")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel evaluation workers (default: CPU count)")
	cmd.Flags().Int64Var(&runSeed, "seed", 0, "random seed (0 derives one from the clock)")
	cmd.Flags().StringVar(&runSelector, "selector", defaultSelector, "parent selector (tournament, elite, roulette)")
	cmd.Flags().Float64Var(&runMutationRate, "mutation-rate", defaultMutationRate, "per-layout swap mutation probability")
	cmd.Flags().IntVar(&runMutationSwaps, "mutation-swaps", defaultMutationSwaps, "swaps per mutation")
	cmd.Flags().IntVar(&runAnnealSteps, "anneal-steps", defaultAnnealSteps, "annealing steps per elite (-1 disables)")
	cmd.Flags().Float64Var(&runInitialTemp, "initial-temp", defaultInitialTemp, "initial annealing temperature")
	cmd.Flags().Float64Var(&runTempDecay, "temp-decay", defaultTempDecay, "per-generation temperature decay")
	cmd.Flags().Float64Var(&runTempFloor, "temp-floor", defaultTempFloor, "temperature floor")
	cmd.Flags().IntVar(&runBigramWindowMS, "bigram-window-ms", defaultBigramWindowMS, "max gap between presses counted as a bigram")

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "keymap", &runKeymap, fileCfg.Paths.Keymap)
	applyStringConfig(cmd, "log", &runLog, fileCfg.Paths.Log)
	applyStringConfig(cmd, "output", &runOutput, fileCfg.Paths.Output)
	applyStringConfig(cmd, "store", &flagStore, fileCfg.Paths.Store)
	applyStringConfig(cmd, "db-path", &flagDBPath, fileCfg.Paths.DBPath)
	applyIntConfig(cmd, "population", &runPopulation, fileCfg.Search.PopulationSize)
	applyIntConfig(cmd, "elite", &runElite, fileCfg.Search.EliteCount)
	applyIntConfig(cmd, "generations", &runGenerations, fileCfg.Search.Generations)
	applyIntConfig(cmd, "workers", &runWorkers, fileCfg.Search.Workers)
	applyInt64Config(cmd, "seed", &runSeed, fileCfg.Search.Seed)
	applyStringConfig(cmd, "selector", &runSelector, fileCfg.Search.Selector)
	applyFloatConfig(cmd, "mutation-rate", &runMutationRate, fileCfg.Search.MutationRate)
	applyIntConfig(cmd, "mutation-swaps", &runMutationSwaps, fileCfg.Search.MutationSwaps)
	applyIntConfig(cmd, "anneal-steps", &runAnnealSteps, fileCfg.Search.AnnealSteps)
	applyFloatConfig(cmd, "initial-temp", &runInitialTemp, fileCfg.Search.InitialTemp)
	applyFloatConfig(cmd, "temp-decay", &runTempDecay, fileCfg.Search.TempDecay)
	applyFloatConfig(cmd, "temp-floor", &runTempFloor, fileCfg.Search.TempFloor)
	applyIntConfig(cmd, "bigram-window-ms", &runBigramWindowMS, fileCfg.Search.BigramWindowMS)

	if runKeymap == "" {
		return fmt.Errorf("--keymap is required")
	}
	if runLog == "" {
		return fmt.Errorf("--log is required")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	// Ctrl-C stops the search cleanly; the best layout so far is kept.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runGenerations <= 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "running until interrupted (Ctrl-C to stop)")
	}

	summary, err := client.Optimize(ctx, keysmith.RunRequest{
		KeymapPath:    runKeymap,
		LogPath:       runLog,
		OutputPath:    runOutput,
		Population:    runPopulation,
		EliteCount:    runElite,
		Generations:   runGenerations,
		Workers:       runWorkers,
		Seed:          runSeed,
		Selection:     runSelector,
		MutationRate:  runMutationRate,
		MutationSwaps: runMutationSwaps,
		AnnealSteps:   runAnnealSteps,
		InitialTemp:   runInitialTemp,
		TempDecay:     runTempDecay,
		TempFloor:     runTempFloor,
		BigramWindow:  time.Duration(runBigramWindowMS) * time.Millisecond,
		Progress:      cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nrun %s finished after %d generations\n", summary.RunID, summary.Generations)
	fmt.Fprintf(out, "final best cost: %.6f (layout %s)\n", summary.FinalBestCost, summary.BestLayoutID)
	if summary.OutputPath != "" {
		fmt.Fprintf(out, "best layout written to %s\n", summary.OutputPath)
	}
	if summary.BestGrid != "" {
		fmt.Fprintf(out, "\n%s", summary.BestGrid)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a keystroke log against a keyboard",
		RunE:  runStatsCmd,
	}

	cmd.Flags().StringVar(&statsKeymap, "keymap", "", "keyboard description file (required)")
	cmd.Flags().StringVar(&statsLog, "log", "", "keystroke log file (required)")
	cmd.Flags().IntVar(&statsTop, "top", defaultStatsTop, "entries per table")
	cmd.Flags().IntVar(&statsBigramWindowMS, "bigram-window-ms", defaultBigramWindowMS, "max gap between presses counted as a bigram")

	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "keymap", &statsKeymap, fileCfg.Paths.Keymap)
	applyStringConfig(cmd, "log", &statsLog, fileCfg.Paths.Log)
	applyIntConfig(cmd, "bigram-window-ms", &statsBigramWindowMS, fileCfg.Search.BigramWindowMS)

	if statsKeymap == "" {
		return fmt.Errorf("--keymap is required")
	}
	if statsLog == "" {
		return fmt.Errorf("--log is required")
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.LogStats(cmd.Context(), keysmith.LogStatsRequest{
		KeymapPath:   statsKeymap,
		LogPath:      statsLog,
		BigramWindow: time.Duration(statsBigramWindowMS) * time.Millisecond,
		Top:          statsTop,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "events: %d  presses: %d  distinct keys: %d\n\n", summary.TotalEvents, summary.TotalPresses, summary.DistinctKeys)

	fmt.Fprintln(out, "top keys:")
	for _, k := range summary.TopKeys {
		fmt.Fprintf(out, "  %-10s %8d  %6.2f%%\n", k.Key, k.Count, k.Freq*100)
	}

	fmt.Fprintln(out, "\ntop bigrams:")
	for _, b := range summary.TopBigrams {
		fmt.Fprintf(out, "  %-10s %8d  %6.2f%%\n", b.First+" "+b.Second, b.Count, b.Freq*100)
	}

	if len(summary.DroppedKeys) > 0 {
		fmt.Fprintln(out, "\nkeys with no slot on this keyboard:")
		for _, k := range summary.DroppedKeys {
			fmt.Fprintf(out, "  %-10s %8d\n", k.Key, k.Count)
		}
	}
	return nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE:  runRunsCmd,
	}
	cmd.Flags().IntVar(&runsLimit, "limit", defaultRunsLimit, "maximum runs to list")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(cmd.Context(), keysmith.RunsRequest{Limit: runsLimit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  pop=%d gens=%d seed=%d cost=%.6f\n",
			r.RunID, r.CreatedAtUTC, r.Population, r.Generations, r.Seed, r.FinalBestCost)
	}
	return nil
}

func newBestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "best",
		Short: "Show the best layout a run produced",
		RunE:  runBestCmd,
	}
	cmd.Flags().StringVar(&bestRunID, "run", "", "run id")
	cmd.Flags().BoolVar(&bestLatest, "latest", false, "use the most recent run")
	return cmd
}

func runBestCmd(cmd *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	best, err := client.BestLayout(cmd.Context(), keysmith.BestLayoutRequest{
		RunID:  bestRunID,
		Latest: bestLatest,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s  layout %s  cost %.6f\n\n", best.RunID, best.LayoutID, best.Cost)
	fmt.Fprint(out, best.Grid)
	return nil
}

func newDiagnosticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show a run's per-generation progress",
		RunE:  runDiagnosticsCmd,
	}
	cmd.Flags().StringVar(&diagRunID, "run", "", "run id")
	cmd.Flags().BoolVar(&diagLatest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&diagLimit, "limit", 0, "show only the last N generations (0 shows all)")
	return cmd
}

func runDiagnosticsCmd(cmd *cobra.Command, _ []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	diagnostics, err := client.Diagnostics(cmd.Context(), keysmith.DiagnosticsRequest{
		RunID:  diagRunID,
		Latest: diagLatest,
		Limit:  diagLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range diagnostics {
		fmt.Fprintf(out, "gen %-6d best %.6f mean %.6f worst %.6f diversity %.4f temp %.4f\n",
			d.Generation, d.BestCost, d.MeanCost, d.WorstCost, d.Diversity, d.Temperature)
	}
	return nil
}

func newClient() (*keysmith.Client, error) {
	dbPath := flagDBPath
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	return keysmith.New(keysmith.Options{
		StoreKind: flagStore,
		DBPath:    dbPath,
		Logger:    slog.Default(),
	})
}

func loadFileConfig() (config.FileConfig, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
