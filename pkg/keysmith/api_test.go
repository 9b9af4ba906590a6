package keysmith

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keysmith/internal/keyboard"
)

const testKeymap = `Fingers
LP: 70
LI: 100
RI: 100
RP: 70

Keys
---------------------
| Q | W |   | O | P |
|LP |LI |   |RI |RP |
|75 |100|   |100|75 |
---------------------
| A | S |   | K | L |
|LP |LI |   |RI |RP |
|90 |100|   |100|90 |
---------------------
`

const testLog = `Q 1 1000
Q 0 1080
S 1 1200
S 0 1280
S 1 1400
S 0 1500
A 1 1600
A 0 1650
F1 1 1700
F1 0 1750
K 1 1800
K 0 1900
S 1 9000
S 0 9100
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFixtures(t *testing.T) (keymapPath, logPath string) {
	t.Helper()
	dir := t.TempDir()
	keymapPath = filepath.Join(dir, "keymap.txt")
	logPath = filepath.Join(dir, "keys.log")
	require.NoError(t, os.WriteFile(keymapPath, []byte(testKeymap), 0o644))
	require.NoError(t, os.WriteFile(logPath, []byte(testLog), 0o644))
	return keymapPath, logPath
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{StoreKind: "memory", Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestOptimizeRunsAndPersists(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	outputPath := filepath.Join(t.TempDir(), "best.txt")
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Optimize(ctx, RunRequest{
		KeymapPath:  keymapPath,
		LogPath:     logPath,
		OutputPath:  outputPath,
		Population:  20,
		EliteCount:  2,
		Generations: 5,
		Workers:     2,
		Seed:        7,
		AnnealSteps: 20,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 5, summary.Generations)
	assert.Len(t, summary.BestByGeneration, 5)
	assert.GreaterOrEqual(t, summary.FinalBestCost, 0.0)
	assert.NotEmpty(t, summary.BestGrid)

	// The best grid is itself a valid keymap with the same slots.
	kb, err := keyboard.Parse(strings.NewReader(summary.BestGrid))
	require.NoError(t, err)
	assert.Equal(t, 8, kb.SlotCount())

	// The output file holds the final best snapshot.
	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, summary.BestGrid, string(data))

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, 20, runs[0].Population)
	assert.Equal(t, summary.FinalBestCost, runs[0].FinalBestCost)

	best, err := client.BestLayout(ctx, BestLayoutRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, best.RunID)
	assert.Equal(t, summary.FinalBestCost, best.Cost)
	assert.Equal(t, summary.BestGrid, best.Grid)
	assert.Len(t, best.Keys, 8)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, diagnostics, 5)
	assert.Equal(t, 1, diagnostics[0].Generation)
	assert.Equal(t, summary.BestByGeneration[4], diagnostics[4].BestCost)
}

func TestOptimizeIsSeedReproducible(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	ctx := context.Background()

	run := func() RunSummary {
		client := newTestClient(t)
		summary, err := client.Optimize(ctx, RunRequest{
			KeymapPath:  keymapPath,
			LogPath:     logPath,
			Population:  16,
			Generations: 4,
			Seed:        99,
			AnnealSteps: 10,
		})
		require.NoError(t, err)
		return summary
	}

	first := run()
	second := run()
	assert.Equal(t, first.BestByGeneration, second.BestByGeneration)
	assert.Equal(t, first.FinalBestCost, second.FinalBestCost)
	assert.Equal(t, first.BestGrid, second.BestGrid)
}

func TestOptimizeValidatesRequest(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Optimize(ctx, RunRequest{LogPath: logPath})
	assert.Error(t, err)

	_, err = client.Optimize(ctx, RunRequest{KeymapPath: keymapPath})
	assert.Error(t, err)

	_, err = client.Optimize(ctx, RunRequest{
		KeymapPath: keymapPath,
		LogPath:    logPath,
		Selection:  "rank",
	})
	assert.Error(t, err)

	_, err = client.Optimize(ctx, RunRequest{
		KeymapPath: filepath.Join(t.TempDir(), "missing.txt"),
		LogPath:    logPath,
	})
	assert.Error(t, err)
}

func TestOptimizeWithoutAnnealing(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	client := newTestClient(t)

	summary, err := client.Optimize(context.Background(), RunRequest{
		KeymapPath:  keymapPath,
		LogPath:     logPath,
		Population:  10,
		Generations: 3,
		Seed:        5,
		AnnealSteps: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Generations)
}

func TestBestLayoutRequestResolution(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.BestLayout(ctx, BestLayoutRequest{RunID: "x", Latest: true})
	assert.Error(t, err)

	_, err = client.BestLayout(ctx, BestLayoutRequest{})
	assert.Error(t, err)

	_, err = client.BestLayout(ctx, BestLayoutRequest{Latest: true})
	assert.Error(t, err, "no runs recorded yet")

	_, err = client.BestLayout(ctx, BestLayoutRequest{RunID: "missing"})
	assert.Error(t, err)
}

func TestLogStats(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	client := newTestClient(t)

	summary, err := client.LogStats(context.Background(), LogStatsRequest{
		KeymapPath: keymapPath,
		LogPath:    logPath,
		Top:        3,
	})
	require.NoError(t, err)

	assert.Equal(t, 14, summary.TotalEvents)
	assert.Equal(t, 7, summary.TotalPresses)
	assert.Equal(t, 4, summary.DistinctKeys)

	require.NotEmpty(t, summary.TopKeys)
	assert.Equal(t, "S", summary.TopKeys[0].Key)
	assert.Equal(t, uint64(3), summary.TopKeys[0].Count)

	require.Len(t, summary.DroppedKeys, 1)
	assert.Equal(t, "F1", summary.DroppedKeys[0].Key)

	require.NotEmpty(t, summary.TopBigrams)
	assert.LessOrEqual(t, len(summary.TopBigrams), 3)
}

func TestLogStatsValidatesPaths(t *testing.T) {
	keymapPath, logPath := writeFixtures(t)
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.LogStats(ctx, LogStatsRequest{LogPath: logPath})
	assert.Error(t, err)

	_, err = client.LogStats(ctx, LogStatsRequest{KeymapPath: keymapPath})
	assert.Error(t, err)
}
