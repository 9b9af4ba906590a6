package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one optimization run.
type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	KeymapPath     string  `json:"keymap_path"`
	LogPath        string  `json:"log_path"`
	Seed           int64   `json:"seed"`
	PopulationSize int     `json:"population_size"`
	EliteCount     int     `json:"elite_count"`
	Generations    int     `json:"generations"`
	Workers        int     `json:"workers"`
	MutationRate   float64 `json:"mutation_rate"`
	AnnealSteps    int     `json:"anneal_steps"`
	FinalBestCost  float64 `json:"final_best_cost"`
}

// BestLayoutRecord is the best genome a run has produced so far: the
// slot-ordered key assignment plus its rendered grid form.
type BestLayoutRecord struct {
	VersionedRecord
	RunID    string   `json:"run_id"`
	LayoutID string   `json:"layout_id"`
	Keys     []string `json:"keys"`
	Cost     float64  `json:"cost"`
	Grid     string   `json:"grid"`
}

// GenerationDiagnostics is the per-generation progress snapshot.
type GenerationDiagnostics struct {
	VersionedRecord
	Generation  int     `json:"generation"`
	BestCost    float64 `json:"best_cost"`
	MeanCost    float64 `json:"mean_cost"`
	WorstCost   float64 `json:"worst_cost"`
	Diversity   float64 `json:"diversity"`
	Temperature float64 `json:"temperature"`
}
