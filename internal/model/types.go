package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one population run over a family. Tasks themselves
// are never persisted; only run-level outcomes are.
type RunRecord struct {
	VersionedRecord
	ID            string  `json:"id"`
	Family        string  `json:"family"`
	Mode          string  `json:"mode"`
	Seed          int64   `json:"seed"`
	Population    int     `json:"population"`
	Steps         int     `json:"steps"`
	LearningRate  float64 `json:"learning_rate,omitempty"`
	Workers       int     `json:"workers"`
	MeanFinalLoss float64 `json:"mean_final_loss"`
	BestFinalLoss float64 `json:"best_final_loss"`
	CreatedAtUTC  string  `json:"created_at_utc"`
}

// FamilySummary tracks the best observed loss for a registered family.
type FamilySummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestLoss    float64 `json:"best_loss"`
	Runs        int     `json:"runs"`
}

const (
	RunModeEvaluate = "evaluate"
	RunModeTrain    = "train"
)
