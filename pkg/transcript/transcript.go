package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Pipeline  string      `json:"pipeline"`
	TopicHash string      `json:"topic_hash"`
	Status    string      `json:"status"`
	Cost      *CostRecord `json:"cost,omitempty"`
}

// CostRecord summarizes estimated spend and token usage for a run.
type CostRecord struct {
	Currency         string  `json:"currency"`
	Amount           float64 `json:"amount"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// StageRecord captures the transcript for a single stage.
type StageRecord struct {
	Name           string          `json:"name"`
	State          string          `json:"state"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	Prompt         string          `json:"prompt,omitempty"`
	PromptHash     string          `json:"prompt_hash,omitempty"`
	Output         string          `json:"output,omitempty"`
	OutputHash     string          `json:"output_hash,omitempty"`
	FallbackUsed   bool            `json:"fallback_used"`
	Attempts       []AttemptRecord `json:"attempts,omitempty"`
	DurationMillis int64           `json:"duration_ms"`
}

// AttemptRecord captures a single provider call attempt.
type AttemptRecord struct {
	Attempt        int    `json:"attempt"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Succeeded      bool   `json:"succeeded"`
	Transient      bool   `json:"transient,omitempty"`
	Error          string `json:"error,omitempty"`
	DurationMillis int64  `json:"duration_ms"`
}

// Writer writes run transcripts to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new transcript writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json. Called once when the run
// starts and again with the final status.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<stage>.json.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%s.json", record.Name))
	return writeJSON(path, record)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
