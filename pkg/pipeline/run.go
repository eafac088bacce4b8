package pipeline

import (
	"time"

	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/artifact"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// StageResult captures the outcome of one stage. It is immutable once
// appended to a Run.
type StageResult struct {
	Stage        string
	State        StageState
	Provider     string
	Model        string
	Artifact     *artifact.Artifact
	FallbackUsed bool
	Succeeded    bool
	Err          error
	Reports      []adapter.CallReport
	Duration     time.Duration
}

// Run is the accumulated record of all stage outcomes for one topic.
// It is owned exclusively by the runner; observers only ever see
// snapshots.
type Run struct {
	ID     string
	Topic  string
	Stages []StageResult
	Status RunStatus
	Cost   RunCost
	Err    error
}

// Stage returns the result for a named stage, or nil if it never ran.
func (r *Run) Stage(name string) *StageResult {
	for i := range r.Stages {
		if r.Stages[i].Stage == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// Snapshot returns a read-only copy of the run. Artifacts are shared
// because they are immutable.
func (r *Run) Snapshot() Run {
	snap := Run{
		ID:     r.ID,
		Topic:  r.Topic,
		Status: r.Status,
		Cost:   r.Cost,
		Err:    r.Err,
	}
	snap.Stages = make([]StageResult, len(r.Stages))
	for i, result := range r.Stages {
		copied := result
		copied.Reports = append([]adapter.CallReport(nil), result.Reports...)
		snap.Stages[i] = copied
	}
	return snap
}
