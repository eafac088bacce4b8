package pipeline

// Observer receives progress notifications during a run. Implementations
// are called from the runner's goroutine and must not block for long.
type Observer interface {
	// OnStageStart fires before a stage's first provider attempt.
	OnStageStart(stage string)

	// OnStageRetry fires after a failed attempt, before the next one.
	OnStageRetry(stage string, attempt int, err error)

	// OnStageComplete fires once per successful stage with a copy of the
	// result and the fraction of stages completed so far.
	OnStageComplete(stage string, result StageResult, fraction float64)

	// OnPipelineComplete fires exactly once with the final run snapshot,
	// whether the run completed or failed.
	OnPipelineComplete(run Run)
}

// StateObserver is an optional extension for observers that want raw
// stage state transitions.
type StateObserver interface {
	OnStageState(stage string, from, to StageState)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

func (NopObserver) OnStageStart(string)                          {}
func (NopObserver) OnStageRetry(string, int, error)              {}
func (NopObserver) OnStageComplete(string, StageResult, float64) {}
func (NopObserver) OnPipelineComplete(Run)                       {}
