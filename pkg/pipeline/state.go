package pipeline

// StageState tracks a stage through its attempt lifecycle:
// Pending -> PrimaryAttempt -> {Succeeded | PrimaryExhausted} ->
// FallbackAttempt -> {Succeeded | Failed}.
type StageState string

const (
	StatePending          StageState = "pending"
	StatePrimaryAttempt   StageState = "primary_attempt"
	StatePrimaryExhausted StageState = "primary_exhausted"
	StateFallbackAttempt  StageState = "fallback_attempt"
	StateSucceeded        StageState = "succeeded"
	StateFailed           StageState = "failed"
)

var stageTransitions = map[StageState][]StageState{
	StatePending:          {StatePrimaryAttempt},
	StatePrimaryAttempt:   {StateSucceeded, StatePrimaryExhausted},
	StatePrimaryExhausted: {StateFallbackAttempt, StateFailed},
	StateFallbackAttempt:  {StateSucceeded, StateFailed},
}

// CanTransition reports whether moving to next is a legal transition.
func (s StageState) CanTransition(next StageState) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends a stage.
func (s StageState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// stageTracker enforces the stage state machine during a run.
type stageTracker struct {
	stage string
	state StageState
}

func newStageTracker(stage string) *stageTracker {
	return &stageTracker{stage: stage, state: StatePending}
}

// advance moves the tracker to next, panicking on an illegal transition:
// an illegal transition is a runner bug, not a runtime condition.
func (t *stageTracker) advance(next StageState) {
	if !t.state.CanTransition(next) {
		panic("pipeline: illegal stage transition " + string(t.state) + " -> " + string(next) + " in stage " + t.stage)
	}
	t.state = next
}
