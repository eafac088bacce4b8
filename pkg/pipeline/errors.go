package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyTopic is returned when a run is started without a topic.
var ErrEmptyTopic = errors.New("topic is required")

// ExhaustedError reports that a stage ran out of providers: the primary
// exhausted its attempts and the fallback, if any, did too.
type ExhaustedError struct {
	Stage       string
	PrimaryErr  error
	FallbackErr error
}

func (e *ExhaustedError) Error() string {
	if e.FallbackErr == nil {
		return fmt.Sprintf("stage %s: primary provider exhausted, no fallback configured: %v", e.Stage, e.PrimaryErr)
	}
	return fmt.Sprintf("stage %s: primary and fallback providers exhausted: primary: %v; fallback: %v", e.Stage, e.PrimaryErr, e.FallbackErr)
}

func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	if e.PrimaryErr != nil {
		errs = append(errs, e.PrimaryErr)
	}
	if e.FallbackErr != nil {
		errs = append(errs, e.FallbackErr)
	}
	return errs
}
