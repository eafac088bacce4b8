package pipeline

import (
	"context"
	"sync"

	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/artifact"
	"github.com/draftforge/draftforge/pkg/config"
)

// scriptedProvider fails with the queued errors in order, then answers
// every call with its fixed response.
type scriptedProvider struct {
	mu       sync.Mutex
	name     string
	errs     []error
	response string
	calls    int
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Models() []string { return []string{"scripted-1"} }

func (s *scriptedProvider) Generate(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &adapter.Response{
		Artifact: artifact.New(s.response, s.name, req.Model, req.Prompt),
	}, nil
}

// blockingProvider hangs until the attempt context expires for its
// first blockFirst calls, then answers with its fixed response.
type blockingProvider struct {
	mu         sync.Mutex
	name       string
	blockFirst int
	response   string
	calls      int
}

func (b *blockingProvider) Name() string { return b.name }

func (b *blockingProvider) Models() []string { return []string{"scripted-1"} }

func (b *blockingProvider) Generate(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()
	if call <= b.blockFirst {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &adapter.Response{
		Artifact: artifact.New(b.response, b.name, req.Model, req.Prompt),
	}, nil
}

type retryEvent struct {
	stage   string
	attempt int
	err     error
}

type completeEvent struct {
	stage    string
	result   StageResult
	fraction float64
}

// recordingObserver captures every notification for assertions.
type recordingObserver struct {
	starts      []string
	retries     []retryEvent
	completes   []completeEvent
	transitions []string
	runs        []Run
}

func (o *recordingObserver) OnStageStart(stage string) {
	o.starts = append(o.starts, stage)
}

func (o *recordingObserver) OnStageRetry(stage string, attempt int, err error) {
	o.retries = append(o.retries, retryEvent{stage: stage, attempt: attempt, err: err})
}

func (o *recordingObserver) OnStageComplete(stage string, result StageResult, fraction float64) {
	o.completes = append(o.completes, completeEvent{stage: stage, result: result, fraction: fraction})
}

func (o *recordingObserver) OnPipelineComplete(run Run) {
	o.runs = append(o.runs, run)
}

func (o *recordingObserver) OnStageState(stage string, from, to StageState) {
	o.transitions = append(o.transitions, stage+":"+string(from)+"->"+string(to))
}

func fastRetry(maxAttempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:      maxAttempts,
		BaseBackoffMs:    1,
		MaxBackoffMs:     2,
		AttemptTimeoutMs: 1000,
	}
}

func transientErr(msg string) error {
	return &adapter.ProviderError{Status: 429, Err: errString(msg)}
}

func permanentErr(msg string) error {
	return &adapter.ProviderError{Status: 401, Err: errString(msg)}
}

type errString string

func (e errString) Error() string { return string(e) }
