package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/config"
	"github.com/draftforge/draftforge/pkg/transcript"
)

// RunOptions configures pipeline execution.
type RunOptions struct {
	Topic         string
	Observer      Observer
	TranscriptDir string
	Logger        func(format string, args ...any)
}

// Run executes the pipeline stages strictly in order. Each stage tries
// its primary provider with bounded retry and exponential backoff, then
// its fallback provider with the same policy. The first stage to exhaust
// both aborts the run: later stages depend on earlier outputs, so a
// partial stage has nothing meaningful to feed downstream.
//
// The returned Run reflects either full completion or the point of
// failure; on failure the error is an *ExhaustedError unless the context
// was canceled.
func Execute(ctx context.Context, p *Pipeline, opts RunOptions) (*Run, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Topic) == "" {
		return nil, ErrEmptyTopic
	}
	if len(p.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}

	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = func(string, ...any) {}
	}
	retry := p.Retry.WithDefaults()

	runID := newRunID()
	var writer *transcript.Writer
	if opts.TranscriptDir != "" {
		w, err := transcript.NewWriter(opts.TranscriptDir, runID)
		if err != nil {
			return nil, err
		}
		writer = w
		if err := writer.WriteRun(runRecord(runID, p.Name, opts.Topic, "running")); err != nil {
			return nil, err
		}
	}

	run := &Run{ID: runID, Topic: opts.Topic}
	outputs := make(map[string]StageTemplateData)
	total := len(p.Stages)
	costs := newCostTracker(p.Pricing)

	finish := func(status RunStatus, runErr error) {
		run.Status = status
		run.Cost = costs.total()
		run.Err = runErr
		if writer != nil {
			record := runRecord(runID, p.Name, opts.Topic, string(status))
			record.Cost = costRecord(run.Cost)
			if err := writer.WriteRun(record); err != nil {
				logger("transcript: write run: %v", err)
			}
		}
		observer.OnPipelineComplete(run.Snapshot())
	}

	for i, stage := range p.Stages {
		observer.OnStageStart(stage.Name)
		logger("stage %s: starting (%s/%s)", stage.Name, stage.Provider.Provider, stage.Provider.Model)

		result, record, err := runStage(ctx, p, stage, opts.Topic, outputs, retry, observer, logger)
		if result != nil {
			costs.priceReports(result.Reports)
		}
		if writer != nil && record != nil {
			if werr := writer.WriteStage(*record); werr != nil {
				logger("transcript: write stage %s: %v", stage.Name, werr)
			}
		}
		if err != nil {
			if result != nil {
				run.Stages = append(run.Stages, *result)
			}
			finish(RunFailed, err)
			return run, err
		}

		run.Stages = append(run.Stages, *result)
		outputs[stage.Name] = StageTemplateData{
			Output:   result.Artifact.Content,
			Text:     result.Artifact.Content,
			Provider: result.Provider,
			Hash:     result.Artifact.Hash,
		}
		fraction := float64(i+1) / float64(total)
		observer.OnStageComplete(stage.Name, copyResult(*result), fraction)
		logger("stage %s: complete via %s (%d/%d)", stage.Name, result.Provider, i+1, total)
	}

	finish(RunComplete, nil)
	return run, nil
}

func runStage(
	ctx context.Context,
	p *Pipeline,
	stage *Stage,
	topic string,
	outputs map[string]StageTemplateData,
	retry config.RetryConfig,
	observer Observer,
	logger func(format string, args ...any),
) (*StageResult, *transcript.StageRecord, error) {
	start := time.Now()
	tracker := newStageTracker(stage.Name)
	advance := func(to StageState) {
		from := tracker.state
		tracker.advance(to)
		if so, ok := observer.(StateObserver); ok {
			so.OnStageState(stage.Name, from, to)
		}
	}

	prompt, err := renderPrompt(stage.Prompt, topic, outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("render prompt for stage %s: %w", stage.Name, err)
	}

	record := &transcript.StageRecord{
		Name:     stage.Name,
		Provider: stage.Provider.Provider,
		Model:    stage.Provider.Model,
		Prompt:   truncateForTranscript(prompt, 4096),
	}
	if record.Prompt != prompt {
		record.PromptHash = hashString(prompt)
	}

	result := &StageResult{Stage: stage.Name}

	succeed := func(resp *adapter.Response, target config.RouteTarget, fallbackUsed bool) (*StageResult, *transcript.StageRecord, error) {
		advance(StateSucceeded)
		art := resp.Artifact.WithMetadata("stage", stage.Name)
		result.State = StateSucceeded
		result.Provider = target.Provider
		result.Model = target.Model
		result.Artifact = art
		result.FallbackUsed = fallbackUsed
		result.Succeeded = true
		result.Duration = time.Since(start)

		record.State = string(StateSucceeded)
		record.Provider = target.Provider
		record.Model = target.Model
		record.FallbackUsed = fallbackUsed
		record.Output = truncateForTranscript(art.Content, 4096)
		if record.Output != art.Content {
			record.OutputHash = hashString(art.Content)
		}
		record.DurationMillis = time.Since(start).Milliseconds()
		return result, record, nil
	}

	advance(StatePrimaryAttempt)
	resp, report, attempts, primaryErr := callProvider(ctx, p.Providers, stage.Provider, stage, prompt, retry, false, observer)
	result.Reports = append(result.Reports, report)
	record.Attempts = append(record.Attempts, attempts...)

	if primaryErr == nil {
		return succeed(resp, stage.Provider, false)
	}
	if ctx.Err() != nil {
		record.State = string(tracker.state)
		record.DurationMillis = time.Since(start).Milliseconds()
		return nil, record, ctx.Err()
	}

	advance(StatePrimaryExhausted)
	logger("stage %s: primary provider %s exhausted: %v", stage.Name, stage.Provider.Provider, primaryErr)

	var fallbackErr error
	if target := p.resolveFallback(stage); target != nil {
		advance(StateFallbackAttempt)
		logger("stage %s: falling back to %s/%s", stage.Name, target.Provider, target.Model)

		fbResp, fbReport, fbAttempts, err := callProvider(ctx, p.Providers, *target, stage, prompt, retry, true, observer)
		result.Reports = append(result.Reports, fbReport)
		record.Attempts = append(record.Attempts, fbAttempts...)

		if err == nil {
			return succeed(fbResp, *target, true)
		}
		if ctx.Err() != nil {
			record.State = string(tracker.state)
			record.DurationMillis = time.Since(start).Milliseconds()
			return nil, record, ctx.Err()
		}
		fallbackErr = err
	}

	advance(StateFailed)
	exhausted := &ExhaustedError{Stage: stage.Name, PrimaryErr: primaryErr, FallbackErr: fallbackErr}
	result.State = StateFailed
	result.Succeeded = false
	result.Err = exhausted
	result.Duration = time.Since(start)
	record.State = string(StateFailed)
	record.DurationMillis = time.Since(start).Milliseconds()
	return result, record, exhausted
}

// callProvider runs the bounded retry loop against one provider target.
// Transient failures back off exponentially; permanent failures stop the
// loop immediately. Every failed attempt is surfaced through the
// observer before the next one starts.
func callProvider(
	ctx context.Context,
	providers map[string]adapter.Adapter,
	target config.RouteTarget,
	stage *Stage,
	prompt string,
	retry config.RetryConfig,
	fallback bool,
	observer Observer,
) (*adapter.Response, adapter.CallReport, []transcript.AttemptRecord, error) {
	report := adapter.CallReport{Provider: target.Provider, Model: target.Model, FallbackUsed: fallback}

	impl, ok := providers[target.Provider]
	if !ok {
		err := fmt.Errorf("provider %s not configured", target.Provider)
		report.Error = err.Error()
		return nil, report, nil, err
	}

	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Duration(retry.BaseBackoffMs) * time.Millisecond
	exp.MaxInterval = time.Duration(retry.MaxBackoffMs) * time.Millisecond
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retry.MaxAttempts-1)), ctx)

	var resp *adapter.Response
	var attemptRecords []transcript.AttemptRecord
	attempt := 0

	operation := func() error {
		attempt++
		attemptStart := time.Now()

		attemptCtx := ctx
		if retry.AttemptTimeoutMs > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(retry.AttemptTimeoutMs)*time.Millisecond)
			defer cancel()
		}

		r, err := impl.Generate(attemptCtx, adapter.Request{
			Model:        target.Model,
			SystemPrompt: stage.SystemPrompt,
			Prompt:       prompt,
			Temperature:  stage.Temperature,
			MaxTokens:    stage.MaxTokens,
		})

		attemptRecord := transcript.AttemptRecord{
			Attempt:        attempt,
			Provider:       target.Provider,
			Model:          target.Model,
			DurationMillis: time.Since(attemptStart).Milliseconds(),
		}
		if err != nil {
			attemptRecord.Transient = adapter.IsTransient(err)
			attemptRecord.Error = err.Error()
			attemptRecords = append(attemptRecords, attemptRecord)
			if !adapter.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		attemptRecord.Succeeded = true
		attemptRecords = append(attemptRecords, attemptRecord)
		resp = r
		return nil
	}
	notify := func(err error, next time.Duration) {
		observer.OnStageRetry(stage.Name, attempt, err)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	report.Attempts = attempt
	if err != nil {
		report.Error = err.Error()
		return nil, report, attemptRecords, err
	}
	if resp.Usage != nil {
		report.Usage = *resp.Usage
	}
	return resp, report, attemptRecords, nil
}

func copyResult(result StageResult) StageResult {
	result.Reports = append([]adapter.CallReport(nil), result.Reports...)
	return result
}

// StageTemplateData exposes a completed stage's output to prompt templates.
type StageTemplateData struct {
	Output   string
	Text     string
	Provider string
	Hash     string
}

func renderPrompt(prompt, topic string, stages map[string]StageTemplateData) (string, error) {
	data := map[string]any{
		"Topic":  topic,
		"topic":  topic,
		"Stages": stages,
		"stages": stages,
	}

	tmpl, err := template.New("prompt").Parse(prompt)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func runRecord(runID, pipelineName, topic, status string) transcript.RunRecord {
	return transcript.RunRecord{
		ID:        runID,
		Timestamp: time.Now().UTC(),
		Pipeline:  pipelineName,
		TopicHash: hashString(topic),
		Status:    status,
	}
}

func costRecord(cost RunCost) *transcript.CostRecord {
	return &transcript.CostRecord{
		Currency:         cost.Currency,
		Amount:           cost.TotalAmount,
		PromptTokens:     cost.TotalUsage.PromptTokens,
		CompletionTokens: cost.TotalUsage.CompletionTokens,
		TotalTokens:      cost.TotalUsage.TotalTokens,
	}
}

func newRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), randomSuffix())
}

func randomSuffix() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UTC().UnixNano())))
	return hex.EncodeToString(sum[:4])
}

func hashString(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

func truncateForTranscript(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return value[:limit]
}
