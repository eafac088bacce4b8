package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/config"
	"github.com/draftforge/draftforge/pkg/transcript"
)

func TestRunAllStagesSucceedFirstAttempt(t *testing.T) {
	stub := adapter.NewMockAdapterWithResponses(nil, "stub output")
	p := Default()
	p.BindAll(config.RouteTarget{Provider: "mock", Model: "mock-1"})
	p.Retry = fastRetry(3)
	p.Providers = map[string]adapter.Adapter{"mock": stub}

	observer := &recordingObserver{}
	run, err := Execute(context.Background(), p, RunOptions{Topic: "unit testing in Rust", Observer: observer})
	if err != nil {
		t.Fatalf("run pipeline: %v", err)
	}

	if run.Status != RunComplete {
		t.Fatalf("expected complete run, got %s", run.Status)
	}
	if len(run.Stages) != 3 {
		t.Fatalf("expected 3 stage results, got %d", len(run.Stages))
	}

	wantOrder := []string{"research", "creative", "code"}
	for i, result := range run.Stages {
		if result.Stage != wantOrder[i] {
			t.Fatalf("stage %d: expected %s, got %s", i, wantOrder[i], result.Stage)
		}
		if !result.Succeeded {
			t.Fatalf("stage %s should have succeeded", result.Stage)
		}
		if result.Provider != "mock" || result.FallbackUsed {
			t.Fatalf("stage %s should have used the primary provider: %+v", result.Stage, result)
		}
		if result.Artifact.Content != "stub output" {
			t.Fatalf("stage %s: unexpected content %q", result.Stage, result.Artifact.Content)
		}
		if len(result.Reports) != 1 || result.Reports[0].Attempts != 1 {
			t.Fatalf("stage %s: expected a single first-attempt report, got %+v", result.Stage, result.Reports)
		}
	}

	if len(observer.retries) != 0 {
		t.Fatalf("expected no retry events, got %d", len(observer.retries))
	}
	if len(observer.completes) != 3 {
		t.Fatalf("expected 3 completion events, got %d", len(observer.completes))
	}
	if got := observer.completes[0].fraction; got < 0.33 || got > 0.34 {
		t.Fatalf("unexpected first fraction: %v", got)
	}
	if got := observer.completes[2].fraction; got != 1.0 {
		t.Fatalf("final fraction should be 1.0, got %v", got)
	}
	if len(observer.runs) != 1 || observer.runs[0].Status != RunComplete {
		t.Fatalf("expected one pipeline-complete notification with complete status")
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	p := Default()
	p.Providers = map[string]adapter.Adapter{"mock": adapter.NewMockAdapter()}

	if _, err := Execute(context.Background(), p, RunOptions{Topic: "   "}); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}

func TestRunFeedsResearchOutputToCreativeStage(t *testing.T) {
	echo := adapter.NewMockAdapter()
	p := &Pipeline{
		Name: "chained",
		Stages: []*Stage{
			{
				Name:     "research",
				Prompt:   "Research: {{ .Topic }}",
				Provider: config.RouteTarget{Provider: "mock", Model: "mock-1"},
			},
			{
				Name:     "creative",
				Prompt:   "Develop a post from this research:\n\n{{ .Stages.research.Output }}",
				Provider: config.RouteTarget{Provider: "mock", Model: "mock-1"},
			},
		},
		Retry:     fastRetry(1),
		Providers: map[string]adapter.Adapter{"mock": echo},
	}

	run, err := Execute(context.Background(), p, RunOptions{Topic: "goroutine leaks"})
	if err != nil {
		t.Fatalf("run pipeline: %v", err)
	}

	research := run.Stage("research")
	creative := run.Stage("creative")
	if research == nil || creative == nil {
		t.Fatalf("missing stage results: %+v", run.Stages)
	}
	if !strings.Contains(creative.Artifact.Prompt, research.Artifact.Content) {
		t.Fatalf("creative prompt should embed research output:\n%s", creative.Artifact.Prompt)
	}
}

func TestRunCanceledContext(t *testing.T) {
	primary := &scriptedProvider{name: "flaky", response: "ok"}
	p := &Pipeline{
		Name: "canceled",
		Stages: []*Stage{
			{Name: "only", Prompt: "{{ .Topic }}", Provider: config.RouteTarget{Provider: "flaky", Model: "scripted-1"}},
		},
		Retry:     fastRetry(3),
		Providers: map[string]adapter.Adapter{"flaky": primary},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := Execute(ctx, p, RunOptions{Topic: "anything"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Status != RunFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if len(run.Stages) != 0 {
		t.Fatalf("canceled stage should not produce a result: %+v", run.Stages)
	}
	if primary.calls != 1 {
		t.Fatalf("cancellation should not be retried, got %d calls", primary.calls)
	}
}

func TestRenderPromptWithStageOutputs(t *testing.T) {
	outputs := map[string]StageTemplateData{
		"research": {Output: "key findings", Text: "key findings", Provider: "openai", Hash: "abc"},
	}

	prompt, err := renderPrompt("Topic: {{ .Topic }} | {{ .Stages.research.Output }} | {{ .stages.research.Provider }}", "generics", outputs)
	if err != nil {
		t.Fatalf("render prompt: %v", err)
	}

	expected := "Topic: generics | key findings | openai"
	if prompt != expected {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestRunWritesTranscript(t *testing.T) {
	stub := adapter.NewMockAdapterWithResponses(nil, "stub output")
	p := Default()
	p.BindAll(config.RouteTarget{Provider: "mock", Model: "mock-1"})
	p.Retry = fastRetry(1)
	p.Providers = map[string]adapter.Adapter{"mock": stub}

	dir := t.TempDir()
	run, err := Execute(context.Background(), p, RunOptions{Topic: "channels", TranscriptDir: dir})
	if err != nil {
		t.Fatalf("run pipeline: %v", err)
	}
	if run.ID == "" {
		t.Fatalf("run should carry an ID")
	}

	data, err := os.ReadFile(filepath.Join(dir, run.ID, "run.json"))
	if err != nil {
		t.Fatalf("read run record: %v", err)
	}
	var runRec transcript.RunRecord
	if err := json.Unmarshal(data, &runRec); err != nil {
		t.Fatalf("unmarshal run record: %v", err)
	}
	if runRec.Status != string(RunComplete) {
		t.Fatalf("unexpected run status: %q", runRec.Status)
	}

	data, err = os.ReadFile(filepath.Join(dir, run.ID, "stages", "research.json"))
	if err != nil {
		t.Fatalf("read stage record: %v", err)
	}
	var stageRec transcript.StageRecord
	if err := json.Unmarshal(data, &stageRec); err != nil {
		t.Fatalf("unmarshal stage record: %v", err)
	}
	if stageRec.State != string(StateSucceeded) || len(stageRec.Attempts) != 1 {
		t.Fatalf("unexpected stage record: %+v", stageRec)
	}
}
