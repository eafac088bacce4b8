package adapter

import (
	"context"
	"fmt"

	"github.com/draftforge/draftforge/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string
	echoPrompt      bool
	Usage           *Usage
}

// NewMockAdapter creates a mock adapter that echoes the prompt below a marker.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
		echoPrompt:      true,
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
// Prompts without a match return defaultResponse verbatim.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if responses == nil {
		responses = make(map[string]string)
	}
	if defaultResponse == "" {
		defaultResponse = "mock response"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic artifact for the prompt.
func (a *MockAdapter) Generate(_ context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "mock-1"
	}
	if response, ok := a.responses[req.Prompt]; ok {
		art := artifact.New(response, a.Name(), model, req.Prompt)
		return &Response{Artifact: art, Usage: a.Usage}, nil
	}
	content := a.defaultResponse
	if a.echoPrompt {
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt)
	}
	art := artifact.New(content, a.Name(), model, req.Prompt)
	return &Response{Artifact: art, Usage: a.Usage}, nil
}
