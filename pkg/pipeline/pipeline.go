package pipeline

import (
	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/config"
)

// Pipeline represents a multi-stage content generation workflow.
type Pipeline struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description,omitempty"`
	Stages      []*Stage                   `yaml:"stages"`
	Retry       config.RetryConfig         `yaml:"retry,omitempty"`
	Fallback    config.FallbackConfig      `yaml:"fallback,omitempty"`
	Pricing     config.PricingConfig       `yaml:"pricing,omitempty"`
	Providers   map[string]adapter.Adapter `yaml:"-"`
}

// Default returns the built-in three-stage technical content pipeline:
// research feeds creative development, code generation works from the
// topic, and gemini-pro backs up every stage.
func Default() *Pipeline {
	return &Pipeline{
		Name:        "tech-content",
		Description: "Research, write, and illustrate a technical topic with a code example.",
		Stages: []*Stage{
			{
				Name:         "research",
				SystemPrompt: "You are a technical research expert. Provide comprehensive insights.",
				Prompt:       "Research and analyze the technical aspects of: {{ .Topic }}",
				Provider:     config.RouteTarget{Provider: "openai", Model: "gpt-4-turbo"},
				Temperature:  0.3,
			},
			{
				Name:         "creative",
				SystemPrompt: "You are a creative technical writer. Develop engaging content.",
				Prompt:       "Develop a detailed blog post based on this research:\n\n{{ .Stages.research.Output }}",
				Provider:     config.RouteTarget{Provider: "anthropic", Model: "claude-2.1"},
				Temperature:  0.7,
			},
			{
				Name:         "code",
				SystemPrompt: "You are an expert programmer. Generate a practical code example related to the topic.",
				Prompt:       "Create a code example for this topic: {{ .Topic }}. Provide a complete, runnable snippet with comments explaining its purpose and functionality.",
				Provider:     config.RouteTarget{Provider: "openai", Model: "gpt-3.5-turbo"},
				Temperature:  0.2,
			},
		},
		Fallback: config.FallbackConfig{
			Default: config.RouteTarget{Provider: "google", Model: "gemini-pro"},
		},
	}
}

// resolveFallback returns the fallback target for a stage. A stage-level
// override wins over the pipeline fallback policy. Returns nil when no
// fallback applies.
func (p *Pipeline) resolveFallback(stage *Stage) *config.RouteTarget {
	if !p.Fallback.IsEnabled() {
		return nil
	}
	if stage.Fallback != nil && !stage.Fallback.IsZero() {
		target := *stage.Fallback
		return &target
	}
	if target := p.Fallback.Resolve(stage.Name); !target.IsZero() {
		return &target
	}
	return nil
}

// BindAll rebinds every stage to a single provider target and disables
// fallback. Used for offline runs against the mock provider.
func (p *Pipeline) BindAll(target config.RouteTarget) {
	for _, stage := range p.Stages {
		stage.Provider = target
		stage.Fallback = nil
	}
	enabled := false
	p.Fallback.Enabled = &enabled
}
