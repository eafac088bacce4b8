package pipeline

import "github.com/draftforge/draftforge/pkg/config"

// Stage represents a single step in a content pipeline. Its prompt is a
// text/template rendered with the topic and prior stage outputs.
type Stage struct {
	Name         string              `yaml:"name"`
	SystemPrompt string              `yaml:"system_prompt,omitempty"`
	Prompt       string              `yaml:"prompt"`
	Provider     config.RouteTarget  `yaml:"provider"`
	Fallback     *config.RouteTarget `yaml:"fallback,omitempty"`
	Temperature  float64             `yaml:"temperature,omitempty"`
	MaxTokens    int64               `yaml:"max_tokens,omitempty"`
}
