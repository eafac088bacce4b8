package config

// PipelineConfig holds run-time policy for the stage pipeline.
type PipelineConfig struct {
	Retry    RetryConfig    `yaml:"retry,omitempty"`
	Fallback FallbackConfig `yaml:"fallback,omitempty"`
	Pricing  PricingConfig  `yaml:"pricing,omitempty"`
}

// RouteTarget binds a provider and model combination.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// IsZero reports whether the target is unset.
func (t RouteTarget) IsZero() bool {
	return t.Provider == "" && t.Model == ""
}

// RetryConfig defines retry and backoff behavior for a provider call.
// MaxAttempts applies per provider: primary and fallback each get the
// full attempt budget.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts,omitempty"`
	BaseBackoffMs    int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs     int `yaml:"max_backoff_ms,omitempty"`
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms,omitempty"`
}

// IsZero reports whether no retry settings were supplied.
func (r RetryConfig) IsZero() bool {
	return r == RetryConfig{}
}

// WithDefaults returns the config with unset fields filled in.
func (r RetryConfig) WithDefaults() RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BaseBackoffMs <= 0 {
		r.BaseBackoffMs = 500
	}
	if r.MaxBackoffMs <= 0 {
		r.MaxBackoffMs = 10000
	}
	if r.MaxBackoffMs < r.BaseBackoffMs {
		r.MaxBackoffMs = r.BaseBackoffMs
	}
	if r.AttemptTimeoutMs <= 0 {
		r.AttemptTimeoutMs = 60000
	}
	return r
}

// FallbackConfig defines which provider picks up a stage after the
// primary provider is exhausted. A stage-specific entry wins over the
// pipeline-wide default.
type FallbackConfig struct {
	Enabled  *bool                  `yaml:"enabled,omitempty"`
	Default  RouteTarget            `yaml:"default,omitempty"`
	PerStage map[string]RouteTarget `yaml:"per_stage,omitempty"`
}

// IsEnabled reports whether fallback is active. Unset means enabled.
func (f FallbackConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// Resolve returns the fallback target for a stage, or an empty target
// when no fallback applies.
func (f FallbackConfig) Resolve(stageName string) RouteTarget {
	if !f.IsEnabled() {
		return RouteTarget{}
	}
	if target, ok := f.PerStage[stageName]; ok {
		return target
	}
	return f.Default
}

// ModelPricing is the per-1K-token price for a model.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k"`
}

// PricingConfig maps provider -> model -> pricing. A "default" model
// entry applies to any model of that provider without its own entry.
type PricingConfig map[string]map[string]ModelPricing

// For returns the pricing entry for a provider/model pair.
func (p PricingConfig) For(provider, model string) (ModelPricing, bool) {
	if p == nil {
		return ModelPricing{}, false
	}
	models, ok := p[provider]
	if !ok {
		return ModelPricing{}, false
	}
	if entry, ok := models[model]; ok {
		return entry, true
	}
	if entry, ok := models["default"]; ok {
		return entry, true
	}
	return ModelPricing{}, false
}

// DefaultPricing returns list prices for the models the default pipeline
// binds. Estimates only; override in config.yaml when prices move.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		"openai": {
			"gpt-4-turbo":   {PromptPer1K: 0.01, CompletionPer1K: 0.03},
			"gpt-3.5-turbo": {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
			"gpt-4o":        {PromptPer1K: 0.005, CompletionPer1K: 0.015},
		},
		"anthropic": {
			"claude-2.1": {PromptPer1K: 0.008, CompletionPer1K: 0.024},
			"default":    {PromptPer1K: 0.003, CompletionPer1K: 0.015},
		},
		"google": {
			"gemini-pro": {PromptPer1K: 0.000125, CompletionPer1K: 0.000375},
		},
		"deepseek": {
			"default": {PromptPer1K: 0.00014, CompletionPer1K: 0.00028},
		},
	}
}

// DefaultPipelineConfig returns the default retry and fallback policy:
// the single gemini-pro backup model picks up any exhausted stage.
func DefaultPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{}
	applyPipelineDefaults(cfg)
	return cfg
}

func applyPipelineDefaults(cfg *PipelineConfig) {
	if cfg == nil {
		return
	}
	cfg.Retry = cfg.Retry.WithDefaults()
	if cfg.Fallback.Default.IsZero() {
		cfg.Fallback.Default = RouteTarget{Provider: "google", Model: "gemini-pro"}
	}
	if cfg.Pricing == nil {
		cfg.Pricing = DefaultPricing()
	}
}
