package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfigUsesFileAPIKeys(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	configDir := filepath.Join(home, ".draftforge")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	data := []byte("api_keys:\n  anthropic: file-ant\n  openai: file-openai\n  google: file-google\n  deepseek: file-deepseek\n")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "file-ant" || cfg.OpenAIAPIKey != "file-openai" ||
		cfg.GoogleAPIKey != "file-google" || cfg.DeepSeekAPIKey != "file-deepseek" {
		t.Fatalf("expected file API keys to be used")
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	configDir := filepath.Join(home, ".draftforge")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-ant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" {
		t.Fatalf("expected env API key to win, got %q", cfg.AnthropicAPIKey)
	}
}

func TestConfigAppliesPipelineDefaults(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	retry := cfg.Pipeline.Retry
	if retry.MaxAttempts != 3 || retry.BaseBackoffMs != 500 || retry.MaxBackoffMs != 10000 || retry.AttemptTimeoutMs != 60000 {
		t.Fatalf("unexpected retry defaults: %+v", retry)
	}

	fallback := cfg.Pipeline.Fallback
	if !fallback.IsEnabled() {
		t.Fatalf("fallback should default to enabled")
	}
	if fallback.Default.Provider != "google" || fallback.Default.Model != "gemini-pro" {
		t.Fatalf("unexpected default fallback target: %+v", fallback.Default)
	}
}

func TestFallbackResolveOrder(t *testing.T) {
	fb := FallbackConfig{
		Default: RouteTarget{Provider: "google", Model: "gemini-pro"},
		PerStage: map[string]RouteTarget{
			"code": {Provider: "deepseek", Model: "deepseek-coder"},
		},
	}

	if got := fb.Resolve("code"); got.Provider != "deepseek" {
		t.Fatalf("per-stage entry should win, got %+v", got)
	}
	if got := fb.Resolve("research"); got.Provider != "google" {
		t.Fatalf("default should apply, got %+v", got)
	}

	enabled := false
	fb.Enabled = &enabled
	if got := fb.Resolve("code"); !got.IsZero() {
		t.Fatalf("disabled fallback should resolve to nothing, got %+v", got)
	}
}

func TestRetryConfigWithDefaultsClampsBackoff(t *testing.T) {
	r := RetryConfig{BaseBackoffMs: 5000, MaxBackoffMs: 100}.WithDefaults()
	if r.MaxBackoffMs != 5000 {
		t.Fatalf("max backoff should be clamped up to base, got %d", r.MaxBackoffMs)
	}
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}
