package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/codeblock"
	"github.com/draftforge/draftforge/pkg/config"
	"github.com/draftforge/draftforge/pkg/pipeline"
	"github.com/spf13/cobra"
)

var aliases *config.ModelAliases

func main() {
	rootCmd := &cobra.Command{
		Use:   "draftforge",
		Short: "Multi-provider content generation pipeline",
		Long: `Draftforge runs a staged content generation pipeline: a research
	stage gathers technical insight, a creative stage turns it into a blog
	post, and a code stage produces a runnable example. Each stage is bound
	to the provider best suited for it, with retry, backoff, and fallback
	to a backup provider when the primary is unavailable.`,
	}

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var pipelineFile string
	var outDir string
	var transcriptDir string
	var maxRetries int
	var timeoutMs int
	var mockFlag bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Generate content for a topic",
		Long: `Runs the full pipeline for the given topic and writes the results
	to the output directory: blog_post.md with the creative stage output and
	a code example extracted from the code stage output.

	Use --file to run a custom pipeline manifest instead of the built-in
	three-stage pipeline. Use --mock to run every stage against the offline
	mock provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			var p *pipeline.Pipeline
			if pipelineFile != "" {
				p, err = pipeline.LoadManifest(pipelineFile)
				if err != nil {
					return err
				}
			} else {
				p = pipeline.Default()
				if cfg.Pipeline != nil {
					p.Retry = cfg.Pipeline.Retry
					p.Fallback = cfg.Pipeline.Fallback
				}
			}
			if p.Pricing == nil && cfg.Pipeline != nil {
				p.Pricing = cfg.Pipeline.Pricing
			}

			if maxRetries > 0 {
				p.Retry.MaxAttempts = maxRetries
			}
			if timeoutMs > 0 {
				p.Retry.AttemptTimeoutMs = timeoutMs
			}
			if mockFlag {
				p.BindAll(config.RouteTarget{Provider: "mock", Model: "mock-1"})
			}

			providers, err := createProviders(cfg)
			if err != nil {
				return fmt.Errorf("failed to create providers: %w", err)
			}
			p.Providers = providers

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := pipeline.RunOptions{
				Topic:         topic,
				Observer:      &consoleObserver{},
				TranscriptDir: transcriptDir,
			}
			if verbose {
				opts.Logger = func(format string, args ...any) {
					log.Printf(format, args...)
				}
			}

			run, err := pipeline.Execute(ctx, p, opts)
			if err != nil {
				return err
			}

			if err := writeOutputs(outDir, run); err != nil {
				return err
			}
			if creative := run.Stage("creative"); creative != nil && creative.Succeeded {
				fmt.Println(creative.Artifact.Content)
			}
			fmt.Fprintf(os.Stderr, "Run %s complete. Outputs: %s\n", run.ID, outDir)
			if run.Cost.TotalAmount > 0 {
				fmt.Fprintf(os.Stderr, "Estimated cost: %.4f %s (%d tokens)\n",
					run.Cost.TotalAmount, run.Cost.Currency, run.Cost.TotalUsage.TotalTokens)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "pipeline manifest path (defaults to the built-in pipeline)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "outputs", "output directory")
	cmd.Flags().StringVar(&transcriptDir, "transcripts", "", "write run transcripts under this directory")
	cmd.Flags().IntVar(&maxRetries, "retries", 0, "override max attempts per provider")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 0, "override per-attempt timeout in milliseconds")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "run every stage against the offline mock provider")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log stage progress detail")

	return cmd
}

// consoleObserver reports pipeline progress on stderr.
type consoleObserver struct{}

func (consoleObserver) OnStageStart(stage string) {
	fmt.Fprintf(os.Stderr, "[%s] starting\n", stage)
}

func (consoleObserver) OnStageRetry(stage string, attempt int, err error) {
	fmt.Fprintf(os.Stderr, "[%s] attempt %d failed, retrying: %v\n", stage, attempt, err)
}

func (consoleObserver) OnStageComplete(stage string, result pipeline.StageResult, fraction float64) {
	marker := ""
	if result.FallbackUsed {
		marker = " (fallback)"
	}
	fmt.Fprintf(os.Stderr, "[%s] complete via %s/%s%s  %3.0f%%\n",
		stage, result.Provider, result.Model, marker, fraction*100)
}

func (consoleObserver) OnPipelineComplete(run pipeline.Run) {
	fmt.Fprintf(os.Stderr, "pipeline %s: %s\n", run.ID, run.Status)
}

// writeOutputs renders a completed run into files: the creative stage
// becomes blog_post.md and the code stage becomes a standalone example
// file named by its detected language.
func writeOutputs(dir string, run *pipeline.Run) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if creative := run.Stage("creative"); creative != nil && creative.Succeeded {
		path := filepath.Join(dir, "blog_post.md")
		if err := os.WriteFile(path, []byte(creative.Artifact.Content), 0644); err != nil {
			return err
		}
	}

	if code := run.Stage("code"); code != nil && code.Succeeded {
		raw := code.Artifact.Content
		snippet, lang, ok := codeblock.Extract(raw)
		if !ok {
			fmt.Fprintln(os.Stderr, "warning: code stage output contained no extractable code")
			snippet, lang = codeblock.Placeholder, ""
		}
		formatted := code.Artifact.NewVersion(codeblock.Format(snippet, lang))
		path := filepath.Join(dir, "code_example"+codeblock.FileExt(lang))
		if err := os.WriteFile(path, []byte(formatted.Content+"\n"), 0644); err != nil {
			return err
		}
	}

	if research := run.Stage("research"); research != nil && research.Succeeded {
		path := filepath.Join(dir, "research_notes.md")
		if err := os.WriteFile(path, []byte(research.Artifact.Content), 0644); err != nil {
			return err
		}
	}

	return nil
}

func stagesCmd() *cobra.Command {
	var pipelineFile string

	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Show the pipeline stages and their provider bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *pipeline.Pipeline
			var err error
			if pipelineFile != "" {
				p, err = pipeline.LoadManifest(pipelineFile)
				if err != nil {
					return err
				}
			} else {
				p = pipeline.Default()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tPROVIDER\tMODEL\tFALLBACK")

			for _, stage := range p.Stages {
				fallback := "-"
				if stage.Fallback != nil {
					fallback = stage.Fallback.Provider + "/" + stage.Fallback.Model
				} else if target := p.Fallback.Resolve(stage.Name); !target.IsZero() {
					fallback = target.Provider + "/" + target.Model
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					stage.Name, stage.Provider.Provider, stage.Provider.Model, fallback)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&pipelineFile, "file", "f", "", "pipeline manifest path")
	return cmd
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available providers, models, and aliases",
		Long: `Lists providers and their available models, with whether an API
	key is configured for each.

	Use --resolve to show model aliases and what they resolve to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if resolveFlag {
				return showAliases()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")

			providers := aliases.ListProviders()
			if len(providers) == 0 {
				providers = []string{"anthropic", "deepseek", "google", "mock", "openai"}
			}

			for _, provider := range providers {
				models := strings.Join(aliases.GetProviderModels(provider), ", ")
				status := "no key"
				if cfg.HasProvider(provider) || provider == "mock" {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, models, status)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	return cmd
}

func showAliases() error {
	if aliases == nil {
		fmt.Println("No model aliases configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")

	aliasMap := aliases.ListAliases()
	var names []string
	for name := range aliasMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, alias := range names {
		model := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
	}

	return w.Flush()
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pipeline.yaml]",
		Short: "Validate a pipeline manifest",
		Long:  "Validates pipeline YAML without executing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.LoadManifest(args[0])
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			if aliases == nil {
				aliases, _ = config.LoadAliasesWithFallback()
			}
			for _, stage := range p.Stages {
				if err := aliases.ValidateTarget(stage.Provider); err != nil {
					return fmt.Errorf("stage %s: %w", stage.Name, err)
				}
				if stage.Fallback != nil {
					if err := aliases.ValidateTarget(*stage.Fallback); err != nil {
						return fmt.Errorf("stage %s fallback: %w", stage.Name, err)
					}
				}
			}

			fmt.Println("Pipeline manifest is valid.")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	aliases, _ = config.LoadAliasesWithFallback()

	return cfg, nil
}

func createProviders(cfg *config.Config) (map[string]adapter.Adapter, error) {
	providers := make(map[string]adapter.Adapter)

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic provider: %w", err)
		}
		providers["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		providers["openai"] = a
	}

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google provider: %w", err)
		}
		providers["google"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek provider: %w", err)
		}
		providers["deepseek"] = a
	}

	providers["mock"] = adapter.NewMockAdapter()

	return providers, nil
}
