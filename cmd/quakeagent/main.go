// Command quakeagent answers natural-language earthquake questions over
// the USGS event catalog. It reads one question from the command line, or
// runs an interactive prompt loop when invoked without arguments.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/seismiq/quakeagent/infrastructure/catalog"
	"github.com/seismiq/quakeagent/infrastructure/llm"
	"github.com/seismiq/quakeagent/infrastructure/middleware"
	"github.com/seismiq/quakeagent/internal/domain"
	"github.com/seismiq/quakeagent/internal/pipeline"
	"github.com/seismiq/quakeagent/internal/ports"
)

// envSettings is the process environment configuration. Pipeline tuning
// lives in the YAML config; this covers credentials and endpoints.
type envSettings struct {
	Provider       string  `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey         string  `envconfig:"LLM_API_KEY" required:"true"`
	Model          string  `envconfig:"LLM_MODEL"`
	BaseURL        string  `envconfig:"LLM_BASE_URL"`
	RateLimit      float64 `envconfig:"LLM_RATE_LIMIT" default:"5"`
	RateBurst      int     `envconfig:"LLM_RATE_BURST" default:"10"`
	RequestTimeout int     `envconfig:"LLM_TIMEOUT_SECONDS" default:"60"`
	CatalogBaseURL string  `envconfig:"CATALOG_BASE_URL"`
	ConfigPath     string  `envconfig:"CONFIG_PATH"`
	Debug          bool    `envconfig:"DEBUG"`
}

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var settings envSettings
	if err := envconfig.Process("", &settings); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(settings.Debug)

	cfg := pipeline.DefaultConfig()
	if settings.ConfigPath != "" {
		loaded, err := pipeline.LoadConfig(settings.ConfigPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", settings.ConfigPath).Msg("failed to load config")
		}
		cfg = loaded
	}

	metrics := middleware.NewPrometheusMetrics()

	completion, err := llm.NewClient(settings.Provider, llm.ClientConfig{
		APIKey:  settings.APIKey,
		Model:   settings.Model,
		BaseURL: settings.BaseURL,
		Timeout: time.Duration(settings.RequestTimeout) * time.Second,
		Middleware: []llm.Middleware{
			llm.TracingMiddleware(),
			llm.MetricsMiddleware(metrics),
			llm.RateLimitMiddleware(rate.Limit(settings.RateLimit), settings.RateBurst),
			llm.TimeoutMiddleware(time.Duration(settings.RequestTimeout) * time.Second),
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Str("provider", settings.Provider).Msg("failed to create completion client")
	}

	var catalogOpts []catalog.Option
	if settings.CatalogBaseURL != "" {
		catalogOpts = append(catalogOpts, catalog.WithBaseURL(settings.CatalogBaseURL))
	}
	catalogClient := catalog.NewClient(logger, catalogOpts...)

	orchestrator := newOrchestrator(completion, catalogClient, cfg, logger, metrics)

	if args := os.Args[1:]; len(args) > 0 {
		runTurn(orchestrator, strings.Join(args, " "), logger)
		return
	}

	runInteractive(orchestrator, logger)
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newOrchestrator(
	completion ports.CompletionClient,
	catalogClient ports.CatalogSource,
	cfg pipeline.Config,
	logger zerolog.Logger,
	metrics ports.MetricsCollector,
) *pipeline.Orchestrator {
	v := pipeline.NewValidator()
	return pipeline.NewOrchestrator(
		pipeline.NewSupervisor(completion, v, logger, cfg.Temperature),
		pipeline.NewNormaliser(completion, v, cfg.Defaults, logger, cfg.Temperature, nil),
		pipeline.NewExecutor(catalogClient, cfg.Defaults, logger, nil),
		pipeline.NewSummariser(completion, v, logger, cfg.Temperature, nil),
		pipeline.NewEvaluator(completion, v, cfg.Evaluation, logger, cfg.Temperature),
		cfg,
		logger,
		metrics,
	)
}

func runTurn(orchestrator *pipeline.Orchestrator, question string, logger zerolog.Logger) {
	state := domain.NewConversationState(question)
	if err := orchestrator.Run(context.Background(), state); err != nil {
		logger.Fatal().Err(err).Msg("pipeline run failed")
	}
	printAnswer(state)
}

func runInteractive(orchestrator *pipeline.Orchestrator, logger zerolog.Logger) {
	fmt.Println("Earthquake catalog agent. Ask a question, or type 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" {
			return
		}

		state := domain.NewConversationState(question)
		if err := orchestrator.Run(context.Background(), state); err != nil {
			logger.Error().Err(err).Msg("pipeline run failed")
			continue
		}
		printAnswer(state)
	}
}

// printAnswer writes the final user-facing message. For grounded answers
// the envelope carries provenance worth showing.
func printAnswer(state *domain.ConversationState) {
	if enriched := state.EnrichedResponse; enriched != nil {
		fmt.Printf("\n## %s\n\n%s\n", enriched.Title, enriched.AnswerText)
		if len(enriched.Assumptions) > 0 {
			fmt.Println("\nAssumptions applied:")
			for _, a := range enriched.Assumptions {
				fmt.Printf("  - %s\n", a)
			}
		}
		for _, call := range enriched.APICalls {
			fmt.Printf("\nSource: %s (retrieved %s UTC)\n", call.URL, call.RetrievedAtUTC)
		}
		return
	}

	// No envelope means the turn ended early: a direct answer, a glossary
	// reply, or a failure message. The last message has it.
	if len(state.Messages) > 0 {
		fmt.Println("\n" + state.Messages[len(state.Messages)-1].Content)
	}
}
