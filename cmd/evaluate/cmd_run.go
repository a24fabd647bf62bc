package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/dto"
	"github.com/noah-isme/essay-evaluator-api/internal/models"
	"github.com/noah-isme/essay-evaluator-api/internal/service"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
)

var runFlags struct {
	apiKey   string
	baseURL  string
	model    string
	format   string
	output   string
	progress bool
	verbose  bool
}

var runCmd = &cobra.Command{
	Use:   "run [essay-file]",
	Short: "Evaluate an essay read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvaluate,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.apiKey, "api-key", "", "LLM API key (default: ESSAY_LLM_API_KEY or OPENROUTER_API_KEY)")
	f.StringVar(&runFlags.baseURL, "base-url", "", "OpenAI compatible endpoint (default from ESSAY_LLM_BASE_URL)")
	f.StringVar(&runFlags.model, "model", "", "model name (default from ESSAY_LLM_MODEL)")
	f.StringVar(&runFlags.format, "format", "text", "report format: text, html or json")
	f.StringVarP(&runFlags.output, "output", "o", "", "write the report to this file instead of stdout")
	f.BoolVar(&runFlags.progress, "progress", false, "print pipeline state transitions to stderr")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false, "log pipeline details to stderr")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if runFlags.baseURL != "" {
		cfg.LLM.BaseURL = strings.TrimRight(runFlags.baseURL, "/")
	}
	if runFlags.model != "" {
		cfg.LLM.Model = runFlags.model
	}

	essay, err := readEssay(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	logger := zerolog.Nop()
	if runFlags.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}

	completer := ai.NewOpenAICompleter(ai.OpenAIConfig{
		Model: ai.ModelConfig{
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Temperature:    float32(cfg.LLM.Temperature),
			MaxTokens:      cfg.LLM.MaxTokens,
			RequestTimeout: cfg.LLM.RequestTimeout,
			MaxRetries:     cfg.LLM.MaxRetries,
		},
		Logger: logger,
	})
	evaluations := service.NewEssayEvaluationPipeline(completer, nil, service.EvaluationConfig{
		DefaultCredential: cfg.LLM.APIKey,
		Timeout:           cfg.EvaluationTimeout,
	}, logger)

	var observers []service.Observer
	if runFlags.progress {
		stderr := cmd.ErrOrStderr()
		observers = append(observers, func(event service.PipelineEvent) {
			if event.Score != nil {
				fmt.Fprintf(stderr, "%-14s %s %d/10\n", event.State, event.Dimension.Label(), *event.Score)
				return
			}
			fmt.Fprintf(stderr, "%s\n", event.State)
		})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := evaluations.Evaluate(ctx, models.EvaluationRequest{EssayText: essay, Credential: runFlags.apiKey}, observers...)
	if err != nil {
		return describeFailure(err)
	}

	var body []byte
	switch strings.ToLower(runFlags.format) {
	case "json":
		body, err = json.MarshalIndent(dto.NewEvaluationResponse(result), "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		body = append(body, '\n')
	default:
		report, err := service.NewReportService().Render(result, service.ReportFormat(runFlags.format))
		if err != nil {
			return err
		}
		body = report.Body
	}

	if runFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	if err := os.WriteFile(runFlags.output, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", runFlags.output)
	return nil
}

func readEssay(stdin io.Reader, args []string) (string, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read essay: %w", err)
	}
	essay := strings.TrimSpace(string(raw))
	if essay == "" {
		return "", errors.New("essay is empty")
	}
	return essay, nil
}

func describeFailure(err error) error {
	switch {
	case ai.IsMissingCredential(err):
		return errors.New("an API key is required: pass --api-key or set OPENROUTER_API_KEY")
	case ai.IsAuthentication(err):
		return fmt.Errorf("authentication failed, check your API key: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("evaluation timed out: %w", err)
	case ai.IsTransport(err):
		return fmt.Errorf("could not reach the LLM provider: %w", err)
	default:
		return err
	}
}
