package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of LLM completion requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"model"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "essay",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of LLM completion failures by error kind",
	}, []string{"model", "kind"})
)

// OpenAIConfig defines configuration options for the OpenAI-compatible completer.
type OpenAIConfig struct {
	Model  ModelConfig
	Logger zerolog.Logger
	// HTTPClient overrides the client built from Model.RequestTimeout.
	HTTPClient *http.Client
}

// OpenAICompleter implements Completer against any OpenAI-compatible chat completion API.
type OpenAICompleter struct {
	cfg        ModelConfig
	httpClient *http.Client
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewOpenAICompleter builds a completer. The credential is supplied per call, so no key is needed here.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	model := cfg.Model
	if model.BaseURL == "" {
		model.BaseURL = DefaultBaseURL
	}
	if model.Model == "" {
		model.Model = DefaultModel
	}
	if model.MaxRetries < 0 {
		model.MaxRetries = 0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: model.RequestTimeout}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAICompleter{
		cfg:        model,
		httpClient: httpClient,
		tracer:     otel.Tracer("github.com/noah-isme/essay-evaluator-api/pkg/ai/openai"),
		logger:     logger.With().Str("component", "openai_completer").Logger(),
	}
}

// Model returns the fixed model configuration.
func (c *OpenAICompleter) Model() ModelConfig {
	return c.cfg
}

// Complete sends one chat completion request, retrying transport failures only when MaxRetries > 0.
func (c *OpenAICompleter) Complete(parent context.Context, req CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("max_retries", c.cfg.MaxRetries),
	))
	defer span.End()

	if strings.TrimSpace(req.Credential) == "" {
		err := &Error{Kind: KindAuthentication, Op: "openai complete", Err: errors.New("empty credential")}
		c.recordFailure(span, err)
		return "", err
	}

	var (
		content string
		err     error
	)
	if c.cfg.MaxRetries == 0 {
		content, err = c.completeOnce(ctx, req)
	} else {
		attempt := 0
		content, err = backoff.Retry(ctx, func() (string, error) {
			attempt++
			text, callErr := c.completeOnce(ctx, req)
			if callErr != nil && !IsTransport(callErr) {
				return "", backoff.Permanent(callErr)
			}
			if callErr != nil {
				c.logger.Warn().Err(callErr).Int("attempt", attempt).Msg("llm completion attempt failed")
			}
			return text, callErr
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(uint(c.cfg.MaxRetries+1)),
		)
		if err != nil && KindOf(err) == "" {
			err = &Error{Kind: KindTransport, Op: "openai complete", Err: err}
		}
	}
	if err != nil {
		c.recordFailure(span, err)
		return "", err
	}

	return content, nil
}

func (c *OpenAICompleter) completeOnce(ctx context.Context, req CompletionRequest) (string, error) {
	config := openai.DefaultConfig(req.Credential)
	config.BaseURL = c.cfg.BaseURL
	config.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(config)

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.UserPrompt,
			},
		},
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, request)
	completionDuration.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindTransport, Op: "openai complete", Err: errors.New("no choices returned")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAICompleter) recordFailure(span trace.Span, err error) {
	kind := KindOf(err)
	if kind == "" {
		kind = KindTransport
	}
	completionFailures.WithLabelValues(c.cfg.Model, string(kind)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// classifyError maps go-openai failures onto the structured error kinds.
func classifyError(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := KindTransport
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuthentication
	}

	return &Error{Kind: kind, Op: "openai complete", StatusCode: status, Err: fmt.Errorf("create chat completion: %w", err)}
}
