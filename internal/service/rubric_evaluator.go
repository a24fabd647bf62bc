package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-evaluator-api/internal/models"
	"github.com/noah-isme/essay-evaluator-api/internal/observability"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
)

const rubricSystemPrompt = `You are an essay evaluator. Provide feedback and scoring in JSON format.
Your response should be a valid JSON object with two fields:
1. feedback: A detailed feedback string
2. score: An integer score from 0 to 10

Example response format:
{
    "feedback": "Your detailed feedback here...",
    "score": 8
}`

var rubricSubjects = map[models.Dimension]string{
	models.DimensionLanguage: "language quality",
	models.DimensionAnalysis: "depth of analysis",
	models.DimensionClarity:  "clarity of thought",
}

// RubricEvaluator scores an essay on a single dimension.
type RubricEvaluator interface {
	Evaluate(ctx context.Context, dimension models.Dimension, essay string, credential string) (models.RubricResult, error)
}

type rubricEvaluator struct {
	completer ai.Completer
	logger    zerolog.Logger
}

// NewRubricEvaluator builds an evaluator that prompts the completer once per call.
func NewRubricEvaluator(completer ai.Completer, logger zerolog.Logger) RubricEvaluator {
	return &rubricEvaluator{
		completer: completer,
		logger:    logger.With().Str("component", "rubric_evaluator").Logger(),
	}
}

func (e *rubricEvaluator) Evaluate(ctx context.Context, dimension models.Dimension, essay string, credential string) (models.RubricResult, error) {
	if !dimension.Valid() {
		return models.RubricResult{}, fmt.Errorf("unknown rubric dimension %q", dimension)
	}

	raw, err := e.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: rubricSystemPrompt,
		UserPrompt:   rubricPrompt(dimension, essay),
		Credential:   credential,
	})
	if err != nil {
		return models.RubricResult{}, fmt.Errorf("evaluate %s: %w", dimension, err)
	}

	parsed := ai.ParseRubric(raw)
	if parsed.Kind == ai.ParseFallback {
		observability.ParseFallbacks().WithLabelValues(string(dimension)).Inc()
		e.logger.Warn().
			Str("dimension", string(dimension)).
			Int("response_chars", len(raw)).
			Msg("rubric response was not valid JSON, using fallback score")
	}

	return models.RubricResult{
		Dimension: dimension,
		Feedback:  parsed.Feedback,
		Score:     parsed.Score,
		Fallback:  parsed.Kind == ai.ParseFallback,
	}, nil
}

func rubricPrompt(dimension models.Dimension, essay string) string {
	return fmt.Sprintf("Evaluate the %s of the following essay and provide a feedback and assign a score out of 10 \n %s", rubricSubjects[dimension], essay)
}
