package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/essay-evaluator-api/internal/models"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
)

// ErrIncompleteAggregation indicates synthesis was asked to run before every rubric committed.
var ErrIncompleteAggregation = errors.New("synthesis requires all three rubric results")

const synthesisSystemPrompt = `You are an essay evaluator. Create a concise overall summary based on the individual feedback provided.
Focus on highlighting the key strengths and areas for improvement.`

// SynthesisInput is the joined view of the three rubric results.
type SynthesisInput struct {
	LanguageFeedback string
	AnalysisFeedback string
	ClarityFeedback  string
	Scores           []int
}

// SynthesisOutput is what the synthesis step writes back.
type SynthesisOutput struct {
	OverallFeedback string
	AverageScore    float64
}

// Synthesizer composes the rubric feedback into a single narrative.
type Synthesizer interface {
	Synthesize(ctx context.Context, input SynthesisInput, credential string) (SynthesisOutput, error)
}

type synthesizer struct {
	completer ai.Completer
}

// NewSynthesizer builds the final synthesis step.
func NewSynthesizer(completer ai.Completer) Synthesizer {
	return &synthesizer{completer: completer}
}

func (s *synthesizer) Synthesize(ctx context.Context, input SynthesisInput, credential string) (SynthesisOutput, error) {
	if len(input.Scores) != len(models.Dimensions) {
		return SynthesisOutput{}, ErrIncompleteAggregation
	}

	overall, err := s.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   synthesisPrompt(input),
		Credential:   credential,
	})
	if err != nil {
		return SynthesisOutput{}, fmt.Errorf("synthesize: %w", err)
	}

	return SynthesisOutput{
		OverallFeedback: overall,
		AverageScore:    averageScore(input.Scores),
	}, nil
}

func synthesisPrompt(input SynthesisInput) string {
	return fmt.Sprintf(`Based on the following detailed feedback, create a concise summary:

Language Quality: %s
Depth of Analysis: %s
Clarity of Thought: %s

Keep the summary focused on the main points and provide actionable suggestions.`,
		input.LanguageFeedback, input.AnalysisFeedback, input.ClarityFeedback)
}

func averageScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, score := range scores {
		sum += score
	}
	return float64(sum) / float64(len(scores))
}
