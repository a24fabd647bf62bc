package service

import (
	"fmt"
	"sync"

	"github.com/noah-isme/essay-evaluator-api/internal/models"
)

// aggregationState collects rubric results for one run. Every dimension owns
// exactly one slot and scores are read back in dimension order, so the final
// mean does not depend on which evaluator finished first.
type aggregationState struct {
	essay      string
	credential string

	mu    sync.Mutex
	slots map[models.Dimension]*models.RubricResult

	overallFeedback string
	averageScore    float64
	synthesized     bool
}

func newAggregationState(req models.EvaluationRequest) *aggregationState {
	return &aggregationState{
		essay:      req.EssayText,
		credential: req.Credential,
		slots:      make(map[models.Dimension]*models.RubricResult, len(models.Dimensions)),
	}
}

// commit records a rubric result. Each dimension may be written once.
func (s *aggregationState) commit(result models.RubricResult) error {
	if !result.Dimension.Valid() {
		return fmt.Errorf("commit: unknown dimension %q", result.Dimension)
	}
	if result.Score < 0 || result.Score > models.MaxRubricScore {
		return fmt.Errorf("commit %s: score %d out of range", result.Dimension, result.Score)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.slots[result.Dimension]; exists {
		return fmt.Errorf("commit %s: dimension already recorded", result.Dimension)
	}
	stored := result
	s.slots[result.Dimension] = &stored
	return nil
}

// joined reports whether every dimension has committed.
func (s *aggregationState) joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots) == len(models.Dimensions)
}

// synthesisInput reads the rubric fields. It must only be called after joined() is true.
func (s *aggregationState) synthesisInput() (SynthesisInput, error) {
	if !s.joined() {
		return SynthesisInput{}, ErrIncompleteAggregation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SynthesisInput{
		LanguageFeedback: s.slots[models.DimensionLanguage].Feedback,
		AnalysisFeedback: s.slots[models.DimensionAnalysis].Feedback,
		ClarityFeedback:  s.slots[models.DimensionClarity].Feedback,
		Scores:           s.scoresLocked(),
	}, nil
}

func (s *aggregationState) scoresLocked() []int {
	scores := make([]int, 0, len(models.Dimensions))
	for _, dimension := range models.Dimensions {
		if slot, ok := s.slots[dimension]; ok {
			scores = append(scores, slot.Score)
		}
	}
	return scores
}

func (s *aggregationState) applySynthesis(out SynthesisOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synthesized {
		return fmt.Errorf("synthesis already applied")
	}
	s.overallFeedback = out.OverallFeedback
	s.averageScore = out.AverageScore
	s.synthesized = true
	return nil
}

// snapshot freezes the state into the public result.
func (s *aggregationState) snapshot() (models.EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.synthesized || len(s.slots) != len(models.Dimensions) {
		return models.EvaluationResult{}, ErrIncompleteAggregation
	}

	return models.EvaluationResult{
		LanguageFeedback: s.slots[models.DimensionLanguage].Feedback,
		AnalysisFeedback: s.slots[models.DimensionAnalysis].Feedback,
		ClarityFeedback:  s.slots[models.DimensionClarity].Feedback,
		OverallFeedback:  s.overallFeedback,
		IndividualScores: s.scoresLocked(),
		AvgScore:         s.averageScore,
	}, nil
}
