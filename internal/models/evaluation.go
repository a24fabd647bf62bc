package models

// Dimension identifies one rubric axis an essay is scored on.
type Dimension string

const (
	DimensionLanguage Dimension = "language"
	DimensionAnalysis Dimension = "analysis"
	DimensionClarity  Dimension = "clarity"
)

// Dimensions lists every rubric dimension in report order.
var Dimensions = []Dimension{DimensionLanguage, DimensionAnalysis, DimensionClarity}

// Label returns the human readable rubric name used in prompts and reports.
func (d Dimension) Label() string {
	switch d {
	case DimensionLanguage:
		return "Language Quality"
	case DimensionAnalysis:
		return "Depth of Analysis"
	case DimensionClarity:
		return "Clarity of Thought"
	default:
		return string(d)
	}
}

// Valid reports whether d is one of the three rubric dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionLanguage, DimensionAnalysis, DimensionClarity:
		return true
	}
	return false
}

// MaxRubricScore is the inclusive upper bound of every rubric score.
const MaxRubricScore = 10

// EvaluationRequest is the input of one evaluation run.
type EvaluationRequest struct {
	EssayText  string
	Credential string
}

// RubricResult is what a single rubric evaluator produces.
type RubricResult struct {
	Dimension Dimension
	Feedback  string
	Score     int
	// Fallback is set when the model output could not be parsed and Score is the default.
	Fallback bool
}

// EvaluationResult is the frozen outcome of a completed run.
type EvaluationResult struct {
	LanguageFeedback string  `json:"language_feedback"`
	AnalysisFeedback string  `json:"analysis_feedback"`
	ClarityFeedback  string  `json:"clarity_feedback"`
	OverallFeedback  string  `json:"overall_feedback"`
	IndividualScores []int   `json:"individual_scores"`
	AvgScore         float64 `json:"avg_score"`
}

// Feedback returns the feedback text recorded for a dimension.
func (r EvaluationResult) Feedback(d Dimension) string {
	switch d {
	case DimensionLanguage:
		return r.LanguageFeedback
	case DimensionAnalysis:
		return r.AnalysisFeedback
	case DimensionClarity:
		return r.ClarityFeedback
	default:
		return ""
	}
}

// PipelineState names a step of the evaluation state machine.
type PipelineState string

const (
	StateSeeded       PipelineState = "seeded"
	StateLanguageDone PipelineState = "language_done"
	StateAnalysisDone PipelineState = "analysis_done"
	StateClarityDone  PipelineState = "clarity_done"
	StateJoined       PipelineState = "joined"
	StateSynthesized  PipelineState = "synthesized"
	StateComplete     PipelineState = "complete"
	StateFailed       PipelineState = "failed"
)

// DoneState returns the completion marker for a dimension.
func DoneState(d Dimension) PipelineState {
	switch d {
	case DimensionLanguage:
		return StateLanguageDone
	case DimensionAnalysis:
		return StateAnalysisDone
	case DimensionClarity:
		return StateClarityDone
	default:
		return StateFailed
	}
}
