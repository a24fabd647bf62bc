package dto

import "github.com/noah-isme/essay-evaluator-api/internal/models"

// EvaluationRequest is the JSON payload accepted by the evaluation endpoints
// and by the websocket stream.
type EvaluationRequest struct {
	EssayText string `json:"essay_text" validate:"required"`
	// APIKey overrides the server side credential for this run only.
	APIKey string `json:"api_key" validate:"omitempty,max=512"`
}

// ReportQuery selects the downloadable report format.
type ReportQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=text html"`
}

// ReportRequest carries a result the client already received so the download
// renders that evaluation instead of running a new one.
type ReportRequest struct {
	LanguageFeedback string  `json:"language_feedback" validate:"required"`
	AnalysisFeedback string  `json:"analysis_feedback" validate:"required"`
	ClarityFeedback  string  `json:"clarity_feedback" validate:"required"`
	OverallFeedback  string  `json:"overall_feedback" validate:"required"`
	IndividualScores []int   `json:"individual_scores" validate:"len=3,dive,min=0,max=10"`
	AvgScore         float64 `json:"avg_score" validate:"min=0,max=10"`
}

// ToModel converts the payload into the result the report renders.
func (r ReportRequest) ToModel() models.EvaluationResult {
	return models.EvaluationResult{
		LanguageFeedback: r.LanguageFeedback,
		AnalysisFeedback: r.AnalysisFeedback,
		ClarityFeedback:  r.ClarityFeedback,
		OverallFeedback:  r.OverallFeedback,
		IndividualScores: r.IndividualScores,
		AvgScore:         r.AvgScore,
	}
}

// RubricScore pairs a rubric label with its score for display.
type RubricScore struct {
	Dimension string `json:"dimension"`
	Label     string `json:"label"`
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
}

// EvaluationResponse is returned after a completed run.
type EvaluationResponse struct {
	LanguageFeedback string        `json:"language_feedback"`
	AnalysisFeedback string        `json:"analysis_feedback"`
	ClarityFeedback  string        `json:"clarity_feedback"`
	OverallFeedback  string        `json:"overall_feedback"`
	IndividualScores []int         `json:"individual_scores"`
	AvgScore         float64       `json:"avg_score"`
	Rubrics          []RubricScore `json:"rubrics"`
}

// NewEvaluationResponse maps a completed run to its API shape.
func NewEvaluationResponse(result models.EvaluationResult) EvaluationResponse {
	resp := EvaluationResponse{
		LanguageFeedback: result.LanguageFeedback,
		AnalysisFeedback: result.AnalysisFeedback,
		ClarityFeedback:  result.ClarityFeedback,
		OverallFeedback:  result.OverallFeedback,
		IndividualScores: result.IndividualScores,
		AvgScore:         result.AvgScore,
		Rubrics:          make([]RubricScore, 0, len(models.Dimensions)),
	}
	for i, dimension := range models.Dimensions {
		if i >= len(result.IndividualScores) {
			break
		}
		resp.Rubrics = append(resp.Rubrics, RubricScore{
			Dimension: string(dimension),
			Label:     dimension.Label(),
			Score:     result.IndividualScores[i],
			Feedback:  result.Feedback(dimension),
		})
	}
	return resp
}
