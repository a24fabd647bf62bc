package service

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/essay-evaluator-api/internal/models"
)

// ReportFormat selects the rendering of an evaluation report.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatHTML ReportFormat = "html"
)

// ErrUnsupportedReportFormat indicates the requested report format is unknown.
var ErrUnsupportedReportFormat = errors.New("unsupported report format")

// Report is a rendered, downloadable evaluation report.
type Report struct {
	FileName    string
	ContentType string
	Body        []byte
}

// ReportService renders evaluation results for download.
type ReportService interface {
	Render(result models.EvaluationResult, format ReportFormat) (Report, error)
}

type reportService struct {
	sanitizer *bluemonday.Policy
	html      *template.Template
}

// NewReportService constructs the report renderer.
func NewReportService() ReportService {
	return &reportService{
		sanitizer: bluemonday.UGCPolicy(),
		html:      template.Must(template.New("report").Parse(htmlReportTemplate)),
	}
}

func (s *reportService) Render(result models.EvaluationResult, format ReportFormat) (Report, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(string(format)))) {
	case ReportFormatText, "":
		return Report{
			FileName:    "upsc_essay_evaluation.txt",
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(FormatTextReport(result)),
		}, nil
	case ReportFormatHTML:
		body, err := s.renderHTML(result)
		if err != nil {
			return Report{}, err
		}
		return Report{
			FileName:    "upsc_essay_evaluation.html",
			ContentType: "text/html; charset=utf-8",
			Body:        body,
		}, nil
	default:
		return Report{}, ErrUnsupportedReportFormat
	}
}

// FormatTextReport renders the plain text report offered for download.
func FormatTextReport(result models.EvaluationResult) string {
	var b strings.Builder
	b.WriteString("UPSC Essay Evaluation Results\n")
	b.WriteString("============================\n\n")
	fmt.Fprintf(&b, "Overall Score: %.1f/10\n\n", result.AvgScore)

	b.WriteString("Individual Scores:\n")
	for i, dimension := range models.Dimensions {
		fmt.Fprintf(&b, "- %s: %s/10\n", dimension.Label(), scoreAt(result.IndividualScores, i))
	}

	for _, dimension := range models.Dimensions {
		fmt.Fprintf(&b, "\n%s Feedback:\n%s\n", dimension.Label(), result.Feedback(dimension))
	}

	fmt.Fprintf(&b, "\nOverall Summary:\n%s\n", result.OverallFeedback)
	return b.String()
}

type htmlSection struct {
	Label    string
	Score    string
	Feedback template.HTML
}

type htmlReport struct {
	AvgScore string
	Sections []htmlSection
	Overall  template.HTML
}

func (s *reportService) renderHTML(result models.EvaluationResult) ([]byte, error) {
	view := htmlReport{
		AvgScore: fmt.Sprintf("%.1f", result.AvgScore),
		Overall:  s.safeFeedback(result.OverallFeedback),
	}
	for i, dimension := range models.Dimensions {
		view.Sections = append(view.Sections, htmlSection{
			Label:    dimension.Label(),
			Score:    scoreAt(result.IndividualScores, i),
			Feedback: s.safeFeedback(result.Feedback(dimension)),
		})
	}

	var buf bytes.Buffer
	if err := s.html.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}

// safeFeedback keeps harmless markup from the model and turns newlines into breaks.
func (s *reportService) safeFeedback(text string) template.HTML {
	clean := s.sanitizer.Sanitize(text)
	clean = strings.ReplaceAll(strings.TrimSpace(clean), "\n", "<br>\n")
	return template.HTML(clean)
}

func scoreAt(scores []int, index int) string {
	if index < 0 || index >= len(scores) {
		return "-"
	}
	return fmt.Sprintf("%d", scores[index])
}

const htmlReportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>UPSC Essay Evaluation Results</title>
</head>
<body>
<h1>UPSC Essay Evaluation Results</h1>
<section class="overall-score"><h2>Overall Score</h2><p>{{.AvgScore}}/10</p></section>
<section class="scores">
<h2>Individual Scores</h2>
<ul>
{{- range .Sections}}
<li>{{.Label}}: {{.Score}}/10</li>
{{- end}}
</ul>
</section>
{{- range .Sections}}
<section class="feedback"><h3>{{.Label}} Feedback</h3><div>{{.Feedback}}</div></section>
{{- end}}
<section class="summary"><h2>Overall Summary</h2><div>{{.Overall}}</div></section>
</body>
</html>
`
