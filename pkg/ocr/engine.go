// Package ocr extracts essay text from handwriting images with tesseract,
// either from a local binary or from a container image.
package ocr

import (
	"context"
	"errors"
	"strings"
)

// ErrEngineUnavailable is returned when an engine cannot run on this host.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// DefaultMinConfidence drops words tesseract is less than 20% sure about; handwriting needs a low bar.
const DefaultMinConfidence = 20.0

// DefaultPageSegModes are tried in order and the best result kept.
var DefaultPageSegModes = []string{"6", "4", "3"}

// Engine extracts text from a single image.
type Engine interface {
	Name() string
	Available(ctx context.Context) bool
	Extract(ctx context.Context, image []byte) (string, error)
}

// Candidate is one extraction attempt.
type Candidate struct {
	Source string
	Text   string
}

// RankCandidates returns the candidate with the longest cleaned text. Ties keep
// the earlier candidate. ok is false when every candidate is empty.
func RankCandidates(candidates []Candidate) (best Candidate, ok bool) {
	bestLen := 0
	for _, candidate := range candidates {
		cleaned := CleanText(candidate.Text)
		if len(cleaned) > bestLen {
			best = Candidate{Source: candidate.Source, Text: cleaned}
			bestLen = len(cleaned)
		}
	}
	return best, bestLen > 0
}

// CleanText collapses runs of whitespace within lines and drops blank lines.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed != "" {
			cleaned = append(cleaned, collapsed)
		}
	}
	return strings.Join(cleaned, "\n")
}
