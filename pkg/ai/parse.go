package ai

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FallbackScore is substituted whenever a rubric response cannot be parsed.
const FallbackScore = 5

// ParseKind tags how a rubric response was interpreted.
type ParseKind int

const (
	// ParseStructured means the response was a valid {feedback, score} object.
	ParseStructured ParseKind = iota
	// ParseFallback means the raw text was used as feedback with FallbackScore.
	ParseFallback
)

func (k ParseKind) String() string {
	if k == ParseStructured {
		return "structured"
	}
	return "fallback"
}

// ParsedRubric is the outcome of ParseRubric. Score only reflects the model's
// judgement when Kind is ParseStructured.
type ParsedRubric struct {
	Kind     ParseKind
	Feedback string
	Score    int
}

// RubricResponse is the JSON object rubric prompts ask the model to produce.
type RubricResponse struct {
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

const rubricSchemaURL = "mem://essay/rubric-response.json"

const rubricSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["feedback", "score"],
  "properties": {
    "feedback": {"type": "string", "minLength": 1, "pattern": "\\S"},
    "score": {"type": "integer", "minimum": 0, "maximum": 10}
  }
}`

var rubricValidator = mustCompileRubricSchema()

func mustCompileRubricSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(rubricSchemaURL, strings.NewReader(rubricSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(rubricSchemaURL)
}

// ParseRubric interprets raw model output as a rubric response. It never fails:
// anything that is not exactly {feedback: string, score: 0..10} becomes a fallback
// carrying the raw text.
func ParseRubric(raw string) ParsedRubric {
	fallback := ParsedRubric{Kind: ParseFallback, Feedback: raw, Score: FallbackScore}

	payload := stripCodeFence(raw)
	if payload == "" {
		return fallback
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return fallback
	}
	if err := rubricValidator.Validate(doc); err != nil {
		return fallback
	}

	// The schema already guarantees a whole number, possibly written as 7.0.
	var data struct {
		Feedback string  `json:"feedback"`
		Score    float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return fallback
	}

	return ParsedRubric{Kind: ParseStructured, Feedback: data.Feedback, Score: int(data.Score)}
}

// stripCodeFence removes a single surrounding markdown fence such as ```json ... ```.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	if newline := strings.IndexByte(inner, '\n'); newline >= 0 {
		tag := strings.TrimSpace(inner[:newline])
		if tag == "" || !strings.ContainsAny(tag, "{}") {
			inner = inner[newline+1:]
		}
	}
	return strings.TrimSpace(inner)
}
