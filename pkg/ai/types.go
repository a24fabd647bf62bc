package ai

import (
	"context"
	"time"
)

// Defaults for the OpenRouter hosted model used by the evaluator.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultModel       = "mistralai/mistral-7b-instruct:free"
	DefaultTemperature = 0.7
)

// ModelConfig is fixed for the life of the process; it is never varied per call.
type ModelConfig struct {
	BaseURL        string
	Model          string
	Temperature    float32
	MaxTokens      int
	RequestTimeout time.Duration
	// MaxRetries is the number of extra attempts after a transport failure. Zero disables retries.
	MaxRetries int
}

// CompletionRequest carries the two prompts and the per-call credential.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Credential   string
}

// Completer issues one chat completion and returns the raw text of the first choice.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
