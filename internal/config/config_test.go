package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ESSAY_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	require.Equal(t, "mistralai/mistral-7b-instruct:free", cfg.LLM.Model)
	require.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	require.Equal(t, 60*time.Second, cfg.LLM.RequestTimeout)
	require.Zero(t, cfg.LLM.MaxRetries)
	require.Equal(t, 120*time.Second, cfg.EvaluationTimeout)
	require.Equal(t, "essay.evaluation.completed", cfg.NATSSubject)
	require.Equal(t, 10, cfg.OCR.MaxUploadMB)
	require.Empty(t, cfg.LLM.APIKey)
}

func TestLoadFallsBackToProviderKey(t *testing.T) {
	t.Setenv("ESSAY_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-fallback")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sk-or-fallback", cfg.LLM.APIKey)

	t.Setenv("ESSAY_LLM_API_KEY", "sk-essay")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "sk-essay", cfg.LLM.APIKey)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ESSAY_APP_PORT", ":9090")
	t.Setenv("ESSAY_LLM_BASE_URL", "http://localhost:11434/v1/")
	t.Setenv("ESSAY_LLM_TEMPERATURE", "0.2")
	t.Setenv("ESSAY_LLM_MAX_RETRIES", "2")
	t.Setenv("ESSAY_EVALUATION_TIMEOUT", "0")
	t.Setenv("ESSAY_OCR_DOCKER_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	require.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	require.Equal(t, 2, cfg.LLM.MaxRetries)
	require.Zero(t, cfg.EvaluationTimeout)
	require.True(t, cfg.OCR.DockerEnabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ESSAY_LLM_REQUEST_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ESSAY_LLM_REQUEST_TIMEOUT", "30s")
	t.Setenv("ESSAY_LLM_TEMPERATURE", "3")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("ESSAY_LLM_TEMPERATURE", "0.7")
	t.Setenv("ESSAY_LLM_MAX_RETRIES", "-1")
	_, err = Load()
	require.Error(t, err)
}
