package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/handler"
)

func TestHealthCheckReportsCredentialFallback(t *testing.T) {
	cfg := config.Config{AppName: "Essay Evaluator", AppEnv: "test", LLM: config.LLMConfig{Model: "mistralai/mistral-7b-instruct:free"}}

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, "ok", payload.Data.Status)
	require.Equal(t, "mistralai/mistral-7b-instruct:free", payload.Data.Model)
	require.False(t, payload.Data.CredentialConfigured)

	cfg.LLM.APIKey = "sk-server"
	app = fiber.New()
	app.Get("/health", handler.HealthCheck(cfg))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	payload.Data = handler.HealthResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Data.CredentialConfigured)
}
