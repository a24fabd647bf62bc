package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/handler"
	"github.com/noah-isme/essay-evaluator-api/internal/middleware"
	"github.com/noah-isme/essay-evaluator-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	OCRHandler        *handler.OCRHandler
	JWTMiddleware     fiber.Handler
	// RateLimiter guards the endpoints that spend LLM credits; nil disables it.
	RateLimiter fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware, rateLimiter)
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.OCRHandler != nil {
		ocrGroup := api.Group("/ocr", jwtMiddleware)
		deps.OCRHandler.Register(ocrGroup)
	}
}
