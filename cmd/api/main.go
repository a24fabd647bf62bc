package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-evaluator-api/internal/config"
	"github.com/noah-isme/essay-evaluator-api/internal/handler"
	"github.com/noah-isme/essay-evaluator-api/internal/middleware"
	"github.com/noah-isme/essay-evaluator-api/internal/router"
	"github.com/noah-isme/essay-evaluator-api/internal/service"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
	dockerexec "github.com/noah-isme/essay-evaluator-api/pkg/docker"
	"github.com/noah-isme/essay-evaluator-api/pkg/ocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.LLM.APIKey == "" {
		logger.Warn().Msg("no server side LLM api key configured, clients must send their own")
	}

	completer := ai.NewOpenAICompleter(ai.OpenAIConfig{
		Model: ai.ModelConfig{
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Temperature:    float32(cfg.LLM.Temperature),
			MaxTokens:      cfg.LLM.MaxTokens,
			RequestTimeout: cfg.LLM.RequestTimeout,
			MaxRetries:     cfg.LLM.MaxRetries,
		},
		Logger: logger,
	})

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName), nats.MaxReconnects(-1))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, evaluation events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	evaluationService := service.NewEssayEvaluationPipeline(
		completer,
		service.NewNATSEvaluationPublisher(natsConn, cfg.NATSSubject, logger),
		service.EvaluationConfig{DefaultCredential: cfg.LLM.APIKey, Timeout: cfg.EvaluationTimeout},
		logger,
	)

	engines := []ocr.Engine{ocr.NewTesseractEngine(ocr.TesseractConfig{
		Path:    cfg.OCR.TesseractPath,
		Timeout: cfg.OCR.Timeout,
		Logger:  logger,
	})}
	if cfg.OCR.DockerEnabled {
		executor, err := dockerexec.NewDockerExecutor(dockerexec.Config{
			Host:    cfg.DockerHost,
			Timeout: cfg.OCR.Timeout,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("docker client unavailable, containerised OCR disabled")
		} else {
			defer executor.Close()
			engines = append(engines, ocr.NewDockerEngine(executor, ocr.DockerConfig{
				Image:      cfg.OCR.DockerImage,
				WorkingDir: executor.WorkingDir(),
				Timeout:    cfg.OCR.Timeout,
				Logger:     logger,
			}))
		}
	}
	ocrService := service.NewOCRService(engines, service.OCRConfig{
		MaxUploadMB: cfg.OCR.MaxUploadMB,
		MaxPages:    cfg.OCR.MaxPages,
	}, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, service.NewReportService(), validate, cfg.MaxEssayChars, logger)
	ocrHandler := handler.NewOCRHandler(ocrService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.OCR.MaxUploadMB*cfg.OCR.MaxPages + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		OCRHandler:        ocrHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		RateLimiter:       middleware.RateLimit("evaluations", cfg.RateLimitMax, cfg.RateLimitWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
