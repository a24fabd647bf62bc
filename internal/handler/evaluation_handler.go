package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/essay-evaluator-api/internal/dto"
	"github.com/noah-isme/essay-evaluator-api/internal/middleware"
	"github.com/noah-isme/essay-evaluator-api/internal/models"
	"github.com/noah-isme/essay-evaluator-api/internal/service"
	"github.com/noah-isme/essay-evaluator-api/internal/utils"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
)

var (
	errEssayEmpty   = errors.New("essay text is empty")
	errEssayTooLong = errors.New("essay text is too long")

	errScoresInconsistent = errors.New("avg_score is not the mean of individual_scores")
)

// EvaluationHandler exposes the evaluation pipeline over HTTP and websocket.
type EvaluationHandler struct {
	service       service.EssayEvaluationService
	reports       service.ReportService
	validator     *validator.Validate
	maxEssayChars int
	logger        zerolog.Logger
}

// NewEvaluationHandler creates an evaluation handler. maxEssayChars <= 0 disables the length check.
func NewEvaluationHandler(evaluations service.EssayEvaluationService, reports service.ReportService, validate *validator.Validate, maxEssayChars int, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:       evaluations,
		reports:       reports,
		validator:     validate,
		maxEssayChars: maxEssayChars,
		logger:        logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register binds evaluation routes under the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", middleware.ContextWithCorrelation(c.UserContext(), middleware.GetCorrelationID(c)))
			c.Locals("header_credential", strings.TrimSpace(c.Get(middleware.CredentialHeader)))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.stream))
	router.Post("", h.evaluate)
	router.Post("/report", h.report)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return h.handleError(c, err)
	}

	result, err := h.service.Evaluate(c.UserContext(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "essay evaluated", dto.NewEvaluationResponse(result))
}

// report renders a result produced by an earlier run; it never calls the LLM.
func (h *EvaluationHandler) report(c *fiber.Ctx) error {
	var query dto.ReportQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validator.Struct(query); err != nil {
		return h.handleError(c, err)
	}

	var payload dto.ReportRequest
	if err := c.BodyParser(&payload); err != nil {
		return h.handleError(c, fiber.NewError(fiber.StatusBadRequest, "invalid payload"))
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}
	result := payload.ToModel()
	if math.Abs(result.AvgScore-meanScore(result.IndividualScores)) > avgScoreTolerance {
		return h.handleError(c, errScoresInconsistent)
	}

	report, err := h.reports.Render(result, service.ReportFormat(query.Format))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, report.FileName))
	return c.Status(fiber.StatusOK).Send(report.Body)
}

// avgScoreTolerance accepts averages rounded to one decimal by clients.
const avgScoreTolerance = 0.05

func meanScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, score := range scores {
		sum += score
	}
	return float64(sum) / float64(len(scores))
}

func (h *EvaluationHandler) parseRequest(c *fiber.Ctx) (models.EvaluationRequest, error) {
	var payload dto.EvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return models.EvaluationRequest{}, fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if payload.APIKey == "" {
		payload.APIKey = strings.TrimSpace(c.Get(middleware.CredentialHeader))
	}
	return h.toModel(payload)
}

func (h *EvaluationHandler) toModel(payload dto.EvaluationRequest) (models.EvaluationRequest, error) {
	if err := h.validator.Struct(payload); err != nil {
		return models.EvaluationRequest{}, err
	}
	essay := strings.TrimSpace(payload.EssayText)
	if essay == "" {
		return models.EvaluationRequest{}, errEssayEmpty
	}
	if h.maxEssayChars > 0 && utf8.RuneCountInString(essay) > h.maxEssayChars {
		return models.EvaluationRequest{}, fmt.Errorf("%w: limit is %d characters", errEssayTooLong, h.maxEssayChars)
	}
	return models.EvaluationRequest{EssayText: essay, Credential: strings.TrimSpace(payload.APIKey)}, nil
}

// streamFailure is the last message of a failed websocket run.
type streamFailure struct {
	State models.PipelineState `json:"state"`
	Code  string               `json:"code"`
	Error string               `json:"error"`
}

// stream reads one evaluation request and answers with every state transition
// of the run, ending with either the complete or the failed state.
func (h *EvaluationHandler) stream(conn *websocket.Conn) {
	defer conn.Close()

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := h.logger.With().Str("correlation_id", middleware.CorrelationIDFromContext(baseCtx)).Logger()

	var payload dto.EvaluationRequest
	if err := conn.ReadJSON(&payload); err != nil {
		h.writeFailure(conn, fiber.NewError(fiber.StatusBadRequest, "invalid payload"))
		return
	}
	if payload.APIKey == "" {
		payload.APIKey, _ = conn.Locals("header_credential").(string)
	}

	req, err := h.toModel(payload)
	if err != nil {
		h.writeFailure(conn, err)
		return
	}

	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	forward := func(event service.PipelineEvent) {
		if event.State == models.StateFailed {
			return
		}
		if err := conn.WriteJSON(event); err != nil {
			logger.Debug().Err(err).Msg("websocket client went away, cancelling run")
			cancel()
		}
	}

	logger.Info().Msg("evaluation stream started")
	if _, err := h.service.Evaluate(ctx, req, forward); err != nil {
		h.writeFailure(conn, err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "evaluation complete"))
}

func (h *EvaluationHandler) writeFailure(conn *websocket.Conn, err error) {
	_, code, message := h.classify(err)
	_ = conn.WriteJSON(streamFailure{State: models.StateFailed, Code: code, Error: message})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, code))
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	status, code, message := h.classify(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Str("code", code).Msg("evaluation request failed")
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, status, code, "invalid payload", fieldErrors(validationErrors))
	}
	return utils.SendErrorCode(c, status, code, message)
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// classify maps pipeline failures to a status, a stable code and a message safe to show users.
func (h *EvaluationHandler) classify(err error) (int, string, string) {
	var (
		validationErrors validator.ValidationErrors
		fiberErr         *fiber.Error
	)
	switch {
	case errors.As(err, &validationErrors):
		return fiber.StatusBadRequest, "validation_failed", validationErrors.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, "invalid_request", fiberErr.Message
	case errors.Is(err, errEssayEmpty):
		return fiber.StatusBadRequest, "essay_empty", "please enter an essay to evaluate"
	case errors.Is(err, errEssayTooLong):
		return fiber.StatusRequestEntityTooLarge, "essay_too_long", err.Error()
	case errors.Is(err, errScoresInconsistent):
		return fiber.StatusBadRequest, "inconsistent_scores", err.Error()
	case errors.Is(err, service.ErrUnsupportedReportFormat):
		return fiber.StatusBadRequest, "unsupported_format", err.Error()
	case ai.IsMissingCredential(err):
		return fiber.StatusBadRequest, "missing_credential", "an LLM API key is required; send api_key or configure the server fallback"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "evaluation_timeout", "the evaluation took too long, please try again"
	case ai.IsAuthentication(err):
		return fiber.StatusUnauthorized, "authentication_failed", "authentication with the LLM provider failed, please check your API key"
	case ai.IsTransport(err):
		return fiber.StatusBadGateway, "transport_failed", "could not reach the LLM provider, please check the connection and try again"
	default:
		return fiber.StatusInternalServerError, "internal_error", "internal server error"
	}
}
