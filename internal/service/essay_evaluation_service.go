package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/essay-evaluator-api/internal/models"
	"github.com/noah-isme/essay-evaluator-api/internal/observability"
	"github.com/noah-isme/essay-evaluator-api/pkg/ai"
)

// EvaluationConfig holds the knobs of the orchestrator.
type EvaluationConfig struct {
	// DefaultCredential is used only when a request carries no credential.
	DefaultCredential string
	// Timeout bounds a whole run; zero means no deadline.
	Timeout time.Duration
}

// PipelineEvent reports one state transition of a run.
type PipelineEvent struct {
	RunID     string                   `json:"run_id"`
	State     models.PipelineState     `json:"state"`
	Dimension models.Dimension         `json:"dimension,omitempty"`
	Score     *int                     `json:"score,omitempty"`
	Result    *models.EvaluationResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Observer receives pipeline events. Calls are serialised per run.
type Observer func(PipelineEvent)

// EssayEvaluationService runs the rubric fan-out, the join and the synthesis.
type EssayEvaluationService interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest, observers ...Observer) (models.EvaluationResult, error)
	EvaluateEssay(ctx context.Context, essayText string, credential string) (models.EvaluationResult, error)
}

type essayEvaluationService struct {
	rubrics     RubricEvaluator
	synthesizer Synthesizer
	publisher   EvaluationPublisher
	config      EvaluationConfig
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEssayEvaluationService wires the pipeline. publisher may be nil.
func NewEssayEvaluationService(rubrics RubricEvaluator, synthesizer Synthesizer, publisher EvaluationPublisher, cfg EvaluationConfig, logger zerolog.Logger) EssayEvaluationService {
	return &essayEvaluationService{
		rubrics:     rubrics,
		synthesizer: synthesizer,
		publisher:   publisher,
		config:      cfg,
		logger:      logger.With().Str("component", "essay_evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/essay-evaluator-api/internal/service/evaluation"),
	}
}

// NewEssayEvaluationPipeline builds the rubric evaluators and the synthesizer on one completer.
func NewEssayEvaluationPipeline(completer ai.Completer, publisher EvaluationPublisher, cfg EvaluationConfig, logger zerolog.Logger) EssayEvaluationService {
	return NewEssayEvaluationService(NewRubricEvaluator(completer, logger), NewSynthesizer(completer), publisher, cfg, logger)
}

func (s *essayEvaluationService) EvaluateEssay(ctx context.Context, essayText string, credential string) (models.EvaluationResult, error) {
	return s.Evaluate(ctx, models.EvaluationRequest{EssayText: essayText, Credential: credential})
}

func (s *essayEvaluationService) Evaluate(parent context.Context, req models.EvaluationRequest, observers ...Observer) (models.EvaluationResult, error) {
	tracker := newPipelineTracker(uuid.NewString(), observers)
	logger := s.logger.With().Str("run_id", tracker.runID).Logger()

	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		credential = strings.TrimSpace(s.config.DefaultCredential)
	}
	if credential == "" {
		observability.EvaluationsTotal().WithLabelValues(outcomeLabel(ai.ErrMissingCredential)).Inc()
		tracker.fail(ai.ErrMissingCredential)
		return models.EvaluationResult{}, ai.ErrMissingCredential
	}
	req.Credential = credential

	ctx := parent
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.config.Timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "essay.evaluate", trace.WithAttributes(
		attribute.String("run_id", tracker.runID),
		attribute.Int("essay.chars", len(req.EssayText)),
	))
	defer span.End()

	start := time.Now()
	result, err := s.run(ctx, req, tracker)
	duration := time.Since(start)

	observability.EvaluationDuration().WithLabelValues(outcomeLabel(err)).Observe(duration.Seconds())
	observability.EvaluationsTotal().WithLabelValues(outcomeLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tracker.fail(err)
		logger.Error().Err(err).Str("kind", string(ai.KindOf(err))).Dur("duration", duration).Msg("essay evaluation failed")
		return models.EvaluationResult{}, err
	}

	logger.Info().
		Ints("scores", result.IndividualScores).
		Float64("avg_score", result.AvgScore).
		Dur("duration", duration).
		Msg("essay evaluation completed")

	if s.publisher != nil {
		event := EvaluationCompleted{
			RunID:            tracker.runID,
			IndividualScores: result.IndividualScores,
			AvgScore:         result.AvgScore,
			DurationMs:       duration.Milliseconds(),
			CompletedAt:      time.Now().UTC(),
		}
		if err := s.publisher.PublishCompleted(ctx, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish evaluation event")
		}
	}

	return result, nil
}

func (s *essayEvaluationService) run(ctx context.Context, req models.EvaluationRequest, tracker *pipelineTracker) (models.EvaluationResult, error) {
	state := newAggregationState(req)
	tracker.emit(PipelineEvent{State: models.StateSeeded})

	group, groupCtx := errgroup.WithContext(ctx)
	for _, dimension := range models.Dimensions {
		group.Go(func() error {
			result, err := s.rubrics.Evaluate(groupCtx, dimension, state.essay, state.credential)
			if err != nil {
				return err
			}
			if err := state.commit(result); err != nil {
				return err
			}
			score := result.Score
			tracker.emit(PipelineEvent{State: models.DoneState(dimension), Dimension: dimension, Score: &score})
			return nil
		})
	}

	// Join barrier: synthesis starts only after all three evaluators returned and committed.
	if err := group.Wait(); err != nil {
		return models.EvaluationResult{}, err
	}
	input, err := state.synthesisInput()
	if err != nil {
		return models.EvaluationResult{}, err
	}
	tracker.emit(PipelineEvent{State: models.StateJoined})

	output, err := s.synthesizer.Synthesize(ctx, input, state.credential)
	if err != nil {
		return models.EvaluationResult{}, err
	}
	if err := state.applySynthesis(output); err != nil {
		return models.EvaluationResult{}, err
	}
	tracker.emit(PipelineEvent{State: models.StateSynthesized})

	result, err := state.snapshot()
	if err != nil {
		return models.EvaluationResult{}, err
	}
	tracker.emit(PipelineEvent{State: models.StateComplete, Result: &result})
	return result, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case ai.KindOf(err) != "":
		return string(ai.KindOf(err))
	default:
		return "error"
	}
}

// pipelineTracker fans state transitions out to observers one at a time.
type pipelineTracker struct {
	runID     string
	observers []Observer
	mu        sync.Mutex
}

func newPipelineTracker(runID string, observers []Observer) *pipelineTracker {
	return &pipelineTracker{runID: runID, observers: observers}
}

func (t *pipelineTracker) emit(event PipelineEvent) {
	if len(t.observers) == 0 {
		return
	}
	event.RunID = t.runID

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, observer := range t.observers {
		if observer != nil {
			observer(event)
		}
	}
}

func (t *pipelineTracker) fail(err error) {
	t.emit(PipelineEvent{State: models.StateFailed, Error: err.Error()})
}
