package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EvaluationCompleted is broadcast after a successful run. It never carries
// essay text, feedback or credentials.
type EvaluationCompleted struct {
	RunID            string    `json:"run_id"`
	IndividualScores []int     `json:"individual_scores"`
	AvgScore         float64   `json:"avg_score"`
	DurationMs       int64     `json:"duration_ms"`
	CompletedAt      time.Time `json:"completed_at"`
}

// EvaluationPublisher forwards completion events to a broker.
type EvaluationPublisher interface {
	PublishCompleted(ctx context.Context, event EvaluationCompleted) error
}

// DefaultEvaluationSubject is used when no subject is configured.
const DefaultEvaluationSubject = "essay.evaluation.completed"

type natsEvaluationPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEvaluationPublisher returns nil when conn is nil so callers can pass the result straight through.
func NewNATSEvaluationPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EvaluationPublisher {
	if conn == nil {
		return nil
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultEvaluationSubject
	}
	return &natsEvaluationPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "evaluation_publisher").Logger(),
	}
}

func (p *natsEvaluationPublisher) PublishCompleted(ctx context.Context, event EvaluationCompleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal evaluation event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish evaluation event: %w", err)
	}
	p.logger.Debug().Str("run_id", event.RunID).Str("subject", p.subject).Msg("evaluation event published")
	return nil
}
