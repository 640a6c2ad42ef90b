package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
)

// Webhook actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Status classifies a webhook outcome for the sender.
type Status string

const (
	// StatusOK means the index now reflects the event.
	StatusOK Status = "ok"
	// StatusInvalid means the event can never succeed; do not redeliver.
	StatusInvalid Status = "invalid"
	// StatusRetryable means a dependency failed; redelivery may succeed.
	StatusRetryable Status = "retryable"
)

// Event is a canonical-store change notification.
type Event struct {
	ProjectID int64           `json:"project_id"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Outcome is the result of handling one event.
type Outcome struct {
	Status Status
	Err    error
}

// HandleWebhook applies one event. It never panics and never returns a bare error;
// every failure is classified so the sender can decide whether to retry.
func (s *Service) HandleWebhook(ctx context.Context, ev Event) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Webhook handler panicked",
				zap.Int64("project_id", ev.ProjectID), zap.String("action", ev.Action), zap.Any("panic", r))
			out = Outcome{Status: StatusRetryable, Err: fmt.Errorf("panic: %v", r)}
		}
		observe("webhook_"+actionLabel(ev.Action), out.Err)
	}()

	err := s.applyEvent(ctx, ev)
	out = classify(err)
	if err != nil {
		s.logger.Warn("Webhook event failed",
			zap.Int64("project_id", ev.ProjectID),
			zap.String("action", ev.Action),
			zap.String("status", string(out.Status)),
			zap.Error(err),
		)
	}
	return out
}

func (s *Service) applyEvent(ctx context.Context, ev Event) error {
	if ev.ProjectID <= 0 {
		return fmt.Errorf("project_id must be positive: %w", domain.ErrValidation)
	}

	switch ev.Action {
	case ActionCreate, ActionUpdate:
		if len(ev.Data) == 0 || string(ev.Data) == "null" {
			return fmt.Errorf("%s requires data: %w", ev.Action, domain.ErrValidation)
		}
		p, err := project.DecodeWithID(ev.Data, ev.ProjectID)
		if err != nil {
			return err
		}
		_, err = s.upsert(ctx, &p)
		return err
	case ActionDelete:
		return s.delete(ctx, ev.ProjectID)
	default:
		return fmt.Errorf("unknown action %q: %w", ev.Action, domain.ErrValidation)
	}
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: StatusOK}
	case errors.Is(err, domain.ErrValidation):
		return Outcome{Status: StatusInvalid, Err: err}
	default:
		return Outcome{Status: StatusRetryable, Err: err}
	}
}

// actionLabel keeps the metric label set bounded.
func actionLabel(a string) string {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a
	default:
		return "unknown"
	}
}
