// Package broker forwards accepted submissions to a message queue for downstream corpus export.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/event"
)

const DefaultQueue = "bhasha.submissions"

type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type Config struct {
	EventBus  *event.Bus
	Publisher Publisher
	Queue     string
}

type Service struct {
	pub   Publisher
	queue string
}

func NewService(c Config) *Service {
	s := &Service{
		pub:   c.Publisher,
		queue: c.Queue,
	}

	if s.queue == "" {
		s.queue = DefaultQueue
	}

	c.EventBus.Subscribe(domain.EventNameSubmissionAccepted, func(ctx context.Context, e event.Event) error {
		return s.Forward(ctx, e.(domain.EventSubmissionAccepted))
	})

	return s
}

// Message is the body published for every accepted submission.
type Message struct {
	Event       string    `json:"event"`
	ResponseID  string    `json:"response_id"`
	UserID      string    `json:"user_id"`
	PromptID    string    `json:"prompt_id"`
	Modality    string    `json:"modality"`
	Points      int       `json:"points"`
	Durable     bool      `json:"durable"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (s *Service) Forward(ctx context.Context, e domain.EventSubmissionAccepted) error {
	b, err := json.Marshal(Message{
		Event:       e.Name(),
		ResponseID:  e.ResponseID,
		UserID:      e.UserID,
		PromptID:    e.PromptID,
		Modality:    string(e.Modality),
		Points:      e.Points,
		Durable:     e.Durable,
		SubmittedAt: e.SubmittedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := s.pub.Publish(ctx, s.queue, b); err != nil {
		return fmt.Errorf("publish to %s: %w", s.queue, err)
	}

	return nil
}
