package submission

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/bhasha/internal/catalog"
	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/errors"
	"github.com/victornm/bhasha/internal/event"
	"github.com/victornm/bhasha/internal/progress"
	"github.com/victornm/bhasha/internal/session"
	"github.com/victornm/bhasha/internal/telemetry"
)

type Store interface {
	RecordSubmission(ctx context.Context, r domain.Response, points int) error
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	Catalog  *catalog.Catalog
	Policy   session.WritePolicy
	Now      func() time.Time
}

type Service struct {
	eb      *event.Bus
	store   Store
	catalog *catalog.Catalog
	policy  session.WritePolicy
	now     func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:      c.EventBus,
		store:   c.Store,
		catalog: c.Catalog,
		policy:  c.Policy,
		now:     c.Now,
	}

	if !s.policy.Valid() {
		s.policy = session.FailOpen
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// SubmitText accepts a written response of at least progress.MinWords words.
func (s *Service) SubmitText(ctx context.Context, ss *session.Session, req TextSubmission) (*Result, error) {
	p, err := s.gate(ss, req.PromptID)
	if err != nil {
		return nil, s.reject(domain.ModalityText, err)
	}

	words := progress.WordCount(req.Text)
	if words < progress.MinWords {
		return nil, s.reject(domain.ModalityText,
			errors.Validation(ReasonTooShort, "response has %d words, at least %d are required", words, progress.MinWords))
	}

	r := &domain.TextResponse{
		ResponseEnvelope: s.envelope(ss, p),
		Text:             req.Text,
		WordCount:        words,
	}

	return s.accept(ctx, ss, p, r)
}

// SubmitVoice accepts a recorded response. Only the reference to the stored audio is kept.
func (s *Service) SubmitVoice(ctx context.Context, ss *session.Session, req VoiceSubmission) (*Result, error) {
	p, err := s.gate(ss, req.PromptID)
	if err != nil {
		return nil, s.reject(domain.ModalityVoice, err)
	}

	if strings.TrimSpace(req.AudioRef) == "" {
		return nil, s.reject(domain.ModalityVoice, errors.Validation(ReasonMissingAudio, "audio recording is required"))
	}

	r := &domain.VoiceResponse{
		ResponseEnvelope: s.envelope(ss, p),
		AudioPath:        req.AudioRef,
		DurationSeconds:  max(req.DurationSeconds, 0),
		Description:      strings.TrimSpace(req.Description),
	}

	return s.accept(ctx, ss, p, r)
}

// SubmitImage accepts up to MaxImages images once the contributor confirmed permission and authenticity.
func (s *Service) SubmitImage(ctx context.Context, ss *session.Session, req ImageSubmission) (*Result, error) {
	p, err := s.gate(ss, req.PromptID)
	if err != nil {
		return nil, s.reject(domain.ModalityImage, err)
	}

	if err := s.validateImages(req); err != nil {
		return nil, s.reject(domain.ModalityImage, err)
	}

	r := &domain.ImageResponse{
		ResponseEnvelope: s.envelope(ss, p),
		ImagePaths:       req.ImageRefs,
		Description:      req.describe(),
	}

	return s.accept(ctx, ss, p, r)
}

// Check reports whether the session's user may submit to the prompt, before any media is uploaded.
func (s *Service) Check(ss *session.Session, promptID string) error {
	_, err := s.gate(ss, promptID)
	return err
}

// CheckImage runs Check and the image rules. ImageRefs only need the right length here.
func (s *Service) CheckImage(ss *session.Session, req ImageSubmission) error {
	if err := s.Check(ss, req.PromptID); err != nil {
		return err
	}

	return s.validateImages(req)
}

func (s *Service) validateImages(req ImageSubmission) error {
	switch {
	case !req.Confirmations.complete():
		return errors.Validation(ReasonMissingConfirmation, "permission and authenticity must both be confirmed")
	case strings.TrimSpace(req.Description) == "":
		return errors.Validation(ReasonMissingDescription, "a description of the images is required")
	case len(req.ImageRefs) == 0:
		return errors.Validation(ReasonMissingImages, "at least one image is required")
	case len(req.ImageRefs) > MaxImages:
		return errors.Validation(ReasonTooManyImages, "at most %d images are allowed, got %d", MaxImages, len(req.ImageRefs))
	}

	if y := req.Metadata.Year; y != 0 && (y < minImageYear || y > s.now().Year()) {
		return errors.Validation(ReasonInvalidYear, "year must be between %d and %d", minImageYear, s.now().Year())
	}

	for _, ref := range req.ImageRefs {
		if strings.TrimSpace(ref) == "" {
			return errors.Validation(ReasonMissingImages, "empty image reference")
		}
	}

	return nil
}

// gate checks that the prompt exists and is currently available to the session's user.
func (s *Service) gate(ss *session.Session, promptID string) (domain.Prompt, error) {
	if ss == nil || !ss.Registered() {
		return domain.Prompt{}, errors.Validation(ReasonNotRegistered, "a profile is required before submitting")
	}

	p, ok := s.catalog.ByID(promptID)
	if !ok {
		return domain.Prompt{}, errors.New(errors.CodeNotFound, errors.WithMessagef("prompt not found: %s", promptID))
	}

	if p.UnlockThreshold > ss.SolvedCount {
		return domain.Prompt{}, errors.Validation(ReasonLocked,
			"prompt %s unlocks after %d solved prompts, %d solved so far", p.ID, p.UnlockThreshold, ss.SolvedCount)
	}

	if ss.HasSolved(p.ID) {
		return domain.Prompt{}, alreadySolved(p.ID, nil)
	}

	return p, nil
}

func (s *Service) envelope(ss *session.Session, p domain.Prompt) domain.ResponseEnvelope {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return domain.ResponseEnvelope{
		ResponseID:  id.String(),
		UserID:      ss.UserID,
		PromptID:    p.ID,
		SubmittedAt: s.now().UTC(),
	}
}

// accept persists the response, awards its points and advances the session.
func (s *Service) accept(ctx context.Context, ss *session.Session, p domain.Prompt, r domain.Response) (*Result, error) {
	m := r.Modality()
	points := p.PointsValue + m.Bonus()
	durable := true

	err := s.store.RecordSubmission(ctx, r, points)
	switch {
	case err == nil:

	case errors.Is(err, errors.CodeAlreadyExists):
		return nil, s.reject(m, alreadySolved(p.ID, err))

	case s.policy == session.FailClosed:
		telemetry.Submissions.WithLabelValues(string(m), "failed").Inc()
		return nil, err

	default:
		slog.WarnContext(ctx, "submission: store write failed, keeping the award locally",
			"user_id", ss.UserID,
			"prompt_id", p.ID,
			"modality", m,
			"error", err,
		)
		telemetry.DegradedWrites.WithLabelValues("submission").Inc()
		durable = false
	}

	if durable {
		ss.Award(p.ID, points)
	} else {
		ss.AwardPending(p.ID, points)
	}

	telemetry.Submissions.WithLabelValues(string(m), "accepted").Inc()
	telemetry.PointsAwarded.WithLabelValues(string(m)).Add(float64(points))

	e := r.Envelope()
	s.publish(ctx, ss, domain.EventSubmissionAccepted{
		ResponseID:  e.ResponseID,
		UserID:      ss.UserID,
		PromptID:    p.ID,
		Modality:    m,
		Points:      points,
		Durable:     durable,
		SubmittedAt: e.SubmittedAt,
	})

	return &Result{
		ResponseID:  e.ResponseID,
		PromptID:    p.ID,
		Modality:    m,
		Points:      points,
		TotalPoints: ss.TotalPoints,
		SolvedCount: ss.SolvedCount,
		Durable:     durable,
	}, nil
}

func (s *Service) publish(ctx context.Context, ss *session.Session, accepted domain.EventSubmissionAccepted) {
	if s.eb == nil {
		return
	}

	s.eb.Publish(ctx, accepted)
	s.eb.Publish(ctx, domain.EventScoreUpdated{
		UserID:      ss.UserID,
		DisplayName: ss.DisplayName,
		Location:    ss.Location,
		TotalPoints: ss.TotalPoints,
		SolvedCount: ss.SolvedCount,
		JoinedAt:    ss.CreatedAt,
		UpdateTime:  accepted.SubmittedAt,
	})
}

func (s *Service) reject(m domain.Modality, err error) error {
	telemetry.Submissions.WithLabelValues(string(m), "rejected").Inc()
	return err
}

func alreadySolved(promptID string, cause error) error {
	return errors.New(errors.CodeAlreadyExists,
		errors.WithReason(ReasonAlreadySolved),
		errors.WithMessagef("prompt already solved: %s", promptID),
		errors.WithCause(cause),
	)
}
