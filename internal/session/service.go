package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/errors"
)

const defaultTTL = 30 * 24 * time.Hour

type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	SolvedPromptIDs(ctx context.Context, userID string) ([]string, error)
	UpsertUser(ctx context.Context, p domain.Profile) error
}

type Config struct {
	Store  Store
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Policy WritePolicy
}

type Service struct {
	store  Store
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	policy WritePolicy
}

func NewService(c Config) *Service {
	s := &Service{
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
		policy: c.Policy,
	}

	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if !s.policy.Valid() {
		s.policy = FailOpen
	}

	return s
}

func (s *Service) Policy() WritePolicy {
	return s.policy
}

// Start builds the session of a user. The store is authoritative when reachable;
// otherwise the last mirrored session is used.
func (s *Service) Start(ctx context.Context, userID string) (*Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Validation("MISSING_USER_ID", "user id is required")
	}

	mirror := s.loadMirror(ctx, userID)

	u, err := s.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		return s.fromStore(ctx, u, mirror), nil

	case errors.Is(err, errors.CodeNotFound):
		if mirror != nil {
			return mirror, nil
		}
		return New(userID), nil

	default:
		slog.WarnContext(ctx, "session: store unavailable, using mirror",
			"user_id", userID,
			"error", err,
		)
		if mirror == nil {
			mirror = New(userID)
		}
		mirror.Durable = false
		return mirror, nil
	}
}

func (s *Service) fromStore(ctx context.Context, u *domain.User, mirror *Session) *Session {
	ss := &Session{
		Profile:     u.Profile,
		TotalPoints: u.TotalPoints,
		SolvedCount: u.SolvedCount,
		CreatedAt:   u.CreatedAt,
		Solved:      make(map[string]struct{}),
		Durable:     true,
	}

	ids, err := s.store.SolvedPromptIDs(ctx, u.UserID)
	switch {
	case err == nil:
		for _, id := range ids {
			ss.Solved[id] = struct{}{}
		}
	case mirror != nil:
		ss.Solved = mirror.Solved
		ss.Durable = false
	default:
		ss.Durable = false
	}

	if mirror == nil {
		return ss
	}

	// Awards the store never recorded stay on top of the store counters.
	for promptID, points := range mirror.Pending {
		if err == nil && ss.HasSolved(promptID) {
			continue
		}

		ss.AwardPending(promptID, points)
	}

	if mirror.TotalPoints > ss.TotalPoints {
		slog.WarnContext(ctx, "session: dropping progress that never reached the store",
			"user_id", u.UserID,
			"mirror_points", mirror.TotalPoints,
			"store_points", ss.TotalPoints,
		)
	}

	return ss
}

// Register validates and persists the profile of the session's user.
// The returned bool reports whether the profile reached the store.
func (s *Service) Register(ctx context.Context, ss *Session, p domain.Profile) (bool, error) {
	p.UserID = ss.UserID
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Location = strings.TrimSpace(p.Location)
	if p.DisplayName == "" {
		return false, errors.Validation("MISSING_NAME", "display name is required")
	}

	if err := s.store.UpsertUser(ctx, p); err != nil {
		if s.policy == FailClosed {
			return false, err
		}

		slog.WarnContext(ctx, "session: profile kept locally",
			"user_id", ss.UserID,
			"error", err,
		)
		ss.Profile = p
		ss.Durable = false
		return false, nil
	}

	ss.Profile = p
	return true, nil
}

// Save mirrors the session to redis. Failures are logged only.
func (s *Service) Save(ctx context.Context, ss *Session) {
	if s.redis == nil {
		return
	}

	b, err := json.Marshal(toMirror(ss))
	if err != nil {
		slog.ErrorContext(ctx, "session: marshal mirror failed", "error", err)
		return
	}

	if err := s.redis.Set(ctx, s.key(ss.UserID), b, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "session: save mirror failed",
			"user_id", ss.UserID,
			"error", err,
		)
	}
}

func (s *Service) loadMirror(ctx context.Context, userID string) *Session {
	if s.redis == nil {
		return nil
	}

	b, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "session: load mirror failed",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	var m mirror
	if err := json.Unmarshal(b, &m); err != nil {
		slog.WarnContext(ctx, "session: corrupted mirror ignored",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	return m.toSession(userID)
}

func (s *Service) key(userID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, userID)
}

type mirror struct {
	DisplayName string         `json:"display_name"`
	Location    string         `json:"location"`
	Dialect     string         `json:"dialect"`
	AgeGroup    string         `json:"age_group"`
	TotalPoints int            `json:"total_points"`
	SolvedCount int            `json:"solved_count"`
	CreatedAt   time.Time      `json:"created_at"`
	Solved      []string       `json:"solved"`
	Durable     bool           `json:"durable"`
	Pending     map[string]int `json:"pending,omitempty"`
}

func toMirror(ss *Session) mirror {
	return mirror{
		DisplayName: ss.DisplayName,
		Location:    ss.Location,
		Dialect:     ss.Dialect,
		AgeGroup:    ss.AgeGroup,
		TotalPoints: ss.TotalPoints,
		SolvedCount: ss.SolvedCount,
		CreatedAt:   ss.CreatedAt,
		Solved:      ss.SolvedIDs(),
		Durable:     ss.Durable,
		Pending:     ss.Pending,
	}
}

func (m mirror) toSession(userID string) *Session {
	ss := New(userID)
	ss.DisplayName = m.DisplayName
	ss.Location = m.Location
	ss.Dialect = m.Dialect
	ss.AgeGroup = m.AgeGroup
	ss.TotalPoints = m.TotalPoints
	ss.SolvedCount = m.SolvedCount
	ss.CreatedAt = m.CreatedAt
	ss.Durable = m.Durable
	if len(m.Pending) > 0 {
		ss.Pending = m.Pending
	}
	for _, id := range m.Solved {
		ss.Solved[id] = struct{}{}
	}

	return ss
}
