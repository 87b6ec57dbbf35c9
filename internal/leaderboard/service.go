package leaderboard

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	publishSize     = 10
	resyncInterval  = 5 * time.Minute
	DefaultLimit    = 20
	MaxLimit        = 100
)

type Store interface {
	Leaderboard(ctx context.Context, limit int) (*domain.Leaderboard, error)
}

type Config struct {
	EventBus *event.Bus
	Store    Store
	Redis    redis.UniversalClient
	Prefix   string
}

// Service keeps a redis sorted set of user totals in front of the store.
type Service struct {
	eb     *event.Bus
	store  Store
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		store:  c.Store,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

type member struct {
	DisplayName string `json:"display_name"`
	Location    string `json:"location,omitempty"`
	SolvedCount int    `json:"solved_count"`
	JoinedAt    int64  `json:"joined_at,omitempty"`
}

// GetLeaderboard returns the top users by points. It reads redis first, then the store,
// and degrades to an empty leaderboard when neither answers.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) *domain.Leaderboard {
	limit = clampLimit(limit)

	if err := s.ensureWarm(ctx); err != nil {
		slog.WarnContext(ctx, "leaderboard: warm cache failed", "error", err)
	}

	l, err := s.fromCache(ctx, limit)
	if err == nil {
		return l
	}
	slog.WarnContext(ctx, "leaderboard: cache read failed", "error", err)

	l, err = s.store.Leaderboard(ctx, limit)
	if err != nil {
		slog.WarnContext(ctx, "leaderboard: store read failed", "error", err)
		return &domain.Leaderboard{Entries: []domain.LeaderboardEntry{}}
	}

	return l
}

// ensureWarm loads the store's board into redis unless the cache is marked complete.
func (s *Service) ensureWarm(ctx context.Context) error {
	n, err := s.redis.Exists(ctx, s.getCompleteKey()).Result()
	if err != nil {
		return fmt.Errorf("check cache: %w", err)
	}
	if n > 0 {
		return nil
	}

	l, err := s.store.Leaderboard(ctx, MaxLimit)
	if err != nil {
		return fmt.Errorf("load store leaderboard: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, e := range l.Entries {
			b, err := json.Marshal(toMember(e))
			if err != nil {
				return fmt.Errorf("marshal member: %w", err)
			}

			p.ZAddGT(ctx, s.getLeaderboardKey(), redis.Z{
				Score:  float64(e.TotalPoints),
				Member: e.UserID,
			})
			// Metadata written by events wins.
			p.HSetNX(ctx, s.getMembersKey(), e.UserID, b)
		}

		p.Set(ctx, s.getCompleteKey(), time.Now().UnixMilli(), resyncInterval)
		return nil
	})

	return err
}

func (s *Service) fromCache(ctx context.Context, limit int) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	l := &domain.Leaderboard{Entries: make([]domain.LeaderboardEntry, 0, len(res))}
	if len(res) == 0 {
		return l, nil
	}

	// The cut may split a group of equal totals, fetch the whole group before ordering it.
	if len(res) == limit {
		res, err = s.redis.ZRevRangeByScoreWithScores(ctx, s.getLeaderboardKey(), &redis.ZRangeBy{
			Max: "+inf",
			Min: strconv.FormatFloat(res[len(res)-1].Score, 'f', -1, 64),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("get leaderboard ties: %w", err)
		}
	}

	ids := make([]string, 0, len(res))
	for _, z := range res {
		ids = append(ids, z.Member.(string))
	}

	metas, err := s.redis.HMGet(ctx, s.getMembersKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}

	for i, z := range res {
		e := domain.LeaderboardEntry{
			UserID:      ids[i],
			TotalPoints: int(z.Score),
		}

		if raw, ok := metas[i].(string); ok {
			var m member
			if err := json.Unmarshal([]byte(raw), &m); err == nil {
				e.DisplayName = m.DisplayName
				e.Location = m.Location
				e.SolvedCount = m.SolvedCount
				if m.JoinedAt > 0 {
					e.JoinedAt = time.UnixMilli(m.JoinedAt).UTC()
				}
			}
		}

		l.Entries = append(l.Entries, e)
	}

	slices.SortStableFunc(l.Entries, compareEntries)
	if len(l.Entries) > limit {
		l.Entries = l.Entries[:limit]
	}
	for i := range l.Entries {
		l.Entries[i].Rank = i + 1
	}

	return l, nil
}

// compareEntries orders by points, then by join time, then by id, like the store does.
// Entries without a join time go after those with one.
func compareEntries(a, b domain.LeaderboardEntry) int {
	if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
		return c
	}

	switch {
	case a.JoinedAt.IsZero() && !b.JoinedAt.IsZero():
		return 1
	case !a.JoinedAt.IsZero() && b.JoinedAt.IsZero():
		return -1
	}
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}

	return cmp.Compare(a.UserID, b.UserID)
}

// UpdateLeaderboard raises the user's total in the leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	if e.TotalPoints <= 0 {
		return nil
	}

	m := member{
		DisplayName: e.DisplayName,
		Location:    e.Location,
		SolvedCount: e.SolvedCount,
	}
	if !e.JoinedAt.IsZero() {
		m.JoinedAt = e.JoinedAt.UnixMilli()
	}

	// TODO: retry on error
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		return s.set(ctx, p, e.UserID, e.TotalPoints, m)
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e.UpdateTime)
}

func (s *Service) set(ctx context.Context, p redis.Pipeliner, userID string, points int, m member) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}

	// Totals never decrease, GT keeps a late event from rolling a user back.
	p.ZAddGT(ctx, s.getLeaderboardKey(), redis.Z{
		Score:  float64(points),
		Member: userID,
	})
	p.HSet(ctx, s.getMembersKey(), userID, b)

	return nil
}

func toMember(e domain.LeaderboardEntry) member {
	m := member{
		DisplayName: e.DisplayName,
		Location:    e.Location,
		SolvedCount: e.SolvedCount,
	}
	if !e.JoinedAt.IsZero() {
		m.JoinedAt = e.JoinedAt.UnixMilli()
	}

	return m
}

// schedulePublishLeaderboard publishes the leaderboard at most once per publishInterval.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, t time.Time) error {
	// SETNX so that only one instance publishes per window.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(), t.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, t)
}

func (s *Service) publishLeaderboard(ctx context.Context, t time.Time) error {
	if err := s.ensureWarm(ctx); err != nil {
		slog.WarnContext(ctx, "leaderboard: warm cache failed", "error", err)
	}

	l, err := s.fromCache(ctx, publishSize)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
		UpdateTime:  t,
	})

	return nil
}

func (s *Service) getLeaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) getMembersKey() string {
	return fmt.Sprintf("%s:leaderboard:members", s.prefix)
}

func (s *Service) getCompleteKey() string {
	return fmt.Sprintf("%s:leaderboard:complete", s.prefix)
}

func (s *Service) getLeaderboardTimeKey() string {
	return fmt.Sprintf("%s:leaderboard:time", s.prefix)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
