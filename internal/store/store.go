package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/errors"
	"github.com/victornm/bhasha/internal/progress"
)

type Config struct {
	DB *gorm.DB
	// Now is used to stamp rows, defaults to time.Now.
	Now func() time.Time
}

// Store persists users and responses.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(c Config) *Store {
	s := &Store{
		db:  c.DB,
		now: c.Now,
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// InitSchema creates the tables when missing. It is safe to call on every start.
func (s *Store) InitSchema(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&userRow{},
		&textResponseRow{},
		&voiceResponseRow{},
		&imageResponseRow{},
	)
	if err != nil {
		return errors.Persistence("init schema", err)
	}

	return nil
}

// UpsertUser creates the user or updates its profile fields. Points and solved count are never touched.
func (s *Store) UpsertUser(ctx context.Context, p domain.Profile) error {
	row := userRow{
		ID:          p.UserID,
		DisplayName: p.DisplayName,
		Location:    p.Location,
		Dialect:     p.Dialect,
		AgeGroup:    p.AgeGroup,
		CreatedAt:   s.now().UTC(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "location", "dialect", "age_group"}),
		}).
		Create(&row).Error
	if err != nil {
		return errors.Persistence("upsert user", err)
	}

	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", id))
	}
	if err != nil {
		return nil, errors.Persistence("get user", err)
	}

	return row.toDomain(), nil
}

func (s *Store) SaveTextResponse(ctx context.Context, r *domain.TextResponse) error {
	return s.save(ctx, "save text response", r)
}

func (s *Store) SaveVoiceResponse(ctx context.Context, r *domain.VoiceResponse) error {
	return s.save(ctx, "save voice response", r)
}

func (s *Store) SaveImageResponse(ctx context.Context, r *domain.ImageResponse) error {
	return s.save(ctx, "save image response", r)
}

func (s *Store) save(ctx context.Context, op string, r domain.Response) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertResponse(tx, r)
	})

	return s.convertWriteErr(op, r, err)
}

// IncrementUserScore adds points and one solved prompt in a single statement.
func (s *Store) IncrementUserScore(ctx context.Context, userID string, points int) error {
	err := incrementScore(s.db.WithContext(ctx), userID, points)
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		return errors.Persistence("increment user score", err)
	}

	return err
}

// RecordSubmission stores the response and awards its points in one transaction.
// A second response to an already solved prompt fails with CodeAlreadyExists and awards nothing.
func (s *Store) RecordSubmission(ctx context.Context, r domain.Response, points int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.insertResponse(tx, r); err != nil {
			return err
		}

		return incrementScore(tx, r.Envelope().UserID, points)
	})

	return s.convertWriteErr("record submission", r, err)
}

func (s *Store) convertWriteErr(op string, r domain.Response, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		e := r.Envelope()
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("prompt already solved: user=%s prompt=%s", e.UserID, e.PromptID),
			errors.WithCause(err),
		)
	case errors.Is(err, errors.CodeNotFound):
		return err
	default:
		return errors.Persistence(op, err)
	}
}

func incrementScore(db *gorm.DB, userID string, points int) error {
	res := db.Model(&userRow{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"total_points": gorm.Expr("total_points + ?", points),
			"solved_count": gorm.Expr("solved_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", userID))
	}

	return nil
}

// insertResponse writes the modality rows plus the solved-marker row.
func (s *Store) insertResponse(tx *gorm.DB, r domain.Response) error {
	e := r.Envelope()
	if e.ResponseID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate response ID: %w", err)
		}
		e.ResponseID = id.String()
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = s.now().UTC()
	}

	marker := textResponseRow{
		ResponseID:  e.ResponseID,
		UserID:      e.UserID,
		PromptID:    e.PromptID,
		SubmittedAt: e.SubmittedAt,
	}

	switch v := r.(type) {
	case *domain.TextResponse:
		marker.ResponseText = v.Text
		marker.WordCount = v.WordCount

	case *domain.VoiceResponse:
		row := voiceResponseRow{
			ResponseID:      e.ResponseID,
			UserID:          e.UserID,
			PromptID:        e.PromptID,
			AudioPath:       v.AudioPath,
			DurationSeconds: v.DurationSeconds,
			Description:     v.Description,
			SubmittedAt:     e.SubmittedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert voice response: %w", err)
		}
		marker.ResponseText = mirrorPrefixVoice + v.Description
		marker.WordCount = progress.WordCount(v.Description)

	case *domain.ImageResponse:
		rows := make([]imageResponseRow, 0, len(v.ImagePaths))
		for i, p := range v.ImagePaths {
			rows = append(rows, imageResponseRow{
				ResponseID:  fmt.Sprintf("%s_%d", e.ResponseID, i),
				UserID:      e.UserID,
				PromptID:    e.PromptID,
				ImagePath:   p,
				Description: v.Description,
				SubmittedAt: e.SubmittedAt,
			})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert image responses: %w", err)
			}
		}
		marker.ResponseText = mirrorPrefixImages + v.Description
		marker.WordCount = progress.WordCount(v.Description)

	default:
		return fmt.Errorf("unsupported response type %T", r)
	}

	if err := tx.Create(&marker).Error; err != nil {
		return fmt.Errorf("insert solved marker: %w", err)
	}

	return nil
}

// SolvedPromptIDs returns the distinct prompts the user has a response for.
func (s *Store) SolvedPromptIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&textResponseRow{}).
		Distinct("prompt_id").
		Where("user_id = ?", userID).
		Order("prompt_id").
		Pluck("prompt_id", &ids).Error
	if err != nil {
		return nil, errors.Persistence("solved prompts", err)
	}

	return ids, nil
}

func (s *Store) TotalResponseCount(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&textResponseRow{}).Count(&n).Error; err != nil {
		return 0, errors.Persistence("count responses", err)
	}

	return int(n), nil
}

// ActiveUserCount counts users that earned at least one point.
func (s *Store) ActiveUserCount(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Where("total_points > 0").Count(&n).Error; err != nil {
		return 0, errors.Persistence("count active users", err)
	}

	return int(n), nil
}

// Leaderboard lists users with points, highest first. Ties keep registration order.
func (s *Store) Leaderboard(ctx context.Context, limit int) (*domain.Leaderboard, error) {
	var rows []userRow
	err := s.db.WithContext(ctx).
		Where("total_points > 0").
		Order("total_points DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Persistence("leaderboard", err)
	}

	l := &domain.Leaderboard{Entries: make([]domain.LeaderboardEntry, 0, len(rows))}
	for i, r := range rows {
		l.Entries = append(l.Entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      r.ID,
			DisplayName: r.DisplayName,
			Location:    r.Location,
			TotalPoints: r.TotalPoints,
			SolvedCount: r.SolvedCount,
			JoinedAt:    r.CreatedAt,
		})
	}

	return l, nil
}

// RecentActivity returns the latest solved prompts across all users.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	var rows []activityRow
	err := s.db.WithContext(ctx).
		Table("text_responses AS tr").
		Select("u.display_name, tr.prompt_id, tr.submitted_at").
		Joins("JOIN users u ON u.id = tr.user_id").
		Order("tr.submitted_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Persistence("recent activity", err)
	}

	out := make([]domain.Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Activity{
			DisplayName: r.DisplayName,
			PromptID:    r.PromptID,
			SubmittedAt: r.SubmittedAt,
		})
	}

	return out, nil
}
