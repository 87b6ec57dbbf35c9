// Package api exposes the collection service over HTTP and forwards leaderboard updates to redis pub/sub.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/bhasha/internal/catalog"
	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/errors"
	"github.com/victornm/bhasha/internal/event"
	"github.com/victornm/bhasha/internal/leaderboard"
	"github.com/victornm/bhasha/internal/media"
	"github.com/victornm/bhasha/internal/session"
	"github.com/victornm/bhasha/internal/submission"
)

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 50
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Catalog      *catalog.Catalog
	Session      *session.Service
	Submission   *submission.Service
	Leaderboard  *leaderboard.Service
	Stats        StatsStore
	Media        media.Store
	Redis        Redis
	PubsubPrefix string
	Now          func() time.Time
}

// StatsStore serves the community counters.
type StatsStore interface {
	TotalResponseCount(ctx context.Context) (int, error)
	ActiveUserCount(ctx context.Context) (int, error)
	RecentActivity(ctx context.Context, limit int) ([]domain.Activity, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	catalog *catalog.Catalog
	ss      *session.Service
	subs    *submission.Service
	ls      *leaderboard.Service
	stats   StatsStore
	media   media.Store
	now     func() time.Time

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		catalog: c.Catalog,
		ss:      c.Session,
		subs:    c.Submission,
		ls:      c.Leaderboard,
		stats:   c.Stats,
		media:   c.Media,
		now:     c.Now,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
	}

	if a.now == nil {
		a.now = time.Now
	}

	v1 := c.Router.Group("/v1")

	users := v1.Group("/users/:user_id")
	users.GET("", a.GetUser)
	users.PUT("/profile", a.UpdateProfile)
	users.GET("/prompts/current", a.GetCurrentPrompt)
	users.GET("/prompts", a.GetPrompts)
	users.GET("/progress", a.GetProgress)
	users.GET("/solved", a.GetSolved)
	users.POST("/prompts/:prompt_id/text", a.SubmitText)
	users.POST("/prompts/:prompt_id/voice", a.SubmitVoice)
	users.POST("/prompts/:prompt_id/images", a.SubmitImages)

	v1.POST("/drafts/analyze", a.AnalyzeDraft)
	v1.GET("/leaderboard", a.GetLeaderboard)
	v1.GET("/stats", a.GetStats)
	v1.GET("/activity", a.GetActivity)

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

// start loads the session of the user named in the path. It writes the error response itself.
func (a *API) start(c *gin.Context) (*session.Session, bool) {
	ss, err := a.ss.Start(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		a.fail(c, err)
		return nil, false
	}

	return ss, true
}

func (a *API) fail(c *gin.Context, err error) {
	e := errors.Convert(err)

	switch e.Code {
	case errors.CodeInternal, errors.CodeUnavailable:
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}

func invalidBody(err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithReason("INVALID_BODY"),
		errors.WithMessagef("invalid request body"),
		errors.WithCause(err),
	)
}

func queryLimit(c *gin.Context, def, limit int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	switch {
	case err != nil, n <= 0:
		return def
	case n > limit:
		return limit
	default:
		return n
	}
}

func (a *API) GetLeaderboard(c *gin.Context) {
	l := a.ls.GetLeaderboard(c.Request.Context(), queryLimit(c, leaderboard.DefaultLimit, leaderboard.MaxLimit))
	c.JSON(http.StatusOK, toLeaderboard(l))
}

// GetStats never fails; an unreachable store reports zero counters.
func (a *API) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	out := Stats{TotalPrompts: a.catalog.Len()}

	var err error
	if out.TotalResponses, err = a.stats.TotalResponseCount(ctx); err != nil {
		slog.WarnContext(ctx, "api: count responses failed", "error", err)
	}
	if out.ActiveUsers, err = a.stats.ActiveUserCount(ctx); err != nil {
		slog.WarnContext(ctx, "api: count active users failed", "error", err)
	}

	c.JSON(http.StatusOK, out)
}

func (a *API) GetActivity(c *gin.Context) {
	ctx := c.Request.Context()

	items, err := a.stats.RecentActivity(ctx, queryLimit(c, defaultActivityLimit, maxActivityLimit))
	if err != nil {
		slog.WarnContext(ctx, "api: recent activity failed", "error", err)
	}

	out := make([]Activity, 0, len(items))
	for _, it := range items {
		out = append(out, Activity{
			DisplayName: it.DisplayName,
			PromptID:    it.PromptID,
			SubmittedAt: it.SubmittedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"activity": out})
}
