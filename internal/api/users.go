package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/progress"
)

func (a *API) GetUser(c *gin.Context) {
	ss, ok := a.start(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toUser(ss))
}

func (a *API) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalidBody(err))
		return
	}

	ss, ok := a.start(c)
	if !ok {
		return
	}

	if _, err := a.ss.Register(ctx, ss, domain.Profile{
		DisplayName: req.DisplayName,
		Location:    req.Location,
		Dialect:     req.Dialect,
		AgeGroup:    req.AgeGroup,
	}); err != nil {
		a.fail(c, err)
		return
	}

	a.ss.Save(ctx, ss)

	c.JSON(http.StatusOK, toUser(ss))
}

// GetCurrentPrompt returns the first unlocked prompt the user has not solved yet.
func (a *API) GetCurrentPrompt(c *gin.Context) {
	ss, ok := a.start(c)
	if !ok {
		return
	}

	available := progress.Available(a.catalog.Prompts(), ss.SolvedCount)
	if len(available) == 0 {
		// Only reachable with a catalog that has nothing at threshold 0.
		first := a.catalog.First()
		available = []domain.Prompt{first}
	}

	p, found := progress.Next(available, ss.Solved)
	if !found {
		c.JSON(http.StatusOK, CurrentPrompt{Completed: true})
		return
	}

	c.JSON(http.StatusOK, CurrentPrompt{Prompt: &p})
}

func (a *API) GetPrompts(c *gin.Context) {
	ss, ok := a.start(c)
	if !ok {
		return
	}

	board := progress.Board(a.catalog.Prompts(), ss.SolvedCount, ss.Solved)

	out := make([]BoardEntry, 0, len(board))
	for _, e := range board {
		out = append(out, BoardEntry{Prompt: e.Prompt, State: e.State})
	}

	c.JSON(http.StatusOK, gin.H{"prompts": out})
}

func (a *API) GetProgress(c *gin.Context) {
	ss, ok := a.start(c)
	if !ok {
		return
	}

	s := progress.Summarize(a.catalog.Prompts(), ss.SolvedCount, ss.Solved)

	c.JSON(http.StatusOK, Progress{
		Solved:     s.Solved,
		Available:  s.Available,
		Total:      s.Total,
		Percent:    s.Percent.StringFixed(1),
		NextLocked: s.NextLocked,
	})
}

func (a *API) GetSolved(c *gin.Context) {
	ss, ok := a.start(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"solved": ss.SolvedIDs()})
}

func (a *API) AnalyzeDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, invalidBody(err))
		return
	}

	d := progress.AnalyzeDraft(req.Text)

	c.JSON(http.StatusOK, Draft{
		Words:        d.Words,
		Characters:   d.Characters,
		Telugu:       d.Telugu,
		Quality:      d.Quality.StringFixed(1),
		MeetsMinimum: d.MeetsMinimum,
		RichScript:   d.RichScript,
		MinWords:     progress.MinWords,
	})
}
