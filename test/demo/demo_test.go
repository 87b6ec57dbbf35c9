//go:build integration_test

package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/bhasha/internal/api"
	"github.com/victornm/bhasha/internal/domain"
)

const (
	baseURL = "http://localhost:8080"
	prefix  = "bhasha"
)

// TestCollection walks three contributors through the first prompts concurrently
// and watches the leaderboard notifications of the first one.
func TestCollection(t *testing.T) {
	var (
		wg    = new(sync.WaitGroup)
		names = []string{"Ravi", "Sita", "Lakshmi"}
		users = make([]string, len(names))
	)

	for i := range users {
		users[i] = uuid.NewString()
	}

	// Prepare Redis subscriber
	subscribeAsUser(t, makeRedis(t), wg, users[0])

	for i, u := range users {
		var out api.User
		do(t, http.MethodPut, fmt.Sprintf("/v1/users/%s/profile", u), api.ProfileRequest{
			DisplayName: names[i],
			Location:    "Hyderabad",
		}, http.StatusOK, &out)
		require.True(t, out.Registered)
	}

	// Every user solves whatever prompt is current, one round at a time
	for round := 0; round < 3; round++ {
		t.Logf("Starting round %d", round)

		var eg errgroup.Group
		for _, u := range users {
			eg.Go(func() error {
				var cur api.CurrentPrompt
				if err := call(http.MethodGet, fmt.Sprintf("/v1/users/%s/prompts/current", u), nil, http.StatusOK, &cur); err != nil {
					return err
				}
				if cur.Prompt == nil {
					return fmt.Errorf("user %q has no current prompt", u)
				}

				var res api.SubmissionResult
				err := call(http.MethodPost, fmt.Sprintf("/v1/users/%s/prompts/%s/text", u, cur.Prompt.ID), api.TextRequest{
					Text: strings.TrimSpace(strings.Repeat("Bathukamma is celebrated with flowers stacked in cone shapes. ", 6)),
				}, http.StatusCreated, &res)
				if err != nil {
					return err
				}

				t.Logf("User %q solved %s: points=%d, total_points=%d", u, res.PromptID, res.Points, res.TotalPoints)
				return nil
			})
		}
		require.NoError(t, eg.Wait())

		time.Sleep(500 * time.Millisecond)
	}

	for _, u := range users {
		var p api.Progress
		do(t, http.MethodGet, fmt.Sprintf("/v1/users/%s/progress", u), nil, http.StatusOK, &p)
		require.Equal(t, 3, p.Solved)
	}

	var l api.Leaderboard
	do(t, http.MethodGet, "/v1/leaderboard?limit=100", nil, http.StatusOK, &l)
	t.Logf("final leaderboard:\n%s", formatLeaderboard(l))

	wg.Wait()
}

func do(t *testing.T, method, path string, body any, wantStatus int, out any) {
	require.NoError(t, call(method, path, body, wantStatus, out))
}

func call(method, path string, body any, wantStatus int, out any) error {
	var r bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&r).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, baseURL+path, &r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: got status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func subscribeAsUser(t *testing.T, rc redis.UniversalClient, wg *sync.WaitGroup, u string) {
	wg.Add(1)
	sub := subscribeRedis(t, rc, fmt.Sprintf("%s:user:%s", prefix, u))
	go func() {
		defer wg.Done()

		for msg := range sub {
			var n struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				t.Logf("unmarshal notification: %v", err)
				continue
			}

			switch n.Event {
			case domain.EventNameLeaderboardUpdated:
				var l api.Leaderboard
				if err := json.Unmarshal(n.Data, &l); err != nil {
					t.Logf("unmarshal leaderboard: %v", err)
					continue
				}

				t.Logf("%s leaderboard:\n%s", u, formatLeaderboard(l))
			}
		}
	}()
}

func subscribeRedis(t *testing.T, rc redis.UniversalClient, channel string) <-chan *redis.Message {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	sub := rc.Subscribe(ctx, channel)
	t.Cleanup(func() {
		cancel()
		sub.Close()
	})

	c := make(chan *redis.Message)
	go func() {
		defer close(c)

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				t.Log(err)
				return
			}

			c <- msg
		}
	}()

	return c
}

func makeRedis(t *testing.T) redis.UniversalClient {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{"localhost:6379"},
	})
	t.Cleanup(func() { r.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		t.Fatal(err)
	}

	return r
}

func formatLeaderboard(l api.Leaderboard) string {
	var s string
	for _, e := range l.Entries {
		s += fmt.Sprintf("%d. %s (%s): %d\n", e.Rank, e.DisplayName, e.UserID, e.TotalPoints)
	}
	return s
}
