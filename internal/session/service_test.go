package session_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/errors"
	"github.com/victornm/bhasha/internal/session"
)

func TestService_Start(t *testing.T) {
	type (
		inputs struct {
			store  *fakeStore
			mirror *session.Session
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, ss *session.Session)
	}{
		"new user gets an empty durable session": {
			arrange: func() inputs {
				return inputs{store: newFakeStore()}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, "u1", ss.UserID)
				require.False(t, ss.Registered())
				require.Zero(t, ss.TotalPoints)
				require.Empty(t, ss.Solved)
				require.True(t, ss.Durable)
			},
		},

		"store values win over the mirror": {
			arrange: func() inputs {
				st := newFakeStore()
				st.users["u1"] = &domain.User{Profile: domain.Profile{UserID: "u1", DisplayName: "Ravi"}, TotalPoints: 15, SolvedCount: 1}
				st.solved["u1"] = []string{"p1"}

				m := session.New("u1")
				m.DisplayName = "Ravi"
				m.Award("p1", 15)
				m.Award("p2", 12)
				m.Durable = false

				return inputs{store: st, mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, 15, ss.TotalPoints)
				require.Equal(t, 1, ss.SolvedCount)
				require.Equal(t, []string{"p1"}, ss.SolvedIDs())
				require.True(t, ss.Durable)
			},
		},

		"pending awards stay on top of the store counters": {
			arrange: func() inputs {
				st := newFakeStore()
				st.users["u1"] = &domain.User{Profile: domain.Profile{UserID: "u1", DisplayName: "Ravi"}, TotalPoints: 15, SolvedCount: 1}
				st.solved["u1"] = []string{"p1"}

				m := session.New("u1")
				m.DisplayName = "Ravi"
				m.Award("p1", 15)
				m.AwardPending("p2", 17)

				return inputs{store: st, mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, 32, ss.TotalPoints)
				require.Equal(t, 2, ss.SolvedCount)
				require.Equal(t, []string{"p1", "p2"}, ss.SolvedIDs())
				require.Equal(t, map[string]int{"p2": 17}, ss.Pending)
				require.False(t, ss.Durable)
			},
		},

		"pending awards already in the store are dropped": {
			arrange: func() inputs {
				st := newFakeStore()
				st.users["u1"] = &domain.User{Profile: domain.Profile{UserID: "u1", DisplayName: "Ravi"}, TotalPoints: 17, SolvedCount: 1}
				st.solved["u1"] = []string{"p2"}

				m := session.New("u1")
				m.DisplayName = "Ravi"
				m.AwardPending("p2", 17)

				return inputs{store: st, mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, 17, ss.TotalPoints)
				require.Equal(t, 1, ss.SolvedCount)
				require.Empty(t, ss.Pending)
				require.True(t, ss.Durable)
			},
		},

		"unreachable store falls back to the mirror": {
			arrange: func() inputs {
				st := newFakeStore()
				st.getErr = errors.Persistence("get user", stderrors.New("connection refused"))

				m := session.New("u1")
				m.DisplayName = "Ravi"
				m.Award("p1", 15)

				return inputs{store: st, mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, "Ravi", ss.DisplayName)
				require.Equal(t, 15, ss.TotalPoints)
				require.True(t, ss.HasSolved("p1"))
				require.False(t, ss.Durable)
			},
		},

		"unreachable store without mirror yields a non-durable empty session": {
			arrange: func() inputs {
				st := newFakeStore()
				st.getErr = errors.Persistence("get user", stderrors.New("connection refused"))
				return inputs{store: st}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Zero(t, ss.TotalPoints)
				require.False(t, ss.Durable)
			},
		},

		"user unknown to the store keeps the locally registered profile": {
			arrange: func() inputs {
				m := session.New("u1")
				m.DisplayName = "Sita"
				m.Durable = false
				return inputs{store: newFakeStore(), mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.True(t, ss.Registered())
				require.False(t, ss.Durable)
			},
		},

		"solved ids fall back to the mirror": {
			arrange: func() inputs {
				st := newFakeStore()
				st.users["u1"] = &domain.User{Profile: domain.Profile{UserID: "u1", DisplayName: "Ravi"}, TotalPoints: 15, SolvedCount: 1}
				st.solvedErr = errors.Persistence("solved prompts", stderrors.New("timeout"))

				m := session.New("u1")
				m.Award("p1", 15)

				return inputs{store: st, mirror: m}
			},
			assert: func(t *testing.T, ss *session.Session) {
				require.Equal(t, []string{"p1"}, ss.SolvedIDs())
				require.False(t, ss.Durable)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			in := tt.arrange()
			s := makeService(t, in.store, session.FailOpen)

			if in.mirror != nil {
				s.Save(context.Background(), in.mirror)
			}

			ss, err := s.Start(context.Background(), "u1")
			require.NoError(t, err)
			tt.assert(t, ss)
		})
	}
}

func TestService_Start_MissingUserID(t *testing.T) {
	s := makeService(t, newFakeStore(), session.FailOpen)

	_, err := s.Start(context.Background(), " ")
	require.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the trimmed profile", func(t *testing.T) {
		st := newFakeStore()
		s := makeService(t, st, session.FailOpen)
		ss := session.New("u1")

		durable, err := s.Register(ctx, ss, domain.Profile{DisplayName: "  Ravi ", Location: " Guntur ", Dialect: "Coastal Andhra", AgeGroup: "18-25"})
		require.NoError(t, err)
		require.True(t, durable)
		require.Equal(t, domain.Profile{UserID: "u1", DisplayName: "Ravi", Location: "Guntur", Dialect: "Coastal Andhra", AgeGroup: "18-25"}, st.users["u1"].Profile)
		require.Equal(t, "Ravi", ss.DisplayName)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		s := makeService(t, newFakeStore(), session.FailOpen)

		_, err := s.Register(ctx, session.New("u1"), domain.Profile{DisplayName: "   "})
		e := errors.Convert(err)
		require.Equal(t, errors.CodeInvalidArgument, e.Code)
		require.Equal(t, "MISSING_NAME", e.Reason)
	})

	t.Run("fail open keeps the profile locally", func(t *testing.T) {
		st := newFakeStore()
		st.upsertErr = errors.Persistence("upsert user", stderrors.New("read-only"))
		s := makeService(t, st, session.FailOpen)
		ss := session.New("u1")

		durable, err := s.Register(ctx, ss, domain.Profile{DisplayName: "Ravi"})
		require.NoError(t, err)
		require.False(t, durable)
		require.True(t, ss.Registered())
		require.False(t, ss.Durable)
	})

	t.Run("fail closed surfaces the error", func(t *testing.T) {
		st := newFakeStore()
		st.upsertErr = errors.Persistence("upsert user", stderrors.New("read-only"))
		s := makeService(t, st, session.FailClosed)
		ss := session.New("u1")

		_, err := s.Register(ctx, ss, domain.Profile{DisplayName: "Ravi"})
		require.True(t, errors.Is(err, errors.CodeUnavailable))
		require.False(t, ss.Registered())
		require.True(t, ss.Durable)
	})
}

func TestService_Save_WithoutRedis(t *testing.T) {
	s := session.NewService(session.Config{Store: newFakeStore()})
	s.Save(context.Background(), session.New("u1"))
	require.Equal(t, session.FailOpen, s.Policy(), "fail open is the default policy")
}

func makeService(t *testing.T, st session.Store, policy session.WritePolicy) *session.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return session.NewService(session.Config{
		Store:  st,
		Redis:  rc,
		Prefix: "test",
		Policy: policy,
	})
}

type fakeStore struct {
	users     map[string]*domain.User
	solved    map[string][]string
	getErr    error
	solvedErr error
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*domain.User),
		solved: make(map[string][]string),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	u, ok := f.users[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound)
	}

	cp := *u
	return &cp, nil
}

func (f *fakeStore) SolvedPromptIDs(_ context.Context, id string) ([]string, error) {
	if f.solvedErr != nil {
		return nil, f.solvedErr
	}

	return f.solved[id], nil
}

func (f *fakeStore) UpsertUser(_ context.Context, p domain.Profile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}

	u, ok := f.users[p.UserID]
	if !ok {
		u = &domain.User{}
		f.users[p.UserID] = u
	}
	u.Profile = p

	return nil
}
