package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/bhasha/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs      []string
		Prefix     string
		SessionTTL time.Duration
	}

	Scoring struct {
		WritePolicy string
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "bhasha"
	c.Redis.SessionTTL = time.Hour
	c.Scoring.WritePolicy = "fail_open"
	return c
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) string
		assert  func(t *testing.T, c testConfig, err error)
	}{
		"should keep defaults for keys missing from the file": {
			arrange: func(t *testing.T) string {
				return writeFile(t, "http:\n  port: 9090\n")
			},

			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				require.EqualValues(t, 9090, c.HTTP.Port)
				require.Equal(t, "bhasha", c.Redis.Prefix)
				require.Equal(t, []string{"localhost:6379"}, c.Redis.Addrs)
			},
		},

		"should decode durations and lists": {
			arrange: func(t *testing.T) string {
				return writeFile(t, "redis:\n  addrs: [\"r1:6379\", \"r2:6379\"]\n  sessionttl: 48h\n")
			},

			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				require.Equal(t, []string{"r1:6379", "r2:6379"}, c.Redis.Addrs)
				require.Equal(t, 48*time.Hour, c.Redis.SessionTTL)
			},
		},

		"should let the environment override the file": {
			arrange: func(t *testing.T) string {
				t.Setenv("SCORING_WRITEPOLICY", "fail_closed")
				return writeFile(t, "scoring:\n  writepolicy: fail_open\n")
			},

			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				require.Equal(t, "fail_closed", c.Scoring.WritePolicy)
			},
		},

		"should read the environment only without a file": {
			arrange: func(t *testing.T) string {
				t.Setenv("REDIS_PREFIX", "test")
				return ""
			},

			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				require.Equal(t, "test", c.Redis.Prefix)
				require.EqualValues(t, 8080, c.HTTP.Port)
			},
		},

		"should fail on a missing file": {
			arrange: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.yaml")
			},

			assert: func(t *testing.T, _ testConfig, err error) {
				require.Error(t, err)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			file := tt.arrange(t)

			c := defaults()
			err := config.Load(file, &c)

			tt.assert(t, c, err)
		})
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	return p
}
