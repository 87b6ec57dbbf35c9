package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/bhasha/internal/catalog"
	"github.com/victornm/bhasha/internal/domain"
)

func TestDefault(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	require.Equal(t, 6, c.Len())

	ps := c.Prompts()
	require.Equal(t, "telangana_bathukamma_001", ps[0].ID)
	require.Equal(t, 0, ps[0].UnlockThreshold)
	require.Equal(t, ps[0], c.First())

	for i, p := range ps {
		require.Equal(t, i, p.UnlockThreshold, "builtin thresholds unlock one prompt per wave")
		require.NotEmpty(t, p.LocalizedTitle)
	}

	p, ok := c.ByID("wedding_customs_006")
	require.True(t, ok)
	require.Equal(t, 20, p.PointsValue)
	require.Equal(t, 3, p.Difficulty)

	_, ok = c.ByID("missing")
	require.False(t, ok)
}

func TestNew_Invalid(t *testing.T) {
	valid := domain.Prompt{ID: "p1", Difficulty: 1, PointsValue: 10}

	tests := map[string][]domain.Prompt{
		"empty":              nil,
		"missing id":         {{Difficulty: 1, PointsValue: 10}},
		"difficulty too low": {{ID: "p1", Difficulty: 0, PointsValue: 10}},
		"difficulty too big": {{ID: "p1", Difficulty: 4, PointsValue: 10}},
		"zero points":        {{ID: "p1", Difficulty: 1}},
		"negative threshold": {{ID: "p1", Difficulty: 1, PointsValue: 10, UnlockThreshold: -1}},
		"duplicate id":       {valid, valid},
	}

	for name, prompts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.New(prompts)
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
prompts:
  - id: a
    title: A
    difficulty: 1
    points_value: 5
  - id: b
    title: B
    difficulty: 2
    points_value: 7
    unlock_threshold: 1
`), 0o600))

	c, err := catalog.Load(p)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	b, ok := c.ByID("b")
	require.True(t, ok)
	require.Equal(t, 1, b.UnlockThreshold)

	// Mutating the returned slice must not leak into the catalog.
	ps := c.Prompts()
	ps[0].PointsValue = 99
	a, _ := c.ByID("a")
	require.Equal(t, 5, a.PointsValue)

	_, err = catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
