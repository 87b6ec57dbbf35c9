package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/victornm/bhasha/internal/domain"
)

//go:embed catalog.yaml
var builtin []byte

// Catalog is the ordered, immutable list of prompts.
type Catalog struct {
	prompts []domain.Prompt
	index   map[string]int
}

type definition struct {
	Prompts []domain.Prompt `yaml:"prompts"`
}

// Default returns the compiled-in catalog.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog definition from file. An empty path yields the compiled-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var d definition
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal: %w", err)
	}

	return New(d.Prompts)
}

// New validates prompts and builds a catalog preserving their order.
func New(prompts []domain.Prompt) (*Catalog, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("catalog: no prompts")
	}

	c := &Catalog{
		prompts: make([]domain.Prompt, 0, len(prompts)),
		index:   make(map[string]int, len(prompts)),
	}

	for i, p := range prompts {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("catalog: prompt #%d: %w", i, err)
		}
		if _, ok := c.index[p.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate prompt id %q", p.ID)
		}

		c.index[p.ID] = len(c.prompts)
		c.prompts = append(c.prompts, p)
	}

	return c, nil
}

func validate(p domain.Prompt) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("missing id")
	case p.Difficulty < 1 || p.Difficulty > 3:
		return fmt.Errorf("%s: difficulty %d out of range 1..3", p.ID, p.Difficulty)
	case p.PointsValue <= 0:
		return fmt.Errorf("%s: points value must be positive", p.ID)
	case p.UnlockThreshold < 0:
		return fmt.Errorf("%s: negative unlock threshold", p.ID)
	}

	return nil
}

// Prompts returns a copy of the catalog in order.
func (c *Catalog) Prompts() []domain.Prompt {
	out := make([]domain.Prompt, len(c.prompts))
	copy(out, c.prompts)
	return out
}

func (c *Catalog) Len() int {
	return len(c.prompts)
}

func (c *Catalog) ByID(id string) (domain.Prompt, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Prompt{}, false
	}

	return c.prompts[i], true
}

// First returns the first prompt of the catalog, the one shown when nothing else is known.
func (c *Catalog) First() domain.Prompt {
	return c.prompts[0]
}
