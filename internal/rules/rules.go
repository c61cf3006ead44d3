// Package rules holds the per-platform extraction rule table. The table is
// data: tracking markup changes on a shop means editing rules.yaml (or the
// file named by RULES_FILE), not the scraper.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/platform"
)

//go:embed rules.yaml
var defaultRules []byte

var ErrNoPlatforms = errors.New("rule table has no platforms")

// PlatformRule is everything the scraper needs to know about one shop.
type PlatformRule struct {
	Platform   models.Platform                 `yaml:"platform"`
	URLMarkers []string                        `yaml:"url_markers"`
	Settle     time.Duration                   `yaml:"settle"`
	Fields     map[extract.Field][]extract.Rule `yaml:"fields"`
}

// Rules returns the ordered rules for field.
func (p PlatformRule) Rules(field extract.Field) []extract.Rule {
	return p.Fields[field]
}

// Table is loaded once at startup and only read afterwards, so it is safe to
// share between concurrent extractions.
type Table struct {
	Version   int            `yaml:"version"`
	Platforms []PlatformRule `yaml:"platforms"`

	byPlatform map[models.Platform]PlatformRule
	resolver   *platform.Resolver
}

// Default returns the embedded rule table.
func Default() (*Table, error) {
	return Parse(defaultRules)
}

// Load reads a rule table from path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return t, nil
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	t.byPlatform = make(map[models.Platform]PlatformRule, len(t.Platforms))
	groups := make([]platform.MarkerGroup, 0, len(t.Platforms))
	for _, p := range t.Platforms {
		t.byPlatform[p.Platform] = p
		groups = append(groups, platform.MarkerGroup{Platform: p.Platform, Markers: p.URLMarkers})
	}
	t.resolver = platform.NewResolver(groups)

	return &t, nil
}

// Validate checks that every platform is known, appears once, has URL markers
// and has at least one usable rule for name and price.
func (t *Table) Validate() error {
	if len(t.Platforms) == 0 {
		return ErrNoPlatforms
	}

	seen := make(map[models.Platform]bool)
	for i, p := range t.Platforms {
		if models.ParsePlatform(string(p.Platform)) == models.PlatformUnknown {
			return fmt.Errorf("platform %d: unknown platform %q", i, p.Platform)
		}
		if seen[p.Platform] {
			return fmt.Errorf("platform %s listed twice", p.Platform)
		}
		seen[p.Platform] = true

		if len(p.URLMarkers) == 0 {
			return fmt.Errorf("platform %s: url_markers are required", p.Platform)
		}
		if p.Settle < 0 {
			return fmt.Errorf("platform %s: settle must not be negative", p.Platform)
		}

		for _, field := range []extract.Field{extract.FieldName, extract.FieldPrice} {
			if len(p.Fields[field]) == 0 {
				return fmt.Errorf("platform %s: no rules for %s", p.Platform, field)
			}
		}
		for field, rules := range p.Fields {
			for j, r := range rules {
				if err := r.Validate(); err != nil {
					return fmt.Errorf("platform %s: %s rule %d: %w", p.Platform, field, j, err)
				}
			}
		}
	}
	return nil
}

// Lookup returns the rule for a platform.
func (t *Table) Lookup(p models.Platform) (PlatformRule, bool) {
	rule, ok := t.byPlatform[p]
	return rule, ok
}

// Resolve classifies url using the table's URL markers in table order.
func (t *Table) Resolve(url string) models.Platform {
	return t.resolver.Resolve(url)
}
