// Package config loads the classification settings: keywords, filters,
// scoring weights, priority thresholds and per-source priorities.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"

	"github.com/david/proposaland/internal/refs"
	"github.com/david/proposaland/internal/textnorm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultSourcePriority applies to sources missing from target_websites.
const DefaultSourcePriority = 0.5

var (
	ErrWeightsExceedOne = errors.New("scoring weights must sum to at most 1")
	ErrWeightRange      = errors.New("scoring weight out of [0,1]")
	ErrThresholdOrder   = errors.New("priority thresholds must satisfy 0 <= medium <= high <= critical <= 1")
	ErrBudgetRange      = errors.New("budget filters must satisfy 0 <= min_budget <= max_budget")
	ErrSourcePriority   = errors.New("source priority out of [0,1]")
)

type Config struct {
	Keywords           KeywordsConfig   `yaml:"keywords" json:"keywords"`
	GeographicFilters  GeoConfig        `yaml:"geographic_filters" json:"geographic_filters"`
	BudgetFilters      BudgetConfig     `yaml:"budget_filters" json:"budget_filters"`
	DeadlineFilters    DeadlineConfig   `yaml:"deadline_filters" json:"deadline_filters"`
	ScoringWeights     WeightsConfig    `yaml:"scoring_weights" json:"scoring_weights"`
	PriorityThresholds ThresholdsConfig `yaml:"priority_thresholds" json:"priority_thresholds"`
	TargetWebsites     WebsitesConfig   `yaml:"target_websites" json:"target_websites"`
	ReferencePatterns  PatternsConfig   `yaml:"reference_patterns" json:"reference_patterns"`
	Output             OutputConfig     `yaml:"output" json:"output"`
	Processing         ProcessingConfig `yaml:"processing" json:"processing"`
}

type KeywordsConfig struct {
	Primary      []string           `yaml:"primary" json:"primary"`
	Exclusions   []string           `yaml:"exclusions" json:"exclusions"`
	MinimumScore float64            `yaml:"minimum_score" json:"minimum_score"`
	Weights      map[string]float64 `yaml:"weights" json:"weights"`
}

type GeoConfig struct {
	ExcludedCountries []string            `yaml:"excluded_countries" json:"excluded_countries"`
	IncludedCountries []string            `yaml:"included_countries" json:"included_countries"`
	ExcludedRegions   []string            `yaml:"excluded_regions" json:"excluded_regions"`
	Aliases           map[string][]string `yaml:"aliases" json:"aliases,omitempty"`
}

type BudgetConfig struct {
	MinBudget float64 `yaml:"min_budget" json:"min_budget"`
	MaxBudget float64 `yaml:"max_budget" json:"max_budget"`
	// EnforceMaximum also drops records whose budget exceeds MaxBudget.
	EnforceMaximum bool `yaml:"enforce_maximum" json:"enforce_maximum"`
}

type DeadlineConfig struct {
	MinimumDays int `yaml:"minimum_days" json:"minimum_days"`
}

type WeightsConfig struct {
	KeywordMatch         float64 `yaml:"keyword_match" json:"keyword_match"`
	BudgetRange          float64 `yaml:"budget_range" json:"budget_range"`
	DeadlineUrgency      float64 `yaml:"deadline_urgency" json:"deadline_urgency"`
	SourcePriority       float64 `yaml:"source_priority" json:"source_priority"`
	ReferenceNumberBonus float64 `yaml:"reference_number_bonus" json:"reference_number_bonus"`
}

func (w WeightsConfig) Sum() float64 {
	return w.KeywordMatch + w.BudgetRange + w.DeadlineUrgency + w.SourcePriority + w.ReferenceNumberBonus
}

type ThresholdsConfig struct {
	Critical float64 `yaml:"critical" json:"critical"`
	High     float64 `yaml:"high" json:"high"`
	Medium   float64 `yaml:"medium" json:"medium"`
}

// Website is one monitored source.
type Website struct {
	Name     string  `yaml:"name" json:"name"`
	URL      string  `yaml:"url" json:"url"`
	Type     string  `yaml:"type" json:"type"`
	Priority float64 `yaml:"priority" json:"priority"`
}

type WebsitesConfig struct {
	HighPriority   []Website `yaml:"high_priority" json:"high_priority"`
	MediumPriority []Website `yaml:"medium_priority" json:"medium_priority"`
	LowPriority    []Website `yaml:"low_priority" json:"low_priority"`
}

// All returns every website, high priority first.
func (w WebsitesConfig) All() []Website {
	out := make([]Website, 0, len(w.HighPriority)+len(w.MediumPriority)+len(w.LowPriority))
	out = append(out, w.HighPriority...)
	out = append(out, w.MediumPriority...)
	return append(out, w.LowPriority...)
}

type PatternsConfig struct {
	MinConfidence float64            `yaml:"min_confidence" json:"min_confidence"`
	Custom        []refs.PatternSpec `yaml:"custom" json:"custom"`
}

type OutputConfig struct {
	TopOpportunities int `yaml:"top_opportunities" json:"top_opportunities"`
}

type ProcessingConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return &cfg
}

// Load reads the YAML file at path on top of the defaults. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// tables marks which map-valued keys a document sets. yaml.v3 merges a
// mapping into an existing map, so those maps are reset before decoding.
type tables struct {
	Keywords struct {
		Weights yaml.Node `yaml:"weights"`
	} `yaml:"keywords"`
	GeographicFilters struct {
		Aliases yaml.Node `yaml:"aliases"`
	} `yaml:"geographic_filters"`
}

// Parse decodes data over the defaults and validates the result. Keys
// absent from data keep their default values; a weight or alias table in
// data replaces the default table instead of extending it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := []byte(os.ExpandEnv(string(data)))

	var set tables
	if err := yaml.Unmarshal(expanded, &set); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if set.Keywords.Weights.Kind != 0 {
		cfg.Keywords.Weights = nil
	}
	if set.GeographicFilters.Aliases.Kind != 0 {
		cfg.GeographicFilters.Aliases = nil
	}

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric invariants of the configuration.
func (c *Config) Validate() error {
	w := c.ScoringWeights
	for name, v := range map[string]float64{
		"keyword_match":          w.KeywordMatch,
		"budget_range":           w.BudgetRange,
		"deadline_urgency":       w.DeadlineUrgency,
		"source_priority":        w.SourcePriority,
		"reference_number_bonus": w.ReferenceNumberBonus,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%v", ErrWeightRange, name, v)
		}
	}
	if sum := w.Sum(); sum > 1+1e-9 {
		return fmt.Errorf("%w: got %.4f", ErrWeightsExceedOne, sum)
	}

	t := c.PriorityThresholds
	if !(0 <= t.Medium && t.Medium <= t.High && t.High <= t.Critical && t.Critical <= 1) {
		return fmt.Errorf("%w: critical=%v high=%v medium=%v", ErrThresholdOrder, t.Critical, t.High, t.Medium)
	}

	b := c.BudgetFilters
	if b.MinBudget < 0 || b.MaxBudget < b.MinBudget {
		return fmt.Errorf("%w: min=%v max=%v", ErrBudgetRange, b.MinBudget, b.MaxBudget)
	}

	for _, site := range c.TargetWebsites.All() {
		if site.Priority < 0 || site.Priority > 1 {
			return fmt.Errorf("%w: %s=%v", ErrSourcePriority, site.Name, site.Priority)
		}
	}
	return nil
}

// SourcePriority returns the priority configured for a record's organization
// or, failing that, for the website whose host matches sourceURL. An exact
// name wins; otherwise the first site whose name contains the organization,
// or is contained in it, as whole words.
func (c *Config) SourcePriority(organization, sourceURL string) float64 {
	sites := c.TargetWebsites.All()
	if org := textnorm.Normalize(organization); org != "" {
		for _, site := range sites {
			if textnorm.Normalize(site.Name) == org {
				return site.Priority
			}
		}
		for _, site := range sites {
			if name := textnorm.Normalize(site.Name); name != "" && (containsWords(org, name) || containsWords(name, org)) {
				return site.Priority
			}
		}
	}
	if host := hostOf(sourceURL); host != "" {
		for _, site := range sites {
			if h := hostOf(site.URL); h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
				return site.Priority
			}
		}
	}
	return DefaultSourcePriority
}

// containsWords reports whether the token run needle occurs in haystack.
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
