// Package keywords decides which domain keywords appear in opportunity text.
package keywords

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"github.com/david/proposaland/internal/textnorm"
)

const (
	// DefaultWeight applies to keywords missing from the weight table.
	DefaultWeight = 0.5

	multiMatchStep = 0.05
	multiMatchCap  = 0.2

	// DefaultContextWidth is the number of characters Context keeps on
	// each side of a match.
	DefaultContextWidth = 50
)

// DefaultWeights is the keyword weight table used when configuration
// supplies none.
var DefaultWeights = map[string]float64{
	"video":          1.0,
	"multimedia":     1.0,
	"film":           1.0,
	"animation":      1.0,
	"audiovisual":    1.0,
	"animated video": 1.0,
	"photo":          0.8,
	"design":         0.8,
	"visual":         0.8,
	"media":          0.8,
	"communication":  0.8,
	"campaign":       0.6,
	"podcasts":       0.6,
	"virtual event":  0.6,
	"promotion":      0.6,
}

// Config configures an Engine.
type Config struct {
	Primary    []string
	Exclusions []string
	// Weights replaces DefaultWeights when non-empty.
	Weights map[string]float64
	// MinimumScore is the score Assess requires for relevance.
	MinimumScore float64
}

// rule is the compiled form of one primary keyword.
type rule struct {
	keyword  string
	phrase   string
	tokens   []string
	variants []string
}

func compileRule(keyword string) (rule, bool) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	tokens := textnorm.Tokens(kw)
	if len(tokens) == 0 {
		return rule{}, false
	}
	r := rule{keyword: kw, phrase: strings.Join(tokens, " "), tokens: tokens}
	if len(tokens) == 1 {
		r.variants = pluralVariants(tokens[0])
	}
	return r, true
}

func pluralVariants(tok string) []string {
	out := []string{tok}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range out {
			if existing == v {
				return
			}
		}
		out = append(out, v)
	}
	if strings.HasSuffix(tok, "ies") {
		add(strings.TrimSuffix(tok, "ies") + "y")
	}
	if strings.HasSuffix(tok, "es") {
		add(strings.TrimSuffix(tok, "es"))
	}
	if strings.HasSuffix(tok, "s") {
		add(strings.TrimSuffix(tok, "s"))
	}
	return out
}

// matches reports whether the rule fires on normalized text tokens.
func (r rule) matches(tokens []string) bool {
	n := len(r.tokens)
	if containsRun(tokens, r.tokens) {
		return true
	}

	if n > 1 {
		for i := 0; i+n <= len(tokens); i++ {
			if Similarity(strings.Join(tokens[i:i+n], " "), r.phrase) >= SimilarityThreshold {
				return true
			}
		}
		return false
	}

	for _, v := range r.variants {
		if containsRun(tokens, []string{v}) {
			return true
		}
	}
	first, _ := utf8.DecodeRuneInString(r.phrase)
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}
		if c, _ := utf8.DecodeRuneInString(tok); c != first {
			continue
		}
		if Similarity(tok, r.phrase) >= SimilarityThreshold {
			return true
		}
	}
	return false
}

// containsRun reports whether needle occurs as a contiguous run of tokens.
func containsRun(tokens, needle []string) bool {
	n := len(needle)
	for i := 0; i+n <= len(tokens); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if tokens[i+j] != needle[j] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Engine holds compiled keyword rules. It is immutable after New and safe
// for concurrent use.
type Engine struct {
	rules        []rule
	exclusions   []string
	excl         *ahocorasick.Matcher
	weights      map[string]float64
	totalWeight  float64
	minimumScore float64
}

func New(cfg Config) *Engine {
	e := &Engine{minimumScore: cfg.MinimumScore}

	seen := make(map[string]struct{})
	for _, kw := range cfg.Primary {
		r, ok := compileRule(kw)
		if !ok {
			continue
		}
		if _, dup := seen[r.keyword]; dup {
			continue
		}
		seen[r.keyword] = struct{}{}
		e.rules = append(e.rules, r)
	}

	exSeen := make(map[string]struct{})
	for _, ex := range cfg.Exclusions {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex == "" {
			continue
		}
		if _, dup := exSeen[ex]; dup {
			continue
		}
		exSeen[ex] = struct{}{}
		e.exclusions = append(e.exclusions, ex)
	}
	if len(e.exclusions) > 0 {
		e.excl = ahocorasick.NewStringMatcher(e.exclusions)
	}

	src := cfg.Weights
	if len(src) == 0 {
		src = DefaultWeights
	}
	e.weights = make(map[string]float64, len(src))
	for k, w := range src {
		e.weights[strings.ToLower(strings.TrimSpace(k))] = w
	}
	for _, w := range e.weights {
		e.totalWeight += w
	}
	return e
}

// Primary returns the configured keywords in order, lower-cased.
func (e *Engine) Primary() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.keyword
	}
	return out
}

// Extract returns the primary keywords found in text, in configured order.
func (e *Engine) Extract(text string) []string {
	tokens := textnorm.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	var found []string
	for _, r := range e.rules {
		if r.matches(tokens) {
			found = append(found, r.keyword)
		}
	}
	return found
}

// HasExclusions reports the exclusion phrases contained in text, in
// configured order.
func (e *Engine) HasExclusions(text string) (bool, []string) {
	if e.excl == nil || text == "" {
		return false, nil
	}
	hits := e.excl.MatchThreadSafe([]byte(strings.ToLower(text)))
	if len(hits) == 0 {
		return false, nil
	}
	sort.Ints(hits)
	found := make([]string, 0, len(hits))
	for _, i := range hits {
		found = append(found, e.exclusions[i])
	}
	return true, found
}

// Weight returns the configured weight of keyword.
func (e *Engine) Weight(keyword string) float64 {
	if w, ok := e.weights[strings.ToLower(keyword)]; ok {
		return w
	}
	return DefaultWeight
}

// Score rates a set of found keywords in [0,1].
func (e *Engine) Score(found []string) float64 {
	if len(found) == 0 || e.totalWeight <= 0 {
		return 0
	}
	var sum float64
	for _, k := range found {
		sum += e.Weight(k)
	}
	score := math.Min(1, sum/e.totalWeight)
	if len(found) > 1 {
		score = math.Min(1, score+math.Min(multiMatchCap, multiMatchStep*float64(len(found))))
	}
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return score
}

// Match is the keyword outcome for one text.
type Match struct {
	Keywords []string `json:"keywords"`
	Score    float64  `json:"keyword_score"`
}

func (e *Engine) Evaluate(text string) Match {
	found := e.Extract(text)
	return Match{Keywords: found, Score: e.Score(found)}
}

// Assessment is the relevance verdict for a title and description.
type Assessment struct {
	Relevant   bool     `json:"is_relevant"`
	Keywords   []string `json:"found_keywords"`
	Score      float64  `json:"keyword_score"`
	Exclusions []string `json:"exclusion_keywords,omitempty"`
}

// Assess combines extraction, exclusion and scoring. A text is relevant when
// it has at least one keyword, no exclusion and a score of at least the
// configured minimum.
func (e *Engine) Assess(title, description string) Assessment {
	text := title + " " + description
	m := e.Evaluate(text)
	excluded, ex := e.HasExclusions(text)
	return Assessment{
		Relevant:   len(m.Keywords) > 0 && !excluded && m.Score >= e.minimumScore,
		Keywords:   m.Keywords,
		Score:      m.Score,
		Exclusions: ex,
	}
}
