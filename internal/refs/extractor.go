package refs

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/proposaland/internal/textnorm"
	"go.uber.org/zap"
)

const (
	contextRadius   = 50
	indicatorRadius = 30

	familyBonus         = 0.10
	indicatorStep       = 0.03
	indicatorCap        = 0.15
	shortPenalty        = 0.20
	longPenalty         = 0.10
	currentYearBonus    = 0.05
	nonReferencePenalty = 0.30

	// DefaultMinConfidence is the cut used by ExtractAbove callers that have
	// no configured value.
	DefaultMinConfidence = 0.7
)

// Candidate is one identifier found in a text.
type Candidate struct {
	Identifier         string  `json:"identifier"`
	Confidence         float64 `json:"confidence"`
	PatternDescription string  `json:"pattern_description"`
	Family             Family  `json:"organization_family"`
	Position           int     `json:"position"`
	Context            string  `json:"surrounding_context"`
}

// Skip records a match that could not be turned into a candidate.
type Skip struct {
	Pattern  string `json:"pattern"`
	Family   Family `json:"family"`
	Position int    `json:"position"`
	Err      error  `json:"-"`
}

// Result is the full outcome of one extraction.
type Result struct {
	Detected   Family      `json:"detected_family"`
	Candidates []Candidate `json:"candidates"`
	Skipped    []Skip      `json:"skipped,omitempty"`
}

// Extractor finds reference identifiers using a Library. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	lib    *Library
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Extractor)

// WithClock sets the clock used for the current-year bonus.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns an extractor over lib, or over Default() when lib is nil.
func NewExtractor(lib *Library, opts ...Option) *Extractor {
	if lib == nil {
		lib = Default()
	}
	e := &Extractor{lib: lib, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Library() *Library { return e.lib }

// Extract returns candidates sorted by descending confidence.
func (e *Extractor) Extract(text, context string) []Candidate {
	return e.Analyze(text, context).Candidates
}

// Best returns the highest-confidence candidate.
func (e *Extractor) Best(text, context string) (Candidate, bool) {
	cands := e.Extract(text, context)
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}

// ExtractAbove keeps candidates whose confidence is at least min.
func (e *Extractor) ExtractAbove(text, context string, min float64) []Candidate {
	var out []Candidate
	for _, c := range e.Extract(text, context) {
		if c.Confidence >= min {
			out = append(out, c)
		}
	}
	return out
}

// Analyze runs every pattern group over text and reports candidates and skips.
func (e *Extractor) Analyze(text, context string) Result {
	res := Result{Detected: DetectFamily(context, text)}
	if strings.TrimSpace(text) == "" {
		return res
	}

	year := strconv.Itoa(e.now().Year())
	var found []Candidate

	for _, fam := range order(res.Detected) {
		for _, p := range e.lib.groups[fam] {
			for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
				pos := utf8.RuneCountInString(text[:loc[0]])
				id, err := p.identifier(text, loc)
				if err != nil {
					res.Skipped = append(res.Skipped, Skip{
						Pattern:  p.spec.Description,
						Family:   fam,
						Position: pos,
						Err:      err,
					})
					e.logger.Warn("reference pattern skipped",
						zap.String("pattern", p.spec.Description),
						zap.Int("position", pos),
						zap.Error(err))
					continue
				}
				found = append(found, Candidate{
					Identifier:         id,
					Confidence:         e.confidence(p, id, text, loc[0], loc[1], res.Detected, year),
					PatternDescription: p.spec.Description,
					Family:             fam,
					Position:           pos,
					Context:            window(text, loc[0], loc[1], contextRadius),
				})
			}
		}
	}

	res.Candidates = dedupe(found)
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Confidence > res.Candidates[j].Confidence
	})
	return res
}

func (e *Extractor) confidence(p Pattern, id, text string, start, end int, detected Family, year string) float64 {
	conf := p.spec.Confidence

	if p.spec.Family == detected {
		conf += familyBonus
	}

	near := textnorm.Fold(window(text, start, end, indicatorRadius))
	conf += math.Min(indicatorCap, indicatorStep*float64(countIndicators(near)))

	switch n := utf8.RuneCountInString(id); {
	case n < 4:
		conf -= shortPenalty
	case n > 20:
		conf -= longPenalty
	}

	if strings.Contains(id, year) {
		conf += currentYearBonus
	}
	if looksLikeNonReference(id) {
		conf -= nonReferencePenalty
	}
	return clamp01(conf)
}

// dedupe keeps one candidate per canonical identifier: the one with the
// higher confidence, or the first seen on a tie.
func dedupe(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	index := make(map[string]int, len(in))
	for _, c := range in {
		key := CanonicalKey(c.Identifier)
		if i, ok := index[key]; ok {
			if c.Confidence > out[i].Confidence {
				out[i] = c
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	return out
}

// CanonicalKey strips separators and upper-cases an identifier.
func CanonicalKey(id string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, id))
}

// window returns the match text[start:end] widened by radius characters on
// each side. start and end are byte offsets.
func window(text string, start, end, radius int) string {
	lo := start
	for n := 0; n < radius && lo > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		lo -= size
	}
	hi := end
	for n := 0; n < radius && hi < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[hi:])
		hi += size
	}
	return text[lo:hi]
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var referenceIndicators = wordSet(
	"reference", "ref", "number", "no", "id", "tender", "rfp", "rfq",
	"procurement", "solicitation", "opportunity", "notice",
)

func countIndicators(folded string) int {
	seen := make(map[string]struct{})
	for _, m := range referenceIndicators.FindAllString(folded, -1) {
		seen[m] = struct{}{}
	}
	return len(seen)
}

// wordSet compiles a boundary-aware alternation over words.
func wordSet(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// FormatSummary renders up to three candidates, one per line.
func FormatSummary(cands []Candidate) string {
	if len(cands) == 0 {
		return "No reference numbers found"
	}
	var b strings.Builder
	for i, c := range cands {
		if i == 3 {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s (confidence: %.2f, type: %s)", i+1, c.Identifier, c.Confidence, c.Family)
	}
	return b.String()
}
