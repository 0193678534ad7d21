// Package scoring filters candidate opportunities, computes their weighted
// relevance score, assigns priority tiers and ranks them.
package scoring

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/models"
	"github.com/david/proposaland/internal/textnorm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const daysPerYear = 365

// Record is one opportunity after keyword and reference analysis.
type Record struct {
	Title        string
	Description  string
	Organization string
	Location     string
	SourceURL    string
	// Budget is the numeric budget; zero or negative means unknown.
	Budget   float64
	Currency string
	Deadline *time.Time

	Keywords            []string
	Exclusions          []string
	ReferenceNumber     string
	ReferenceConfidence float64

	// Failure is set when an upstream pass could not analyze the record;
	// such records are dropped as evaluation_failed.
	Failure string
}

// DropReason says why pre-filtering removed a record.
type DropReason string

const (
	DropLocationExcluded  DropReason = "location_excluded"
	DropExclusionKeyword  DropReason = "exclusion_keyword"
	DropNoKeywords        DropReason = "no_keywords"
	DropBudgetBelowMin    DropReason = "budget_below_minimum"
	DropBudgetAboveMax    DropReason = "budget_above_maximum"
	DropDeadlineTooSoon   DropReason = "deadline_too_soon"
	DropEvaluationFailure DropReason = "evaluation_failed"
)

// Outcome is the per-record result of a batch: either kept with a scored
// opportunity, or dropped with a reason.
type Outcome struct {
	Index       int                       `json:"index"`
	Kept        bool                      `json:"kept"`
	Reason      DropReason                `json:"reason,omitempty"`
	Detail      string                    `json:"detail,omitempty"`
	Opportunity *models.ScoredOpportunity `json:"opportunity,omitempty"`
}

// Batch is the result of scoring a slice of records.
type Batch struct {
	Ranked   []models.ScoredOpportunity `json:"ranked"`
	Outcomes []Outcome                  `json:"outcomes"`
}

// Dropped returns the outcomes of records that did not survive.
func (b Batch) Dropped() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if !o.Kept {
			out = append(out, o)
		}
	}
	return out
}

// Classifier scores records against one configuration. It is immutable and
// safe for concurrent use.
type Classifier struct {
	cfg          *config.Config
	geo          *GeoFilter
	primaryCount int
	priority     func(organization, sourceURL string) float64
	workers      int
	now          func() time.Time
	logger       *zap.Logger
}

type Option func(*Classifier)

func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWorkers bounds batch parallelism; n <= 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Classifier) { c.workers = n }
}

func New(cfg *config.Config, opts ...Option) *Classifier {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Classifier{
		cfg:          cfg,
		geo:          NewGeoFilter(cfg.GeographicFilters),
		primaryCount: countUnique(cfg.Keywords.Primary),
		priority:     cfg.SourcePriority,
		workers:      cfg.Processing.Workers,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	return c
}

func (c *Classifier) Config() *config.Config { return c.cfg }

// PreFilter returns the reason r must be dropped, or "" to keep it.
func (c *Classifier) PreFilter(r Record, now time.Time) (DropReason, string) {
	if r.Failure != "" {
		return DropEvaluationFailure, r.Failure
	}
	if excluded, where := c.geo.Excluded(r.Location); excluded {
		return DropLocationExcluded, where
	}
	if len(r.Exclusions) > 0 {
		return DropExclusionKeyword, strings.Join(r.Exclusions, ", ")
	}
	if len(r.Keywords) == 0 {
		return DropNoKeywords, ""
	}

	b := c.cfg.BudgetFilters
	if r.Budget > 0 {
		if r.Budget < b.MinBudget {
			return DropBudgetBelowMin, fmt.Sprintf("%.0f < %.0f", r.Budget, b.MinBudget)
		}
		if b.EnforceMaximum && r.Budget > b.MaxBudget {
			return DropBudgetAboveMax, fmt.Sprintf("%.0f > %.0f", r.Budget, b.MaxBudget)
		}
	}

	if r.Deadline != nil {
		if days := DaysUntil(*r.Deadline, now); days < c.cfg.DeadlineFilters.MinimumDays {
			return DropDeadlineTooSoon, fmt.Sprintf("%d days left", days)
		}
	}
	return "", ""
}

// Breakdown computes the weighted score components of r.
func (c *Classifier) Breakdown(r Record, now time.Time) models.ScoreBreakdown {
	w := c.cfg.ScoringWeights
	return models.ScoreBreakdown{
		KeywordMatch:    w.KeywordMatch * c.keywordCoverage(r.Keywords),
		BudgetFit:       w.BudgetRange * BudgetFit(r.Budget, c.cfg.BudgetFilters.MinBudget, c.cfg.BudgetFilters.MaxBudget),
		DeadlineUrgency: w.DeadlineUrgency * DeadlineUrgency(r.Deadline, now),
		SourcePriority:  w.SourcePriority * c.priority(r.Organization, r.SourceURL),
		ReferenceBonus:  referenceBonus(r.ReferenceNumber, w.ReferenceNumberBonus),
	}
}

func referenceBonus(ref string, weight float64) float64 {
	if strings.TrimSpace(ref) == "" {
		return 0
	}
	return weight
}

func (c *Classifier) keywordCoverage(found []string) float64 {
	if c.primaryCount == 0 {
		return 0
	}
	return clamp01(float64(len(found)) / float64(c.primaryCount))
}

// Evaluate scores one record without pre-filtering; Rank is left zero.
func (c *Classifier) Evaluate(r Record, now time.Time) models.ScoredOpportunity {
	breakdown := c.Breakdown(r, now)
	score := clamp01(breakdown.Sum())

	var budget *float64
	if r.Budget > 0 {
		v := r.Budget
		budget = &v
	}
	return models.ScoredOpportunity{
		ID:                  models.OpportunityID(r.SourceURL, r.Title, r.ReferenceNumber),
		Title:               r.Title,
		Description:         r.Description,
		Organization:        r.Organization,
		Location:            r.Location,
		Budget:              budget,
		Currency:            r.Currency,
		Deadline:            r.Deadline,
		ReferenceNumber:     r.ReferenceNumber,
		ReferenceConfidence: clamp01(r.ReferenceConfidence),
		KeywordsFound:       append([]string(nil), r.Keywords...),
		RelevanceScore:      score,
		Priority:            Classify(score, c.cfg.PriorityThresholds),
		SourceURL:           r.SourceURL,
		Breakdown:           breakdown,
		EvaluatedAt:         now,
	}
}

// Score pre-filters, scores and ranks records. Records are evaluated in
// parallel; each record's outcome is isolated, so a failure in one record
// only drops that record. Ranking is a stable sort by descending score, so
// ties keep input order.
func (c *Classifier) Score(records []Record) Batch {
	now := c.now()
	outcomes := make([]Outcome, len(records))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			outcomes[i] = c.evaluateIsolated(i, records[i], now)
			return nil
		})
	}
	_ = g.Wait()

	ranked := rank(outcomes)

	c.logger.Info("batch scored",
		zap.Int("records", len(records)),
		zap.Int("kept", len(ranked)),
		zap.Int("dropped", len(records)-len(ranked)))
	return Batch{Ranked: ranked, Outcomes: outcomes}
}

// rank stable-sorts the kept outcomes by descending score, writes each
// rank back onto its outcome and returns the ranked opportunities.
func rank(outcomes []Outcome) []models.ScoredOpportunity {
	order := make([]int, 0, len(outcomes))
	for i := range outcomes {
		if outcomes[i].Kept {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return outcomes[order[a]].Opportunity.RelevanceScore > outcomes[order[b]].Opportunity.RelevanceScore
	})
	ranked := make([]models.ScoredOpportunity, len(order))
	for pos, idx := range order {
		outcomes[idx].Opportunity.Rank = pos + 1
		ranked[pos] = *outcomes[idx].Opportunity
	}
	return ranked
}

func (c *Classifier) evaluateIsolated(i int, r Record, now time.Time) (out Outcome) {
	out.Index = i
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("record evaluation failed",
				zap.Int("index", i),
				zap.String("title", r.Title),
				zap.Any("panic", rec))
			out = Outcome{Index: i, Reason: DropEvaluationFailure, Detail: fmt.Sprint(rec)}
		}
	}()

	if reason, detail := c.PreFilter(r, now); reason != "" {
		return Outcome{Index: i, Reason: reason, Detail: detail}
	}
	opp := c.Evaluate(r, now)
	return Outcome{Index: i, Kept: true, Opportunity: &opp}
}

// BudgetFit is 1 at the midpoint of [min,max], falling linearly to 0.5 at
// the edges, and 0 for unknown or out-of-range budgets.
func BudgetFit(budget, min, max float64) float64 {
	if budget <= 0 || budget < min || budget > max {
		return 0
	}
	if max <= min {
		return 1
	}
	mid := (min + max) / 2
	return clamp01(1 - math.Abs(budget-mid)/(max-min))
}

// DaysUntil counts whole days from now to deadline, rounding down.
func DaysUntil(deadline, now time.Time) int {
	return int(math.Floor(deadline.Sub(now).Hours() / 24))
}

// DeadlineUrgency rises from 0 (a year or more away) to 1 (due today), and
// is 0 when the deadline is unknown or has passed.
func DeadlineUrgency(deadline *time.Time, now time.Time) float64 {
	if deadline == nil || !deadline.After(now) {
		return 0
	}
	return math.Max(0, 1-float64(DaysUntil(*deadline, now))/daysPerYear)
}

func countUnique(keywords []string) int {
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = textnorm.Normalize(k)
		if k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}
