// Package engine wires the keyword engine, the reference extractor and the
// classifier into one pipeline from scraped listings to ranked opportunities.
package engine

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/ingest"
	"github.com/david/proposaland/internal/keywords"
	"github.com/david/proposaland/internal/metrics"
	"github.com/david/proposaland/internal/models"
	"github.com/david/proposaland/internal/refs"
	"github.com/david/proposaland/internal/scoring"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is built once per configuration and shared by all callers. Every
// component it holds is read-only after construction.
type Engine struct {
	cfg        *config.Config
	keywords   *keywords.Engine
	extractor  *refs.Extractor
	classifier *scoring.Classifier
	prepare    func(ingest.RawOpportunity) ingest.Opportunity
	workers    int
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:     cfg,
		prepare: ingest.FromRaw,
		workers: cfg.Processing.Workers,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}

	lib := refs.Default()
	if len(cfg.ReferencePatterns.Custom) > 0 {
		lib = lib.Extend(lib.Version()+"+custom", cfg.ReferencePatterns.Custom)
	}
	for _, rej := range lib.Rejected() {
		e.logger.Warn("reference pattern rejected",
			zap.String("description", rej.Spec.Description),
			zap.String("regex", rej.Spec.Expr),
			zap.Error(rej.Err))
	}

	e.keywords = keywords.New(keywords.Config{
		Primary:      cfg.Keywords.Primary,
		Exclusions:   cfg.Keywords.Exclusions,
		Weights:      cfg.Keywords.Weights,
		MinimumScore: cfg.Keywords.MinimumScore,
	})
	e.extractor = refs.NewExtractor(lib, refs.WithClock(e.now), refs.WithLogger(e.logger))
	e.classifier = scoring.New(cfg,
		scoring.WithClock(e.now),
		scoring.WithLogger(e.logger),
		scoring.WithWorkers(e.workers))
	return e
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// Default returns the process-wide engine for the built-in configuration.
func Default() *Engine {
	defaultOnce.Do(func() { defaultEngine = New(config.Default()) })
	return defaultEngine
}

func (e *Engine) Config() *config.Config          { return e.cfg }
func (e *Engine) Keywords() *keywords.Engine      { return e.keywords }
func (e *Engine) Extractor() *refs.Extractor      { return e.extractor }
func (e *Engine) Classifier() *scoring.Classifier { return e.classifier }

// Analysis is what the keyword and reference passes learned about one listing.
type Analysis struct {
	Record     scoring.Record
	Keywords   keywords.Match
	Reference  *refs.Candidate
	Candidates int
	Skipped    int
}

// Analyze runs the keyword and reference passes over a cleaned listing and
// produces the classifier's input record.
func (e *Engine) Analyze(opp ingest.Opportunity) Analysis {
	text := opp.Text()
	match := e.keywords.Evaluate(text)
	_, exclusions := e.keywords.HasExclusions(text)

	res := e.extractor.Analyze(text, opp.ContextHint())
	a := Analysis{
		Keywords:   match,
		Candidates: len(res.Candidates),
		Skipped:    len(res.Skipped),
		Record: scoring.Record{
			Title:        opp.Title,
			Description:  opp.Description,
			Organization: opp.Organization,
			Location:     opp.Location,
			SourceURL:    opp.SourceURL,
			Budget:       opp.Budget,
			Currency:     opp.Currency,
			Deadline:     opp.Deadline,
			Keywords:     match.Keywords,
			Exclusions:   exclusions,
		},
	}
	if len(res.Candidates) > 0 {
		best := res.Candidates[0]
		a.Reference = &best
		a.Record.ReferenceNumber = best.Identifier
		a.Record.ReferenceConfidence = best.Confidence
	}
	return a
}

// EvaluateBatch cleans, analyzes, filters, scores and ranks raw listings.
// Outcome indexes refer to positions in raws.
func (e *Engine) EvaluateBatch(raws []ingest.RawOpportunity) scoring.Batch {
	start := time.Now()
	records := make([]scoring.Record, len(raws))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range raws {
		i := i
		g.Go(func() error {
			records[i] = e.analyzeIsolated(i, raws[i])
			return nil
		})
	}
	_ = g.Wait()

	batch := e.classifier.Score(records)
	observe(batch, time.Since(start))
	return batch
}

func (e *Engine) analyzeIsolated(i int, raw ingest.RawOpportunity) (rec scoring.Record) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Warn("listing analysis failed",
				zap.Int("index", i),
				zap.String("title", raw.Title),
				zap.Any("panic", p))
			rec = scoring.Record{Title: raw.Title, Failure: fmt.Sprint(p)}
		}
	}()

	a := e.Analyze(e.prepare(raw))
	if a.Reference != nil {
		metrics.ReferencesTotal.WithLabelValues(string(a.Reference.Family)).Inc()
	}
	if a.Skipped > 0 {
		metrics.PatternSkipsTotal.Add(float64(a.Skipped))
	}
	return a.Record
}

// Evaluate classifies a single listing in the context of a one-item batch.
func (e *Engine) Evaluate(raw ingest.RawOpportunity) (models.ScoredOpportunity, scoring.Outcome) {
	b := e.EvaluateBatch([]ingest.RawOpportunity{raw})
	out := b.Outcomes[0]
	if !out.Kept {
		return models.ScoredOpportunity{}, out
	}
	return *out.Opportunity, out
}

func observe(b scoring.Batch, elapsed time.Duration) {
	metrics.BatchDuration.Observe(elapsed.Seconds())
	for _, o := range b.Outcomes {
		if o.Kept {
			metrics.RecordsTotal.WithLabelValues("kept").Inc()
			continue
		}
		metrics.RecordsTotal.WithLabelValues(string(o.Reason)).Inc()
	}
	for _, opp := range b.Ranked {
		metrics.PriorityTotal.WithLabelValues(string(opp.Priority)).Inc()
		metrics.RelevanceScore.Observe(opp.RelevanceScore)
	}
}
