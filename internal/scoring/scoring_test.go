package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/models"
	"github.com/google/go-cmp/cmp"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func days(n int) *time.Time {
	t := testNow.Add(time.Duration(n) * 24 * time.Hour)
	return &t
}

func newTestClassifier(t *testing.T, mutate func(*config.Config)) *Classifier {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return New(cfg, WithClock(fixedClock), WithWorkers(3))
}

func TestClassify_Boundaries(t *testing.T) {
	th := config.Default().PriorityThresholds
	tests := []struct {
		score float64
		want  models.Priority
	}{
		{1, models.PriorityCritical},
		{0.8, models.PriorityCritical},
		{0.7999, models.PriorityHigh},
		{0.6, models.PriorityHigh},
		{0.4, models.PriorityMedium},
		{0.3999, models.PriorityLow},
		{0, models.PriorityLow},
		{-3, models.PriorityLow},
		{math.NaN(), models.PriorityLow},
		{7, models.PriorityCritical},
	}
	for _, tt := range tests {
		if got := Classify(tt.score, th); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScore_SummedThresholdLandsInHigherTier(t *testing.T) {
	c := newTestClassifier(t, func(cfg *config.Config) {
		cfg.Keywords.Primary = []string{"video"}
	})
	deadline := testNow.Add(time.Hour)
	b := c.Score([]Record{{
		Title:           "Video production",
		Organization:    "UNDP",
		Budget:          252500,
		Deadline:        &deadline,
		Keywords:        []string{"video"},
		ReferenceNumber: "RFP/2025/001",
	}})
	if len(b.Ranked) != 1 {
		t.Fatalf("ranked = %d, want 1", len(b.Ranked))
	}
	got := b.Ranked[0]
	if math.Abs(got.RelevanceScore-0.8) > 1e-9 {
		t.Fatalf("score = %v, want 0.8", got.RelevanceScore)
	}
	if got.Priority != models.PriorityCritical {
		t.Errorf("priority = %s, want Critical", got.Priority)
	}
}

func TestBudgetFit(t *testing.T) {
	tests := []struct {
		name             string
		budget, min, max float64
		want             float64
	}{
		{"unknown", 0, 5000, 500000, 0},
		{"below", 4999, 5000, 500000, 0},
		{"above", 500001, 5000, 500000, 0},
		{"midpoint", 252500, 5000, 500000, 1},
		{"lower edge", 5000, 5000, 500000, 0.5},
		{"upper edge", 500000, 5000, 500000, 0.5},
		{"degenerate range", 100, 100, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BudgetFit(tt.budget, tt.min, tt.max); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BudgetFit = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeadlineUrgency(t *testing.T) {
	past := testNow.Add(-time.Hour)
	tests := []struct {
		name     string
		deadline *time.Time
		want     float64
	}{
		{"unknown", nil, 0},
		{"passed", &past, 0},
		{"today", days(0), 0},
		{"ten days", days(10), 1 - 10.0/365},
		{"a year", days(365), 0},
		{"beyond a year", days(500), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeadlineUrgency(tt.deadline, testNow); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DeadlineUrgency = %v, want %v", got, tt.want)
			}
		})
	}

	halfDay := testNow.Add(12 * time.Hour)
	if got := DeadlineUrgency(&halfDay, testNow); got != 1 {
		t.Errorf("urgency for a deadline later today = %v, want 1", got)
	}
	if got := DaysUntil(testNow.Add(-time.Minute), testNow); got != -1 {
		t.Errorf("DaysUntil just passed = %d, want -1", got)
	}
}

func TestGeoFilter(t *testing.T) {
	g := config.Default().GeographicFilters
	g.ExcludedRegions = []string{"South Asia"}
	f := NewGeoFilter(g)

	tests := []struct {
		location string
		want     bool
	}{
		{"", false},
		{"Remote / Global", false},
		{"Nairobi, Kenya", false},
		{"INDIA", true},
		{"New Delhi", true},
		{"Lao PDR", true},
		{"Ho Chi Minh City", true},
		{"Kathmandu, Nepal", false},
		{"India and Nepal", false},
		{"South Asia region", true},
		{"Côte d'Ivoire", false},
	}
	for _, tt := range tests {
		got, _ := f.Excluded(tt.location)
		if got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}

func TestPreFilter(t *testing.T) {
	c := newTestClassifier(t, func(cfg *config.Config) {
		cfg.DeadlineFilters.MinimumDays = 5
	})
	base := Record{Title: "Video", Keywords: []string{"video"}}
	tests := []struct {
		name   string
		edit   func(*Record)
		want   DropReason
		strict bool
	}{
		{"kept", func(*Record) {}, "", false},
		{"upstream failure", func(r *Record) { r.Failure = "boom" }, DropEvaluationFailure, false},
		{"excluded location", func(r *Record) { r.Location = "Dhaka, Bangladesh" }, DropLocationExcluded, false},
		{"exclusion keyword", func(r *Record) { r.Exclusions = []string{"local firm"} }, DropExclusionKeyword, false},
		{"no keywords", func(r *Record) { r.Keywords = nil }, DropNoKeywords, false},
		{"budget below minimum", func(r *Record) { r.Budget = 1000 }, DropBudgetBelowMin, false},
		{"budget above maximum kept", func(r *Record) { r.Budget = 900000 }, "", false},
		{"budget above maximum enforced", func(r *Record) { r.Budget = 900000 }, DropBudgetAboveMax, true},
		{"deadline too soon", func(r *Record) { r.Deadline = days(2) }, DropDeadlineTooSoon, false},
		{"deadline far enough", func(r *Record) { r.Deadline = days(5) }, "", false},
		{"no deadline", func(r *Record) { r.Deadline = nil }, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.edit(&r)
			cl := c
			if tt.strict {
				cl = newTestClassifier(t, func(cfg *config.Config) { cfg.BudgetFilters.EnforceMaximum = true })
			}
			if got, _ := cl.PreFilter(r, testNow); got != tt.want {
				t.Errorf("PreFilter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScore_ExclusionAlwaysDrops(t *testing.T) {
	c := newTestClassifier(t, nil)
	b := c.Score([]Record{{
		Title:           "Video and multimedia by a local firm",
		Organization:    "UNDP",
		Budget:          250000,
		Deadline:        days(3),
		Keywords:        []string{"video", "multimedia", "film", "animation"},
		Exclusions:      []string{"local firm"},
		ReferenceNumber: "RFP/2025/001",
	}})
	if len(b.Ranked) != 0 {
		t.Fatalf("excluded record was ranked: %+v", b.Ranked)
	}
	if got := b.Outcomes[0].Reason; got != DropExclusionKeyword {
		t.Errorf("reason = %q, want %q", got, DropExclusionKeyword)
	}
}

func TestScore_StableRanking(t *testing.T) {
	c := newTestClassifier(t, nil)
	tied := func(title string) Record {
		return Record{Title: title, Keywords: []string{"video"}, Budget: 100000, Deadline: days(30)}
	}
	records := []Record{
		tied("first"),
		{Title: "best", Keywords: []string{"video", "film", "photo"}, Organization: "UNDP", Budget: 250000, Deadline: days(7), ReferenceNumber: "RFQ-2025-1"},
		tied("second"),
		tied("third"),
		{Title: "dropped", Location: "Manila"},
		tied("fourth"),
	}

	var titles []string
	for run := 0; run < 20; run++ {
		b := c.Score(records)
		titles = titles[:0]
		for i, opp := range b.Ranked {
			titles = append(titles, opp.Title)
			if opp.Rank != i+1 {
				t.Fatalf("rank of %q = %d, want %d", opp.Title, opp.Rank, i+1)
			}
		}
		want := []string{"best", "first", "second", "third", "fourth"}
		if diff := cmp.Diff(want, titles); diff != "" {
			t.Fatalf("run %d ranking mismatch (-want +got):\n%s", run, diff)
		}
	}
}

func TestScore_OutcomesAlignWithInput(t *testing.T) {
	c := newTestClassifier(t, nil)
	b := c.Score([]Record{
		{Title: "a", Keywords: []string{"video"}},
		{Title: "b"},
		{Title: "c", Keywords: []string{"film", "photo"}},
	})
	if len(b.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(b.Outcomes))
	}
	for i, o := range b.Outcomes {
		if o.Index != i {
			t.Errorf("outcome %d has index %d", i, o.Index)
		}
	}
	if b.Outcomes[1].Kept || b.Outcomes[1].Reason != DropNoKeywords {
		t.Errorf("record b outcome = %+v", b.Outcomes[1])
	}
	if b.Outcomes[2].Opportunity.Rank != 1 || b.Outcomes[0].Opportunity.Rank != 2 {
		t.Errorf("ranks not written back: a=%d c=%d",
			b.Outcomes[0].Opportunity.Rank, b.Outcomes[2].Opportunity.Rank)
	}
	if len(b.Dropped()) != 1 {
		t.Errorf("Dropped() = %d, want 1", len(b.Dropped()))
	}
}

func TestScore_PanickingRecordIsIsolated(t *testing.T) {
	c := newTestClassifier(t, nil)
	base := c.priority
	c.priority = func(org, url string) float64 {
		if org == "Broken Org" {
			panic("priority table corrupted")
		}
		return base(org, url)
	}
	b := c.Score([]Record{
		{Title: "before", Keywords: []string{"video"}, Organization: "UNDP"},
		{Title: "boom", Keywords: []string{"video", "film"}, Organization: "Broken Org"},
		{Title: "after", Keywords: []string{"film", "photo"}, Organization: "UNDP"},
	})

	failed := b.Outcomes[1]
	if failed.Kept || failed.Reason != DropEvaluationFailure {
		t.Fatalf("panicking record outcome = %+v", failed)
	}
	if failed.Detail != "priority table corrupted" {
		t.Errorf("detail = %q", failed.Detail)
	}
	var titles []string
	for i, opp := range b.Ranked {
		titles = append(titles, opp.Title)
		if opp.Rank != i+1 {
			t.Errorf("rank of %q = %d, want %d", opp.Title, opp.Rank, i+1)
		}
	}
	if diff := cmp.Diff([]string{"after", "before"}, titles); diff != "" {
		t.Errorf("neighbours not ranked (-want +got):\n%s", diff)
	}
}

func TestNew_PrimaryCountNormalizesPunctuation(t *testing.T) {
	c := newTestClassifier(t, func(cfg *config.Config) {
		cfg.Keywords.Primary = []string{"video-production", "Video  Production", "film"}
	})
	if c.primaryCount != 2 {
		t.Fatalf("primaryCount = %d, want 2", c.primaryCount)
	}
	if got := c.keywordCoverage([]string{"video production"}); got != 0.5 {
		t.Errorf("coverage = %v, want 0.5", got)
	}
}

func TestScore_Clamped(t *testing.T) {
	c := newTestClassifier(t, func(cfg *config.Config) {
		cfg.Keywords.Primary = []string{"video"}
		cfg.ScoringWeights = config.WeightsConfig{KeywordMatch: 1}
	})
	b := c.Score([]Record{{
		Title:               "Too many matches",
		Keywords:            []string{"video", "film", "photo"},
		ReferenceConfidence: 1.7,
	}})
	got := b.Ranked[0]
	if got.RelevanceScore != 1 {
		t.Errorf("score = %v, want clamped to 1", got.RelevanceScore)
	}
	if got.ReferenceConfidence != 1 {
		t.Errorf("reference confidence = %v, want clamped to 1", got.ReferenceConfidence)
	}
}

func TestScore_EndToEnd(t *testing.T) {
	c := newTestClassifier(t, func(cfg *config.Config) {
		cfg.Keywords.Primary = []string{"video", "multimedia"}
	})
	records := []Record{
		{
			Title:               "Video and multimedia production services",
			Organization:        "UNDP",
			Location:            "Nairobi, Kenya",
			Budget:              80000,
			Currency:            "USD",
			Deadline:            days(10),
			Keywords:            []string{"video", "multimedia"},
			ReferenceNumber:     "RFP/2025/014",
			ReferenceConfidence: 0.98,
		},
		{Title: "Office furniture supply", Organization: "UNDP", Budget: 80000, Deadline: days(10)},
		{
			Title:        "Video documentary",
			Organization: "UNDP",
			Location:     "Islamabad, Pakistan",
			Budget:       80000,
			Deadline:     days(10),
			Keywords:     []string{"video"},
		},
	}

	b := c.Score(records)
	if len(b.Ranked) != 1 {
		t.Fatalf("ranked = %d, want exactly 1", len(b.Ranked))
	}
	got := b.Ranked[0]
	if got.Title != records[0].Title || got.Rank != 1 {
		t.Errorf("unexpected survivor %q rank %d", got.Title, got.Rank)
	}
	if got.Priority != models.PriorityCritical && got.Priority != models.PriorityHigh {
		t.Errorf("priority = %s (score %.4f), want Critical or High", got.Priority, got.RelevanceScore)
	}
	if got.Budget == nil || *got.Budget != 80000 {
		t.Errorf("budget = %v", got.Budget)
	}
	if got.ID != models.OpportunityID("", records[0].Title, "RFP/2025/014") {
		t.Errorf("ID is not derived from the listing")
	}

	wantBreakdown := models.ScoreBreakdown{
		KeywordMatch:    0.25,
		BudgetFit:       0.20 * (1 - 172500.0/495000),
		DeadlineUrgency: 0.15 * (1 - 10.0/365),
		SourcePriority:  0.15,
		ReferenceBonus:  0.05,
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(wantBreakdown, got.Breakdown, approx); diff != "" {
		t.Errorf("breakdown mismatch (-want +got):\n%s", diff)
	}

	reasons := map[int]DropReason{}
	for _, o := range b.Dropped() {
		reasons[o.Index] = o.Reason
	}
	want := map[int]DropReason{1: DropNoKeywords, 2: DropLocationExcluded}
	if diff := cmp.Diff(want, reasons); diff != "" {
		t.Errorf("drop reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestScore_Empty(t *testing.T) {
	b := newTestClassifier(t, nil).Score(nil)
	if len(b.Ranked) != 0 || len(b.Outcomes) != 0 {
		t.Errorf("empty batch = %+v", b)
	}
}

func TestSummarize(t *testing.T) {
	c := newTestClassifier(t, nil)
	b := c.Score([]Record{
		{Title: "a", Organization: "UNDP", Keywords: []string{"video", "film"}, Budget: 250000, Deadline: days(5), ReferenceNumber: "X-2025-1"},
		{Title: "b", Keywords: []string{"video"}},
		{Title: "c"},
		{Title: "d", Keywords: []string{"video"}, Exclusions: []string{"local company"}},
	})
	s := Summarize(b, 1)
	if s.Total != 4 || s.Kept != 2 || s.Dropped != 2 {
		t.Fatalf("counts = %d/%d/%d", s.Total, s.Kept, s.Dropped)
	}
	if s.DropReasons[DropNoKeywords] != 1 || s.DropReasons[DropExclusionKeyword] != 1 {
		t.Errorf("drop reasons = %v", s.DropReasons)
	}
	if s.ByOrganization["UNDP"] != 1 || s.ByOrganization["Unknown"] != 1 {
		t.Errorf("by organization = %v", s.ByOrganization)
	}
	if len(s.Top) != 1 || s.Top[0].Title != "a" {
		t.Errorf("top = %+v", s.Top)
	}
	wantKeywords := []KeywordCount{{"video", 2}, {"film", 1}}
	if diff := cmp.Diff(wantKeywords, s.TopKeywords); diff != "" {
		t.Errorf("top keywords mismatch (-want +got):\n%s", diff)
	}
	var tiers int
	for _, n := range s.ByPriority {
		tiers += n
	}
	if tiers != s.Kept {
		t.Errorf("tier counts %v do not add up to %d", s.ByPriority, s.Kept)
	}
}
