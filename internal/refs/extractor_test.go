package refs

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, 2, 12, 10, 0, 0, 0, time.UTC) }
}

func TestExtract_UNSolicitation(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))

	best, ok := e.Best("Please submit your proposal for RFP/2024/001 by the deadline.", "")
	if !ok {
		t.Fatal("expected a candidate")
	}
	if !strings.Contains(best.Identifier, "2024") || !strings.Contains(best.Identifier, "001") {
		t.Fatalf("unexpected identifier %q", best.Identifier)
	}
	if best.Identifier != "RFP/2024/001" {
		t.Errorf("identifier = %q, want RFP/2024/001", best.Identifier)
	}
	if best.Confidence < 0.9 {
		t.Errorf("confidence = %.2f, want >= 0.9", best.Confidence)
	}
	if best.Family != FamilyUNAgency {
		t.Errorf("family = %s, want %s", best.Family, FamilyUNAgency)
	}
	if best.Position != 32 {
		t.Errorf("position = %d, want 32", best.Position)
	}
}

func TestExtract_PositionCountsCharacters(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))

	best, ok := e.Best("Côte d’Ivoire — appel d’offres RFP/2024/001", "")
	if !ok {
		t.Fatal("expected a candidate")
	}
	if best.Identifier != "RFP/2024/001" {
		t.Fatalf("identifier = %q", best.Identifier)
	}
	if best.Position != 31 {
		t.Errorf("position = %d, want character offset 31", best.Position)
	}
	if !strings.HasPrefix(best.Context, "Côte d’Ivoire") {
		t.Errorf("context = %q, want the whole accented prefix", best.Context)
	}
}

func TestWindow_Runes(t *testing.T) {
	text := "ééééé" + "X" + "ééééé"
	start := strings.Index(text, "X")
	tests := []struct {
		radius int
		want   string
	}{
		{0, "X"},
		{2, "ééXéé"},
		{5, text},
		{50, text},
	}
	for _, tt := range tests {
		if got := window(text, start, start+1, tt.radius); got != tt.want {
			t.Errorf("window(radius=%d) = %q, want %q", tt.radius, got, tt.want)
		}
	}
}

func TestExtract_WorldBankProject(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))

	cands := e.Extract("World Bank project P123456 requires services.", "world bank")
	if len(cands) == 0 {
		t.Fatal("expected candidates")
	}
	if cands[0].Identifier != "P123456" {
		t.Fatalf("top identifier = %q, want P123456", cands[0].Identifier)
	}
	if cands[0].Confidence < 0.9 {
		t.Errorf("confidence = %.2f, want >= 0.9", cands[0].Confidence)
	}
	if cands[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", cands[0].Confidence)
	}
}

func TestExtract_DeduplicatesAcrossPatterns(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))

	cands := e.Extract("Call UNHCR-2024-012 for details", "")
	var hits []Candidate
	for _, c := range cands {
		if CanonicalKey(c.Identifier) == "UNHCR2024012" {
			hits = append(hits, c)
		}
	}
	if len(hits) != 1 {
		t.Fatalf("expected one deduplicated candidate, got %d: %+v", len(hits), hits)
	}
	if hits[0].Family != FamilyUNAgency {
		t.Errorf("kept family = %s, want the higher-confidence %s", hits[0].Family, FamilyUNAgency)
	}
}

func TestDedupe_KeepsHigherConfidence(t *testing.T) {
	in := []Candidate{
		{Identifier: "abc-2024-01", Confidence: 0.6, Family: FamilyGeneric},
		{Identifier: "XYZ 99", Confidence: 0.5},
		{Identifier: "ABC/2024/01", Confidence: 0.8, Family: FamilyNGO},
		{Identifier: "ABC2024-01", Confidence: 0.8, Family: FamilyUNAgency},
	}
	got := dedupe(in)
	want := []Candidate{
		{Identifier: "ABC/2024/01", Confidence: 0.8, Family: FamilyNGO},
		{Identifier: "XYZ 99", Confidence: 0.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dedupe mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_SortedAndClamped(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2024)))
	text := "Tender notice ref no. RFQ-2024-0153, project P654321, TF123456, call 12/05/2024 at 10:30, " +
		"lot 7, phone +2348012345678, ADB/2024/110 and AfDB-2023-077 plus SC/2024/NGA/101."

	cands := e.Extract(text, "procurement notice")
	if len(cands) < 5 {
		t.Fatalf("expected several candidates, got %d", len(cands))
	}
	for i, c := range cands {
		if c.Confidence < 0 || c.Confidence > 1 || math.IsNaN(c.Confidence) {
			t.Errorf("candidate %q confidence %v out of range", c.Identifier, c.Confidence)
		}
		if i > 0 && cands[i-1].Confidence < c.Confidence {
			t.Errorf("candidates not sorted at %d: %.2f < %.2f", i, cands[i-1].Confidence, c.Confidence)
		}
	}
}

func TestExtract_CurrentYearBonusFollowsClock(t *testing.T) {
	text := "Reference XYZAB-2026-101"
	find := func(year int) float64 {
		for _, c := range NewExtractor(nil, WithClock(fixedClock(year))).Extract(text, "") {
			if c.Identifier == "XYZAB-2026-101" {
				return c.Confidence
			}
		}
		t.Fatalf("identifier not found for year %d", year)
		return 0
	}
	diff := find(2026) - find(2030)
	if math.Abs(diff-currentYearBonus) > 1e-9 {
		t.Fatalf("year bonus = %.4f, want %.2f", diff, currentYearBonus)
	}
}

func TestExtract_EmptyText(t *testing.T) {
	e := NewExtractor(nil)
	if got := e.Extract("   ", "undp"); len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
	if _, ok := e.Best("", ""); ok {
		t.Fatal("Best on empty text should report nothing")
	}
}

func TestExtractAbove(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))
	text := "Please submit your proposal for RFP/2024/001 by the deadline."
	all := e.Extract(text, "")
	above := e.ExtractAbove(text, "", DefaultMinConfidence)
	if len(above) == 0 || len(above) >= len(all) {
		t.Fatalf("ExtractAbove kept %d of %d candidates", len(above), len(all))
	}
	for _, c := range above {
		if c.Confidence < DefaultMinConfidence {
			t.Errorf("candidate %q below minimum: %.2f", c.Identifier, c.Confidence)
		}
	}
}

func TestAnalyze_SkipsUnnormalizableMatch(t *testing.T) {
	lib := NewLibrary("test", []PatternSpec{
		{Family: FamilyGeneric, Expr: `(RFP)?-(\d{4})-(\d{3})`, Confidence: 0.7, Description: "optional prefix", Normalize: NormalizeSolicitation},
		{Family: FamilyWorldBank, Expr: `\b(P\d{6})\b`, Confidence: 0.95, Description: "project"},
	})
	res := NewExtractor(lib).Analyze("see -2024-001 and P000111", "")

	if len(res.Skipped) != 1 {
		t.Fatalf("skipped = %d, want 1", len(res.Skipped))
	}
	if !errors.Is(res.Skipped[0].Err, ErrMissingGroup) {
		t.Errorf("skip error = %v, want ErrMissingGroup", res.Skipped[0].Err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Identifier != "P000111" {
		t.Fatalf("extraction should continue past the skip, got %+v", res.Candidates)
	}
}

func TestExtract_ConcurrentCallsAgree(t *testing.T) {
	e := NewExtractor(nil, WithClock(fixedClock(2026)))
	text := "UNDP-NGA-00123 issued under RFP/2025/014 for P123456"
	want := e.Extract(text, "UNDP Nigeria")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if diff := cmp.Diff(want, e.Extract(text, "UNDP Nigeria")); diff != "" {
				t.Errorf("concurrent result differs:\n%s", diff)
			}
		}()
	}
	wg.Wait()
}

func TestLooksLikeNonReference(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"12/05/2024", true},
		{"1-2-24", true},
		{"+2348012345678", true},
		{"0803-123-4567", true},
		{"10:30", true},
		{"42", true},
		{"RFP/2024/001", false},
		{"P123456", false},
		{"123456", false},
	}
	for _, tt := range tests {
		if got := looksLikeNonReference(tt.id); got != tt.want {
			t.Errorf("looksLikeNonReference(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	if got := FormatSummary(nil); got != "No reference numbers found" {
		t.Errorf("empty summary = %q", got)
	}
	cands := []Candidate{
		{Identifier: "A", Confidence: 0.98, Family: FamilyUNAgency},
		{Identifier: "B", Confidence: 0.5, Family: FamilyGeneric},
		{Identifier: "C", Confidence: 0.4, Family: FamilyGeneric},
		{Identifier: "D", Confidence: 0.3, Family: FamilyGeneric},
	}
	got := FormatSummary(cands)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("summary has %d lines, want 3:\n%s", len(lines), got)
	}
	if lines[0] != "1. A (confidence: 0.98, type: un-agency)" {
		t.Errorf("first line = %q", lines[0])
	}
}
