package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/david/proposaland/internal/ingest"
	"github.com/david/proposaland/internal/models"
	"github.com/david/proposaland/internal/refs"
	"github.com/david/proposaland/internal/scoring"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatMarkdown, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want table, markdown or json)", f)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func render(t table.Writer, format string) {
	if format == formatMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatBudget(budget *float64, currency string) string {
	if budget == nil {
		return "-"
	}
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.0f", currency, *budget)
}

func renderOpportunities(w io.Writer, opps []models.ScoredOpportunity, format string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Priority", "Score", "Title", "Organization", "Budget", "Deadline", "Reference"})
	for _, o := range opps {
		deadline := "-"
		if o.Deadline != nil {
			deadline = o.Deadline.Format("2006-01-02")
		}
		ref := o.ReferenceNumber
		if ref == "" {
			ref = "-"
		}
		t.AppendRow(table.Row{
			o.Rank,
			o.Priority,
			fmt.Sprintf("%.3f", o.RelevanceScore),
			ingest.TruncateText(o.Title, 60),
			o.Organization,
			formatBudget(o.Budget, o.Currency),
			deadline,
			ref,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	render(t, format)
}

func renderSummary(w io.Writer, s scoring.Summary, format string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRow(table.Row{"Records", s.Total})
	t.AppendRow(table.Row{"Kept", s.Kept})
	t.AppendRow(table.Row{"Dropped", s.Dropped})
	t.AppendRow(table.Row{"Average score", fmt.Sprintf("%.3f", s.AverageScore)})
	for _, p := range models.Priorities {
		t.AppendRow(table.Row{string(p), s.ByPriority[p]})
	}

	reasons := make([]string, 0, len(s.DropReasons))
	for r := range s.DropReasons {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		t.AppendRow(table.Row{"dropped: " + r, s.DropReasons[scoring.DropReason(r)]})
	}

	if len(s.TopKeywords) > 0 {
		parts := make([]string, len(s.TopKeywords))
		for i, k := range s.TopKeywords {
			parts[i] = fmt.Sprintf("%s (%d)", k.Keyword, k.Count)
		}
		t.AppendRow(table.Row{"Top keywords", strings.Join(parts, ", ")})
	}
	render(t, format)
}

func renderDropped(w io.Writer, raws []ingest.RawOpportunity, dropped []scoring.Outcome, format string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Input", "Title", "Reason", "Detail"})
	for _, o := range dropped {
		title := ""
		if o.Index < len(raws) {
			title = ingest.TruncateText(ingest.HTMLToText(raws[o.Index].Title), 50)
		}
		t.AppendRow(table.Row{o.Index, title, o.Reason, o.Detail})
	}
	render(t, format)
}

func renderCandidates(w io.Writer, cands []refs.Candidate, format string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Identifier", "Confidence", "Family", "Pattern"})
	for i, c := range cands {
		t.AppendRow(table.Row{i + 1, c.Identifier, fmt.Sprintf("%.2f", c.Confidence), c.Family, c.PatternDescription})
	}
	render(t, format)
}

func renderPatterns(w io.Writer, lib *refs.Library, showRegex bool, format string) {
	t := newTable(w)
	header := table.Row{"Family", "Confidence", "Normalize", "Description"}
	if showRegex {
		header = append(header, "Regex")
	}
	t.AppendHeader(header)
	for _, p := range lib.All() {
		row := table.Row{p.Family(), fmt.Sprintf("%.2f", p.BaseConfidence()), p.Normalize(), p.Description()}
		if showRegex {
			row = append(row, p.Expr())
		}
		t.AppendRow(row)
	}
	t.SetCaption("library %s, %d patterns", lib.Version(), lib.Len())
	render(t, format)
}
