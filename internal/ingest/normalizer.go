// Package ingest is the pre-processing step between scrapers and the
// classification engine: HTML to text, budget and deadline parsing, and
// text extraction from tender documents.
package ingest

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	blockTag    = regexp.MustCompile(`(?i)<(/?(?:br|p|div|li|td|th|tr|h[1-6])\b)`)
)

// TruncateText cuts a string to maxLen runes, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return string(r[:maxLen-3]) + "..."
	}
	return string(r[:maxLen])
}

// HTMLToText converts an HTML fragment to plain text, collapsing whitespace.
// Block elements are separated so adjacent cells do not run together.
func HTMLToText(fragment string) string {
	if !looksLikeHTML(fragment) {
		return cleanText(html.UnescapeString(fragment))
	}
	spaced := blockTag.ReplaceAllString(fragment, " <$1")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return StripTags(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	return cleanText(doc.Text())
}

// StripTags removes all markup and unescapes entities.
func StripTags(s string) string {
	out := stripPolicy.Sanitize(s)
	return cleanText(html.UnescapeString(out))
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// FromRaw cleans a scraped listing and parses its budget and deadline.
// Without a deadline field, a labeled date in the description is used.
// Unparseable budget or deadline text leaves the field unknown.
func FromRaw(raw RawOpportunity) Opportunity {
	opp := Opportunity{
		Title:        sanitize(raw.Title),
		Description:  sanitize(raw.Description),
		Organization: sanitize(raw.Organization),
		Location:     sanitize(raw.Location),
		SourceURL:    strings.TrimSpace(raw.SourceURL),
		Context:      sanitize(raw.Context),
		Currency:     strings.ToUpper(strings.TrimSpace(raw.RawCurrency)),
	}

	if raw.RawBudget != "" {
		if amt, ok := ParseBudget(raw.RawBudget, opp.Currency); ok {
			opp.Budget = amt.Value()
			opp.BudgetMin = amt.Min
			opp.Currency = amt.Currency
		}
	}

	locales := raw.DateLocales
	if len(locales) == 0 {
		locales = []string{"en"}
	}
	if raw.RawDeadline != "" {
		if dt, err := ParseDeadline(raw.RawDeadline, locales); err == nil {
			opp.Deadline = &dt
		}
	}
	if opp.Deadline == nil {
		if dt, ok := LabeledDeadline(opp.Description, locales); ok {
			opp.Deadline = &dt
		}
	}
	return opp
}

func sanitize(s string) string {
	return HTMLToText(strings.ToValidUTF8(s, ""))
}
