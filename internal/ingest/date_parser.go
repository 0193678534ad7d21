package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrUnparsableDate = errors.New("unable to parse date")

var (
	timedLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2 January 2006 3 PM",
		"2 January 2006 3:04 PM",
		"2 January 2006 15:04",
		"January 2, 2006 3 PM",
		"January 2, 2006 3:04 PM",
		"Jan 2, 2006 3:04 PM",
		"2 Jan 2006 15:04",
	}
	dateLayouts = []string{
		"2006-01-02",
		"2006/01/02",
		"2 January 2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 Jan 2006",
		"02-Jan-2006",
		"Monday, 2 January 2006",
		"Monday, January 2, 2006",
	}

	labelPrefixes = []string{
		"submission deadline:", "closing date:", "deadline:", "due date:",
		"expires:", "closes:", "ends:", "fecha límite:", "fecha de cierre:",
		"cierre:", "date limite:", "date limite de soumission:",
	}

	numericDate = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)
	ordinal     = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)

	monthNames = map[string]map[string]string{
		"es": {
			"enero": "January", "febrero": "February", "marzo": "March", "abril": "April",
			"mayo": "May", "junio": "June", "julio": "July", "agosto": "August",
			"septiembre": "September", "setiembre": "September", "octubre": "October",
			"noviembre": "November", "diciembre": "December",
		},
		"fr": {
			"janvier": "January", "février": "February", "fevrier": "February", "mars": "March",
			"avril": "April", "mai": "May", "juin": "June", "juillet": "July", "août": "August",
			"aout": "August", "septembre": "September", "octobre": "October",
			"novembre": "November", "décembre": "December", "decembre": "December",
		},
	}
	localizedDate = regexp.MustCompile(`(?i)\b(\d{1,2})(?:er)?\s+(?:de\s+)?(\p{L}+)\s+(?:de\s+|del\s+)?(\d{4})\b`)

	dateSnippets = []*regexp.Regexp{
		regexp.MustCompile(`\b20\d{2}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/20\d{2}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+20\d{2}\b`),
		regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{1,2},?\s+20\d{2}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+de\s+\p{L}+\s+(?:de|del)\s+20\d{2}\b`),
	}
	deadlineHints = []string{"deadline", "closing", "closes", "due", "submission", "submit", "fecha límite", "cierre", "date limite"}
)

// ParseDeadline reads a deadline in ISO, English, numeric (month first
// unless the first field exceeds 12) or, for the given locales, Spanish and
// French forms. Date-only values resolve to the end of that day in UTC.
func ParseDeadline(text string, locales []string) (time.Time, error) {
	s := cleanDateString(text)
	if s == "" {
		return time.Time{}, ErrUnparsableDate
	}

	for _, layout := range timedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return toEndOfDay(t), nil
		}
	}
	if t, ok := parseNumericDate(s); ok {
		return t, nil
	}
	for _, loc := range locales {
		if t, ok := parseLocalizedDate(s, strings.ToLower(loc)); ok {
			return t, nil
		}
	}

	// Embedded in a sentence: take the first recognizable date.
	withES := append(append([]string(nil), locales...), "es")
	for _, re := range dateSnippets {
		if m := re.FindString(s); m != "" && m != s {
			if t, err := ParseDeadline(m, withES); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableDate, text)
}

// LabeledDeadline finds the earliest date in text that sits near a deadline
// label such as "closing date" or "fecha límite".
func LabeledDeadline(text string, locales []string) (time.Time, bool) {
	var found []time.Time
	for _, re := range dateSnippets {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start := max(0, loc[0]-60)
			if !containsAny(strings.ToLower(text[start:loc[0]]), deadlineHints) {
				continue
			}
			if t, err := ParseDeadline(text[loc[0]:loc[1]], locales); err == nil {
				found = append(found, t)
			}
		}
	}
	if len(found) == 0 {
		return time.Time{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Before(found[j]) })
	return found[0], true
}

func parseNumericDate(s string) (time.Time, bool) {
	m := numericDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	month, day := a, b
	if a > 12 {
		month, day = b, a
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	if m[4] != "" {
		h, _ := strconv.Atoi(m[4])
		mi, _ := strconv.Atoi(m[5])
		return t.Add(time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute), true
	}
	return toEndOfDay(t), true
}

func parseLocalizedDate(s, locale string) (time.Time, bool) {
	names, ok := monthNames[locale[:min(2, len(locale))]]
	if !ok {
		return time.Time{}, false
	}
	m := localizedDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := names[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2 January 2006", m[1]+" "+month+" "+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return toEndOfDay(t), true
}

func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// cleanDateString drops a leading label and normalizes ordinals and am/pm.
func cleanDateString(s string) string {
	s = cleanText(s)
	lower := strings.ToLower(s)
	for _, p := range labelPrefixes {
		if idx := strings.Index(lower, p); idx != -1 {
			s = strings.TrimSpace(s[idx+len(p):])
			lower = strings.ToLower(s)
		}
	}
	s = ordinal.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("a.m.", "AM", "p.m.", "PM", " am", " AM", " pm", " PM").Replace(s)
	return strings.TrimSuffix(strings.TrimSpace(s), ".")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
