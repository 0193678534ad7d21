package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount is a parsed budget. A single figure is reported as Max unless the
// text marks it as a floor ("minimum", "at least").
type Amount struct {
	Min      float64
	Max      float64
	Currency string
}

// Value is the figure used for budget filtering: the ceiling, else the floor.
func (a Amount) Value() float64 {
	if a.Max > 0 {
		return a.Max
	}
	return a.Min
}

var (
	amountRe = regexp.MustCompile(`(?i)(\d[\d,.\x{00A0} ]*\d|\d)\s*(billion|bn|million|mn|m|thousand|k)?\b`)

	currencyCodes = []struct {
		re   *regexp.Regexp
		code string
	}{
		{regexp.MustCompile(`(?i)£|\bgbp\b|\bpounds?\b`), "GBP"},
		{regexp.MustCompile(`(?i)€|\beur\b|\beuros?\b`), "EUR"},
		{regexp.MustCompile(`(?i)\bchf\b|\bswiss francs?\b`), "CHF"},
		{regexp.MustCompile(`(?i)\bmxn\b|\bpesos?\b`), "MXN"},
		{regexp.MustCompile(`(?i)\bkes\b|\bksh\b`), "KES"},
		{regexp.MustCompile(`(?i)\$|\busd\b|\bdollars?\b`), "USD"},
	}

	floorWords   = []string{"minimum", "at least", "from", "starting at", "mínimo"}
	ceilingWords = []string{"up to", "maximum", "not exceed", "hasta", "ceiling"}
)

var multipliers = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "mn": 1e6, "million": 1e6,
	"bn": 1e9, "billion": 1e9,
}

// ParseBudget extracts an amount or amount range and its currency from free
// text such as "USD 50,000 - 80,000" or "up to €1.2 million".
func ParseBudget(text, defaultCurrency string) (Amount, bool) {
	lower := strings.ToLower(text)

	currency := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	for _, c := range currencyCodes {
		if c.re.MatchString(text) {
			currency = c.code
			break
		}
	}

	var amounts, years []float64
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		v, ok := parseNumber(m[1])
		if !ok || v <= 0 {
			continue
		}
		if mult, ok := multipliers[strings.ToLower(m[2])]; ok {
			v *= mult
		} else if isYear(m[1]) {
			years = append(years, v)
			continue
		}
		amounts = append(amounts, v)
	}
	if len(amounts) == 0 {
		amounts = years
	}
	if len(amounts) == 0 {
		return Amount{}, false
	}

	if len(amounts) == 1 {
		if containsAny(lower, floorWords) && !containsAny(lower, ceilingWords) {
			return Amount{Min: amounts[0], Currency: currency}, true
		}
		return Amount{Max: amounts[0], Currency: currency}, true
	}

	lo, hi := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		lo = min(lo, a)
		hi = max(hi, a)
	}
	if lo == hi {
		return Amount{Max: hi, Currency: currency}, true
	}
	return Amount{Min: lo, Max: hi, Currency: currency}, true
}

// parseNumber reads "1,234,567.50", "1.234.567,50", "1 234 567" and "1.5".
// A lone separator followed by exactly three digits is a thousands separator.
func parseNumber(s string) (float64, bool) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(s)
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = resolveSingleSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func resolveSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	thousands := len(parts) > 2
	if len(parts) == 2 {
		thousands = len(parts[1]) == 3
	}
	if thousands {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, ".")
}

func isYear(raw string) bool {
	if len(raw) != 4 {
		return false
	}
	y, err := strconv.Atoi(raw)
	return err == nil && y >= 1990 && y <= 2100
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
