package scoring

import (
	"regexp"
	"strings"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/textnorm"
)

type place struct {
	name    string
	aliases *regexp.Regexp
}

func (p place) in(folded string) bool {
	if strings.Contains(folded, p.name) {
		return true
	}
	return p.aliases != nil && p.aliases.MatchString(folded)
}

// GeoFilter decides whether a location field falls in an excluded country.
// Country names match as substrings; aliases (cities, demonyms) match as
// whole words.
type GeoFilter struct {
	excluded []place
	included []place
	regions  []string
}

func NewGeoFilter(g config.GeoConfig) *GeoFilter {
	aliases := make(map[string][]string, len(g.Aliases))
	for country, list := range g.Aliases {
		aliases[textnorm.Fold(strings.TrimSpace(country))] = list
	}
	build := func(countries []string) []place {
		var out []place
		for _, c := range countries {
			name := textnorm.Fold(strings.TrimSpace(c))
			if name == "" {
				continue
			}
			p := place{name: name}
			if list := aliases[name]; len(list) > 0 {
				quoted := make([]string, 0, len(list))
				for _, a := range list {
					if a = textnorm.Fold(strings.TrimSpace(a)); a != "" {
						quoted = append(quoted, regexp.QuoteMeta(a))
					}
				}
				if len(quoted) > 0 {
					p.aliases = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
				}
			}
			out = append(out, p)
		}
		return out
	}

	f := &GeoFilter{excluded: build(g.ExcludedCountries), included: build(g.IncludedCountries)}
	for _, r := range g.ExcludedRegions {
		if r = textnorm.Fold(strings.TrimSpace(r)); r != "" {
			f.regions = append(f.regions, r)
		}
	}
	return f
}

// Excluded reports whether location matches an excluded country or region
// and no included country overrides it. The second value names the match.
func (f *GeoFilter) Excluded(location string) (bool, string) {
	folded := textnorm.Fold(location)
	if strings.TrimSpace(folded) == "" {
		return false, ""
	}

	hit := ""
	for _, p := range f.excluded {
		if p.in(folded) {
			hit = p.name
			break
		}
	}
	if hit == "" {
		for _, r := range f.regions {
			if strings.Contains(folded, r) {
				hit = r
				break
			}
		}
	}
	if hit == "" {
		return false, ""
	}
	for _, p := range f.included {
		if p.in(folded) {
			return false, ""
		}
	}
	return true, hit
}
