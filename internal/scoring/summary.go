package scoring

import (
	"sort"

	"github.com/david/proposaland/internal/models"
)

// KeywordCount is one entry of Summary.TopKeywords.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Summary aggregates a scored batch for reports.
type Summary struct {
	Total          int                        `json:"total"`
	Kept           int                        `json:"kept"`
	Dropped        int                        `json:"dropped"`
	ByPriority     map[models.Priority]int    `json:"by_priority"`
	ByOrganization map[string]int             `json:"by_organization"`
	DropReasons    map[DropReason]int         `json:"drop_reasons"`
	TopKeywords    []KeywordCount             `json:"top_keywords"`
	Top            []models.ScoredOpportunity `json:"top"`
	AverageScore   float64                    `json:"average_score"`
}

const topKeywordLimit = 10

// Summarize counts tiers, sources, drop reasons and keywords of b and keeps
// its topN best opportunities.
func Summarize(b Batch, topN int) Summary {
	s := Summary{
		Total:          len(b.Outcomes),
		Kept:           len(b.Ranked),
		ByPriority:     make(map[models.Priority]int, len(models.Priorities)),
		ByOrganization: map[string]int{},
		DropReasons:    map[DropReason]int{},
	}
	for _, p := range models.Priorities {
		s.ByPriority[p] = 0
	}
	for _, o := range b.Outcomes {
		if !o.Kept {
			s.Dropped++
			s.DropReasons[o.Reason]++
		}
	}

	keywords := map[string]int{}
	var total float64
	for _, opp := range b.Ranked {
		s.ByPriority[opp.Priority]++
		org := opp.Organization
		if org == "" {
			org = "Unknown"
		}
		s.ByOrganization[org]++
		for _, k := range opp.KeywordsFound {
			keywords[k]++
		}
		total += opp.RelevanceScore
	}
	if s.Kept > 0 {
		s.AverageScore = total / float64(s.Kept)
	}

	for k, n := range keywords {
		s.TopKeywords = append(s.TopKeywords, KeywordCount{Keyword: k, Count: n})
	}
	sort.Slice(s.TopKeywords, func(i, j int) bool {
		if s.TopKeywords[i].Count != s.TopKeywords[j].Count {
			return s.TopKeywords[i].Count > s.TopKeywords[j].Count
		}
		return s.TopKeywords[i].Keyword < s.TopKeywords[j].Keyword
	})
	if len(s.TopKeywords) > topKeywordLimit {
		s.TopKeywords = s.TopKeywords[:topKeywordLimit]
	}

	if topN < 0 || topN > len(b.Ranked) {
		topN = len(b.Ranked)
	}
	s.Top = append([]models.ScoredOpportunity(nil), b.Ranked[:topN]...)
	return s
}
