package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the review tier of a scored opportunity.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Priorities lists the tiers from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority accepts a tier name in any case.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, true
		}
	}
	return "", false
}

// ScoreBreakdown holds each weighted component of a relevance score.
type ScoreBreakdown struct {
	KeywordMatch    float64 `json:"keyword_match"`
	BudgetFit       float64 `json:"budget_range"`
	DeadlineUrgency float64 `json:"deadline_urgency"`
	SourcePriority  float64 `json:"source_priority"`
	ReferenceBonus  float64 `json:"reference_number_bonus"`
}

func (b ScoreBreakdown) Sum() float64 {
	return b.KeywordMatch + b.BudgetFit + b.DeadlineUrgency + b.SourcePriority + b.ReferenceBonus
}

// ScoredOpportunity is the classifier's output record.
type ScoredOpportunity struct {
	ID                  uuid.UUID      `json:"id"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Organization        string         `json:"organization"`
	Location            string         `json:"location"`
	Budget              *float64       `json:"budget"`
	Currency            string         `json:"currency"`
	Deadline            *time.Time     `json:"deadline"`
	ReferenceNumber     string         `json:"reference_number"`
	ReferenceConfidence float64        `json:"reference_confidence"`
	KeywordsFound       []string       `json:"keywords_found"`
	RelevanceScore      float64        `json:"relevance_score"`
	Priority            Priority       `json:"priority"`
	Rank                int            `json:"rank"`
	SourceURL           string         `json:"source_url"`
	Breakdown           ScoreBreakdown `json:"score_breakdown"`
	EvaluatedAt         time.Time      `json:"evaluated_at"`
}

// OpportunityID derives a stable ID from the fields that identify a listing,
// so re-scoring the same listing yields the same ID.
func OpportunityID(sourceURL, title, reference string) uuid.UUID {
	key := strings.ToLower(strings.TrimSpace(sourceURL)) + "|" +
		strings.ToLower(strings.Join(strings.Fields(title), " ")) + "|" +
		strings.ToUpper(strings.TrimSpace(reference))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}
