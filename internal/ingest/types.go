package ingest

import "time"

// RawOpportunity is one listing as handed over by a scraper: untrusted text,
// possibly HTML, with budget and deadline still unparsed.
type RawOpportunity struct {
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	Organization string `json:"organization" yaml:"organization"`
	Location     string `json:"location" yaml:"location"`
	SourceURL    string `json:"source_url" yaml:"source_url"`
	// Context hints at the issuing organization, e.g. the page's agency name.
	Context     string   `json:"context,omitempty" yaml:"context,omitempty"`
	RawBudget   string   `json:"budget,omitempty" yaml:"budget,omitempty"`
	RawCurrency string   `json:"currency,omitempty" yaml:"currency,omitempty"`
	RawDeadline string   `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	DateLocales []string `json:"date_locales,omitempty" yaml:"date_locales,omitempty"`
}

// Opportunity is a cleaned listing: plain text fields plus the numeric budget
// and calendar deadline the classifier needs.
type Opportunity struct {
	Title        string
	Description  string
	Organization string
	Location     string
	SourceURL    string
	Context      string

	// Budget is the advertised ceiling (else floor), 0 when unknown.
	Budget    float64
	BudgetMin float64
	Currency  string
	Deadline  *time.Time
}

// Text returns the fields the keyword and reference passes read.
func (o Opportunity) Text() string {
	if o.Description == "" {
		return o.Title
	}
	return o.Title + " " + o.Description
}

// ContextHint is what family detection reads: the explicit hint, else the
// organization name.
func (o Opportunity) ContextHint() string {
	if o.Context != "" {
		return o.Context
	}
	return o.Organization
}
