// Package validation classifies submitted issues through an ordered cascade of providers.
package validation

import (
	"context"
	"strings"

	"udaay-be/models"
)

// Submission is everything a provider may look at.
type Submission struct {
	Image       []byte
	MimeType    string
	Title       string
	Description string
	Category    models.IssueCategory
}

// Result is the normalized classification produced by any provider.
type Result struct {
	MatchesDescription bool
	Confidence         float64
	DetectedCategory   models.IssueCategory
	Severity           models.Severity
	ResponseText       string
	ProviderUsed       models.ProviderName
}

// Provider is one tier of the cascade. A returned error means the tier could not
// produce an answer and the next tier should be tried. A low confidence answer is
// still a success.
type Provider interface {
	Name() models.ProviderName
	Validate(ctx context.Context, sub Submission) (Result, error)
}

// ConfidenceTable maps a lowercase priority label to a confidence score.
type ConfidenceTable map[string]float64

func (t ConfidenceTable) Lookup(priority string, fallback float64) float64 {
	if v, ok := t[strings.ToLower(strings.TrimSpace(priority))]; ok {
		return v
	}
	return fallback
}

// Default priority tables.
var (
	DefaultVisionConfidence = ConfidenceTable{"high": 0.9, "medium": 0.7, "low": 0.5}

	DefaultClassifierConfidence = ConfidenceTable{"high": 0.9, "medium": 0.75, "low": 0.6}
)

// KeywordCategory maps a label fragment to a category.
type KeywordCategory struct {
	Keyword  string
	Category models.IssueCategory
}

// KeywordTable is matched in order; the first keyword contained in a label wins.
type KeywordTable []KeywordCategory

var DefaultCategoryKeywords = KeywordTable{
	{"road", models.Roads},
	{"pothole", models.Roads},
	{"garbage", models.Garbage},
	{"waste", models.Garbage},
	{"trash", models.Garbage},
	{"water", models.Water},
	{"drainage", models.Water},
	{"leak", models.Water},
	{"electricity", models.Electricity},
	{"power", models.Electricity},
	{"streetlight", models.Electricity},
}

// Match returns the category for label, or models.Other when nothing matches.
func (t KeywordTable) Match(label string) models.IssueCategory {
	label = strings.ToLower(label)
	for _, kc := range t {
		if strings.Contains(label, kc.Keyword) {
			return kc.Category
		}
	}
	return models.Other
}

// severityFromPriority maps a coarse priority label onto a severity.
func severityFromPriority(priority string) models.Severity {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "critical":
		return models.SeverityCritical
	case "high":
		return models.SeverityHigh
	case "low":
		return models.SeverityLow
	}
	return models.SeverityMedium
}

// reply is the structured answer both networked providers return.
type reply struct {
	Issue            string `json:"issue"`
	ConfidenceReason string `json:"confidence_reason"`
	Priority         string `json:"priority"`
}

// stripCodeFence removes a surrounding ```json fence some models wrap replies in.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func clamp(confidence float64) float64 {
	switch {
	case confidence < 0:
		return 0
	case confidence > 1:
		return 1
	}
	return confidence
}
