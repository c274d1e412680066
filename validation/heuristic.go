package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"udaay-be/models"
)

var civicKeywords = []string{
	"pothole", "hole", "crack", "damaged", "road", "street",
	"garbage", "trash", "litter", "waste", "dirty", "dump",
	"drainage", "drain", "water", "flooded", "flood", "puddle",
	"streetlight", "light", "dark", "lamp", "broken light",
	"leak", "leaking", "water leak", "pipe",
	"tree", "branch", "broken branch", "fallen tree",
	"sidewalk", "pavement", "broken pavement",
	"traffic", "sign", "broken sign", "missing sign",
	"hazard",
}

// Spam words are matched as whole words; "ad" must not fire inside "road".
var spamKeywords = []string{
	"test", "spam", "fake", "random", "hello", "demo",
	"advertisement", "ad", "promote", "buy", "sell",
}

var (
	highSeverityWords   = []string{"pothole", "dangerous", "hazard", "flooding", "emergency", "broken"}
	mediumSeverityWords = []string{"dirty", "damaged", "leak", "branch"}
	lowSeverityWords    = []string{"trash", "litter", "tree"}
)

const (
	minImageBytes        = 100
	minDescriptionLength = 10
)

// HeuristicProvider scores the submission locally. It never fails.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

func (p *HeuristicProvider) Name() models.ProviderName { return models.ProviderHeuristic }

func (p *HeuristicProvider) Validate(ctx context.Context, sub Submission) (Result, error) {
	text := strings.ToLower(sub.Description + " " + sub.Title)
	words := wordSet(text)

	civicMatches := 0
	for _, k := range civicKeywords {
		if strings.Contains(text, k) {
			civicMatches++
		}
	}
	spamMatches := 0
	for _, k := range spamKeywords {
		if words[k] {
			spamMatches++
		}
	}

	hasImage := len(sub.Image) > minImageBytes
	hasReasonableLength := len(strings.TrimSpace(sub.Description)) > minDescriptionLength

	res := Result{DetectedCategory: sub.Category}
	switch {
	case spamMatches > 0 && civicMatches == 0:
		res.Confidence = 0.1
		res.Severity = models.SeverityLow
		res.ResponseText = "Content appears to be spam or irrelevant to civic issues."
	case civicMatches > 0 && hasImage && hasReasonableLength:
		res.MatchesDescription = true
		res.Confidence = 0.85
		res.Severity = keywordSeverity(text)
		res.ResponseText = fmt.Sprintf("Detected civic issue: %d matching civic keywords found in description.", civicMatches)
	case civicMatches > 0:
		res.MatchesDescription = true
		res.Confidence = 0.6
		res.Severity = models.SeverityMedium
		res.ResponseText = "Likely civic issue based on keywords, though image validation is limited."
	case hasImage && hasReasonableLength:
		res.Confidence = 0.4
		res.Severity = models.SeverityLow
		res.ResponseText = "Submitted content does not clearly match a civic issue category."
	default:
		res.Confidence = 0.2
		res.Severity = models.SeverityLow
		res.ResponseText = "Insufficient information to validate as civic issue."
	}
	return res, nil
}

func keywordSeverity(text string) models.Severity {
	switch {
	case containsAny(text, highSeverityWords):
		return models.SeverityHigh
	case containsAny(text, mediumSeverityWords):
		return models.SeverityMedium
	case containsAny(text, lowSeverityWords):
		return models.SeverityLow
	}
	return models.SeverityMedium
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}
