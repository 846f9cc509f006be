// Package triage holds the deterministic heuristics that categorise and rank issues.
package triage

import (
	"strings"

	"campusfix/internal/models"
)

// summaryWords is the number of leading words kept in a summary
const summaryWords = 10

type categoryRule struct {
	category models.Category
	keywords []string
}

// Rules are evaluated in order and the first match wins.
var categoryRules = []categoryRule{
	{models.CategoryPlumbing, []string{"water", "leak", "pipe"}},
	{models.CategoryElectrical, []string{"light", "electric", "wire"}},
	{models.CategoryIT, []string{"wifi", "internet"}},
	{models.CategoryCleanliness, []string{"clean", "trash", "dust"}},
	{models.CategoryMessFood, []string{"food", "mess"}},
}

var (
	criticalKeywords = []string{"fire", "danger", "spark"}
	mediumKeywords   = []string{"broken", "not working"}
	urgentKeywords   = []string{"urgent"}
)

// Classify derives category, severity and summary from free text.
// Keywords match as lowercase substrings, so "lighting" counts as "light".
func Classify(text string) (models.Category, models.Severity, string) {
	lower := strings.ToLower(text)

	category := models.CategoryGeneral
	for _, rule := range categoryRules {
		if containsAny(lower, rule.keywords) {
			category = rule.category
			break
		}
	}

	severity := models.SeverityLow
	switch {
	case containsAny(lower, criticalKeywords):
		severity = models.SeverityCritical
	case containsAny(lower, mediumKeywords):
		severity = models.SeverityMedium
	}
	// "urgent" is applied last and wins over every other keyword, Critical included
	if containsAny(lower, urgentKeywords) {
		severity = models.SeverityHigh
	}

	return category, severity, Summarize(text)
}

// Summarize keeps the first ten whitespace-separated words and always appends "...".
func Summarize(text string) string {
	words := strings.Fields(text)
	if len(words) > summaryWords {
		words = words[:summaryWords]
	}
	return strings.Join(words, " ") + "..."
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
