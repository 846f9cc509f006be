package triage

import "campusfix/internal/models"

// SeverityWeight returns the multiplier used by PriorityScore.
// Unknown severities weigh the same as Low.
func SeverityWeight(severity models.Severity) int {
	switch severity {
	case models.SeverityMedium:
		return 2
	case models.SeverityHigh:
		return 3
	case models.SeverityCritical:
		return 5
	default:
		return 1
	}
}

// PriorityScore ranks an issue: every upvote adds 2, severity adds weight*10.
func PriorityScore(upvotes int, severity models.Severity) float64 {
	return float64(upvotes*2 + SeverityWeight(severity)*10)
}
