// Package scoring computes the qualification score, segment and priority
// of an incoming lead from its intake answers.
package scoring

import (
	"math"
	"strings"
)

// Segment labels, highest first.
const (
	SegmentHot  = "Hot"
	SegmentWarm = "Warm"
	SegmentCool = "Cool"
	SegmentCold = "Cold"
)

// Priority labels used for claim ordering and notification urgency.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Input carries the intake answers that influence the score.
type Input struct {
	BudgetRange        string
	Timeframe          string
	IntakeComplete     bool
	QuestionsAnswered  int
	LocationPreference []string
	PropertyType       []string
	PropertyPurpose    string
	BedroomsDesired    string
	SeaViewImportance  string
}

// Result is the computed qualification of a lead.
type Result struct {
	Score    int
	Segment  string
	Priority string
}

// Score computes the 0-100 lead score and derives segment and priority.
func Score(in Input) Result {
	score := budgetPoints(in.BudgetRange) +
		timeframePoints(in.Timeframe) +
		intakePoints(in.IntakeComplete, in.QuestionsAnswered) +
		locationPoints(len(in.LocationPreference)) +
		criteriaPoints(in)

	rounded := int(math.Round(score))
	if rounded > 100 {
		rounded = 100
	}

	return Result{
		Score:    rounded,
		Segment:  segmentFor(rounded),
		Priority: priorityFor(rounded, in.Timeframe),
	}
}

// budgetPoints awards 0-30 points. Matching is substring-based so free-text
// answers like "around 2m" or "€2.5M villa budget" still land in the right band.
func budgetPoints(budget string) float64 {
	b := strings.ToLower(budget)
	switch {
	case containsAny(b, "2m", "2,000,000", "€2"):
		return 30
	case containsAny(b, "1m", "1,000,000", "€1"):
		return 25
	case containsAny(b, "500k", "500,000"):
		return 20
	case containsAny(b, "300k", "300,000"):
		return 15
	default:
		return 10
	}
}

// timeframePoints awards 0-25 points for purchase urgency.
func timeframePoints(timeframe string) float64 {
	tf := strings.ToLower(timeframe)
	switch {
	case containsAny(tf, "6_month", "immediate"):
		return 25
	case containsAny(tf, "1_year", "12_month"):
		return 20
	case strings.Contains(tf, "2_year"):
		return 15
	default:
		return 5
	}
}

// intakePoints awards 0-20 points for intake completeness.
func intakePoints(complete bool, answered int) float64 {
	switch {
	case complete:
		return 20
	case answered >= 3:
		return 15
	case answered >= 1:
		return 10
	default:
		return 0
	}
}

// locationPoints awards 0-15 points for location specificity.
func locationPoints(locations int) float64 {
	switch {
	case locations >= 2:
		return 15
	case locations == 1:
		return 10
	default:
		return 5
	}
}

// criteriaPoints awards 2.5 points per answered property criterion.
func criteriaPoints(in Input) float64 {
	var answered int
	if len(in.PropertyType) > 0 {
		answered++
	}
	if in.PropertyPurpose != "" {
		answered++
	}
	if in.BedroomsDesired != "" {
		answered++
	}
	if in.SeaViewImportance != "" {
		answered++
	}
	return float64(answered) * 2.5
}

func segmentFor(score int) string {
	switch {
	case score >= 80:
		return SegmentHot
	case score >= 60:
		return SegmentWarm
	case score >= 40:
		return SegmentCool
	default:
		return SegmentCold
	}
}

// priorityFor maps score to priority. An aggressive timeframe bumps a lead
// into a higher band regardless of score.
func priorityFor(score int, timeframe string) string {
	tf := strings.ToLower(timeframe)
	switch {
	case score >= 80 || containsAny(tf, "immediate", "6_month"):
		return PriorityUrgent
	case score >= 60 || strings.Contains(tf, "1_year"):
		return PriorityHigh
	case score >= 40:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
