package scoring

import "testing"

func TestScore_FullyQualifiedLeadIsHotAndUrgent(t *testing.T) {
	in := Input{
		BudgetRange:        "2m+",
		Timeframe:          "immediate",
		IntakeComplete:     true,
		LocationPreference: []string{"Marbella", "Estepona"},
		PropertyType:       []string{"villa"},
		PropertyPurpose:    "primary_residence",
		BedroomsDesired:    "4",
		SeaViewImportance:  "must_have",
	}

	result := Score(in)

	if result.Score != 100 {
		t.Fatalf("expected score 100, got %d", result.Score)
	}
	if result.Segment != SegmentHot {
		t.Fatalf("expected segment %q, got %q", SegmentHot, result.Segment)
	}
	if result.Priority != PriorityUrgent {
		t.Fatalf("expected priority %q, got %q", PriorityUrgent, result.Priority)
	}
}

func TestScore_EmptyIntakeIsCold(t *testing.T) {
	result := Score(Input{})

	// Minimum bands: budget 10, timeframe 5, intake 0, location 5.
	if result.Score != 20 {
		t.Fatalf("expected score 20, got %d", result.Score)
	}
	if result.Segment != SegmentCold {
		t.Fatalf("expected segment %q, got %q", SegmentCold, result.Segment)
	}
	if result.Priority != PriorityLow {
		t.Fatalf("expected priority %q, got %q", PriorityLow, result.Priority)
	}
}

func TestScore_CriteriaPointsAreRounded(t *testing.T) {
	in := Input{
		BudgetRange:  "500k",
		PropertyType: []string{"apartment"},
	}

	// budget 20 + timeframe 5 + location 5 + one criterion 2.5 = 32.5.
	result := Score(in)

	if result.Score != 33 {
		t.Fatalf("expected score 33, got %d", result.Score)
	}
}

func TestScore_UrgentTimeframeOverridesLowScore(t *testing.T) {
	in := Input{Timeframe: "6_months"}

	result := Score(in)

	if result.Priority != PriorityUrgent {
		t.Fatalf("expected priority %q for 6 month timeframe, got %q", PriorityUrgent, result.Priority)
	}
	if result.Segment == SegmentHot {
		t.Fatalf("priority override must not affect segment, got %q", result.Segment)
	}
}

func TestBudgetPoints_Bands(t *testing.T) {
	tests := []struct {
		budget string
		want   float64
	}{
		{"2m+", 30},
		{"around €2.1 million", 30},
		{"1m-2m", 30},
		{"1,000,000", 25},
		{"500k-750k", 20},
		{"300k-400k", 15},
		{"under 300k", 15},
		{"no idea yet", 10},
		{"", 10},
	}

	for _, tc := range tests {
		if got := budgetPoints(tc.budget); got != tc.want {
			t.Errorf("budgetPoints(%q) = %v, want %v", tc.budget, got, tc.want)
		}
	}
}

func TestTimeframePoints_Bands(t *testing.T) {
	tests := []struct {
		timeframe string
		want      float64
	}{
		{"immediate", 25},
		{"0_6_months", 25},
		{"6_12_months", 20},
		{"1_year", 20},
		{"12_months", 20},
		{"1_2_years", 15},
		{"2_years_plus", 15},
		{"just_browsing", 5},
		{"", 5},
	}

	for _, tc := range tests {
		if got := timeframePoints(tc.timeframe); got != tc.want {
			t.Errorf("timeframePoints(%q) = %v, want %v", tc.timeframe, got, tc.want)
		}
	}
}

func TestIntakePoints(t *testing.T) {
	if got := intakePoints(true, 0); got != 20 {
		t.Fatalf("complete intake should score 20, got %v", got)
	}
	if got := intakePoints(false, 3); got != 15 {
		t.Fatalf("3 answers should score 15, got %v", got)
	}
	if got := intakePoints(false, 1); got != 10 {
		t.Fatalf("1 answer should score 10, got %v", got)
	}
	if got := intakePoints(false, 0); got != 0 {
		t.Fatalf("no answers should score 0, got %v", got)
	}
}

func TestSegmentBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, SegmentHot},
		{80, SegmentHot},
		{79, SegmentWarm},
		{60, SegmentWarm},
		{59, SegmentCool},
		{40, SegmentCool},
		{39, SegmentCold},
		{0, SegmentCold},
	}

	for _, tc := range tests {
		if got := segmentFor(tc.score); got != tc.want {
			t.Errorf("segmentFor(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
