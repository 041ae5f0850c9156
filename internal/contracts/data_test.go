package contracts

import (
	"math"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSymbolLifecycleEntry_ActiveOn(t *testing.T) {
	delisted := date(2024, 6, 1)
	entry := SymbolLifecycleEntry{
		Symbol:        "005930",
		ListingDate:   date(2020, 1, 2),
		DelistingDate: &delisted,
	}

	tests := []struct {
		name string
		on   time.Time
		want bool
	}{
		{"before listing", date(2019, 12, 31), false},
		{"listing day", date(2020, 1, 2), true},
		{"mid life", date(2022, 3, 15), true},
		{"day before delisting", date(2024, 5, 31), true},
		{"delisting day excluded", date(2024, 6, 1), false},
		{"after delisting", date(2024, 7, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.ActiveOn(tt.on); got != tt.want {
				t.Errorf("ActiveOn(%s) = %v, want %v", tt.on.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestFundamentalFact_Valid(t *testing.T) {
	fact := FundamentalFact{
		Symbol:        "005930",
		Metric:        MetricNetIncomeTTM,
		ReportedDate:  date(2024, 1, 1),
		AvailableDate: date(2024, 2, 15),
	}
	if !fact.Valid() {
		t.Error("available_date after reported_date should be valid")
	}

	fact.AvailableDate = date(2023, 12, 31)
	if fact.Valid() {
		t.Error("available_date before reported_date must be invalid")
	}
}

func TestWalkForwardWindow_Validate(t *testing.T) {
	w := WalkForwardWindow{
		TrainStart:       date(2020, 1, 2),
		TrainEnd:         date(2022, 12, 30),
		ValidEnd:         date(2023, 3, 31),
		TestEnd:          date(2023, 6, 30),
		LabelStartOffset: 1,
	}
	if err := w.Validate(); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}

	// train_end == valid_end 경계 위반
	w.ValidEnd = w.TrainEnd
	if err := w.Validate(); err == nil {
		t.Error("train_end == valid_end must be rejected")
	}

	w.ValidEnd = date(2023, 3, 31)
	w.LabelStartOffset = 0
	if err := w.Validate(); err == nil {
		t.Error("label_start_offset 0 must be rejected")
	}
}

func TestWalkForwardWindow_InTestSpan(t *testing.T) {
	w := WalkForwardWindow{
		TrainStart:       date(2020, 1, 2),
		TrainEnd:         date(2022, 12, 30),
		ValidEnd:         date(2023, 3, 31),
		TestEnd:          date(2023, 6, 30),
		LabelStartOffset: 1,
	}

	if w.InTestSpan(date(2023, 3, 31)) {
		t.Error("valid_end itself belongs to the validate span")
	}
	if !w.InTestSpan(date(2023, 4, 3)) {
		t.Error("date after valid_end should be in test span")
	}
	if !w.InTestSpan(date(2023, 6, 30)) {
		t.Error("test_end is inclusive")
	}
	if w.InTestSpan(date(2023, 7, 3)) {
		t.Error("date after test_end is out of span")
	}
}

func TestPortfolioWeights_TurnoverFrom(t *testing.T) {
	prev := PortfolioWeights{Weights: map[string]float64{"A": 0.5, "B": 0.5}}
	next := PortfolioWeights{Weights: map[string]float64{"A": 0.3, "C": 0.4}}

	// |0.3-0.5| + |0.4-0| + |0-0.5| = 1.1
	got := next.TurnoverFrom(prev)
	if math.Abs(got-1.1) > 1e-9 {
		t.Errorf("turnover = %.4f, want 1.1", got)
	}
}
