package contracts

import (
	"fmt"
	"time"
)

// WalkForwardWindow is one rolling (train, validate, test) split.
// 구간 정의: train (TrainStart, TrainEnd], valid (TrainEnd, ValidEnd],
// test (ValidEnd, TestEnd]. All four dates are trading sessions.
type WalkForwardWindow struct {
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	ValidEnd   time.Time `json:"valid_end"`
	TestEnd    time.Time `json:"test_end"`

	// Label contract: a label computed at date D covers returns over
	// [D + LabelStartOffset, D + LabelStartOffset + LabelHorizonDays)
	// sessions. LabelStartOffset >= 1 keeps labels strictly after D.
	LabelHorizonDays int `json:"label_horizon_days"`
	LabelStartOffset int `json:"label_start_offset"`
}

// Validate checks the strict ordering invariant of a single window.
func (w WalkForwardWindow) Validate() error {
	if !w.TrainStart.Before(w.TrainEnd) {
		return fmt.Errorf("window: train_start %s must precede train_end %s",
			w.TrainStart.Format("2006-01-02"), w.TrainEnd.Format("2006-01-02"))
	}
	if !w.TrainEnd.Before(w.ValidEnd) {
		return fmt.Errorf("window: train_end %s must precede valid_end %s",
			w.TrainEnd.Format("2006-01-02"), w.ValidEnd.Format("2006-01-02"))
	}
	if !w.ValidEnd.Before(w.TestEnd) {
		return fmt.Errorf("window: valid_end %s must precede test_end %s",
			w.ValidEnd.Format("2006-01-02"), w.TestEnd.Format("2006-01-02"))
	}
	if w.LabelStartOffset < 1 {
		return fmt.Errorf("window: label_start_offset must be >= 1, got %d", w.LabelStartOffset)
	}
	return nil
}

// InTestSpan reports whether date falls in (ValidEnd, TestEnd].
func (w WalkForwardWindow) InTestSpan(date time.Time) bool {
	d := NormalizeDate(date)
	return d.After(NormalizeDate(w.ValidEnd)) && !d.After(NormalizeDate(w.TestEnd))
}

// String formats the window for logs.
func (w WalkForwardWindow) String() string {
	f := "2006-01-02"
	return fmt.Sprintf("train %s~%s / valid ~%s / test ~%s",
		w.TrainStart.Format(f), w.TrainEnd.Format(f), w.ValidEnd.Format(f), w.TestEnd.Format(f))
}

// =============================================================================
// Scores
// =============================================================================

// DateSymbol keys per-(date, symbol) records.
type DateSymbol struct {
	Date   time.Time
	Symbol string
}

// ScoreRecord is one externally produced predictive score.
type ScoreRecord struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Score  float64   `json:"score"`
}

// ScoreSet is an unordered score mapping for one window's test span.
type ScoreSet map[DateSymbol]float64

// At returns all scores for one date, keyed by symbol.
func (s ScoreSet) At(date time.Time) map[string]float64 {
	d := NormalizeDate(date)
	out := make(map[string]float64)
	for k, v := range s {
		if NormalizeDate(k.Date).Equal(d) {
			out[k.Symbol] = v
		}
	}
	return out
}
