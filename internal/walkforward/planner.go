package walkforward

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/pitlab/internal/calendar"
	"github.com/wonny/pitlab/internal/contracts"
)

// Config drives window generation. Boundaries are specified in calendar
// units and snapped to actual sessions at plan time.
type Config struct {
	TrainYears  int `yaml:"train_years" json:"train_years"`   // 학습 구간 길이 (년)
	ValidMonths int `yaml:"valid_months" json:"valid_months"` // 검증 구간 길이 (월)
	TestMonths  int `yaml:"test_months" json:"test_months"`   // 테스트 구간 길이 (월)
	StepMonths  int `yaml:"step_months" json:"step_months"`   // 윈도우 전진 폭 (월)

	LabelHorizonDays int `yaml:"label_horizon_days" json:"label_horizon_days"` // label return horizon in sessions
	LabelStartOffset int `yaml:"label_start_offset" json:"label_start_offset"` // sessions between feature date and label start

	// MinTrainSessions is the floor on actual sessions inside the train
	// span; below it planning fails instead of producing a starved window.
	MinTrainSessions int `yaml:"min_train_sessions" json:"min_train_sessions"`
}

// DefaultMinTrainSessions is roughly one trading year.
const DefaultMinTrainSessions = 240

// Validate rejects configurations that cannot produce well-formed windows.
func (c Config) Validate() error {
	if c.TrainYears <= 0 {
		return contracts.ConfigurationError{Field: "train_years", Message: "must be positive"}
	}
	if c.ValidMonths <= 0 {
		return contracts.ConfigurationError{Field: "valid_months", Message: "must be positive"}
	}
	if c.TestMonths <= 0 {
		return contracts.ConfigurationError{Field: "test_months", Message: "must be positive"}
	}
	if c.StepMonths <= 0 {
		return contracts.ConfigurationError{Field: "step_months", Message: "must be positive"}
	}
	// 테스트 구간 비중첩 보장: step < test면 인접 런의 test 스팬이 겹침
	if c.StepMonths < c.TestMonths {
		return contracts.ConfigurationError{
			Field:   "step_months",
			Message: fmt.Sprintf("must be >= test_months (%d) to keep test spans disjoint", c.TestMonths),
		}
	}
	if c.LabelHorizonDays <= 0 {
		return contracts.ConfigurationError{Field: "label_horizon_days", Message: "must be positive"}
	}
	if c.LabelStartOffset < 1 {
		return contracts.ConfigurationError{Field: "label_start_offset", Message: "must be >= 1"}
	}
	if c.MinTrainSessions < 0 {
		return contracts.ConfigurationError{Field: "min_train_sessions", Message: "must not be negative"}
	}
	return nil
}

// Planner slices the calendar into rolling train/valid/test windows.
// ⭐ SSOT: 워크포워드 구간 분할은 여기서만
type Planner struct {
	cal *calendar.Service
	cfg Config
}

// NewPlanner creates a planner after validating the configuration.
func NewPlanner(cal *calendar.Service, cfg Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinTrainSessions == 0 {
		cfg.MinTrainSessions = DefaultMinTrainSessions
	}
	return &Planner{cal: cal, cfg: cfg}, nil
}

// Windows starts a lazy, restartable window sequence whose first train span
// begins at the first session on or after start. The sequence is finite:
// it stops when the next test span would extend past calendar coverage.
func (p *Planner) Windows(start time.Time) (*Iterator, error) {
	trainStart, err := p.cal.SessionOnOrAfter(start)
	if err != nil {
		return nil, fmt.Errorf("plan windows: %w", err)
	}

	// 첫 번째 윈도우의 학습 구간만 미리 검사: 이후 윈도우는 전진만 하므로
	// 세션 수가 줄어들 일이 없음
	have, err := p.trainSessions(trainStart)
	if err != nil {
		return nil, err
	}
	if have < p.cfg.MinTrainSessions {
		return nil, contracts.InsufficientHistoryError{Need: p.cfg.MinTrainSessions, Have: have}
	}

	return &Iterator{planner: p, origin: trainStart, trainStart: trainStart}, nil
}

func (p *Planner) trainSessions(trainStart time.Time) (int, error) {
	trainEnd := trainStart.AddDate(p.cfg.TrainYears, 0, 0)
	days, err := p.cal.TradingDays(trainStart, trainEnd)
	if err != nil {
		var gap contracts.CalendarGapError
		if errors.As(err, &gap) {
			return 0, nil
		}
		return 0, err
	}
	return len(days), nil
}

// window materializes the window whose train span starts at trainStart,
// snapping every boundary to a real session. ok=false means the calendar
// ran out of coverage for the test span.
func (p *Planner) window(trainStart time.Time) (contracts.WalkForwardWindow, bool, error) {
	trainEndDate := trainStart.AddDate(p.cfg.TrainYears, 0, 0)
	validEndDate := trainEndDate.AddDate(0, p.cfg.ValidMonths, 0)
	testEndDate := validEndDate.AddDate(0, p.cfg.TestMonths, 0)

	_, lastSession, err := p.cal.Span()
	if err != nil {
		return contracts.WalkForwardWindow{}, false, err
	}
	if testEndDate.After(lastSession) {
		return contracts.WalkForwardWindow{}, false, nil
	}

	trainEnd, err := p.cal.SessionOnOrBefore(trainEndDate)
	if err != nil {
		return contracts.WalkForwardWindow{}, false, err
	}
	validEnd, err := p.cal.SessionOnOrBefore(validEndDate)
	if err != nil {
		return contracts.WalkForwardWindow{}, false, err
	}
	testEnd, err := p.cal.SessionOnOrBefore(testEndDate)
	if err != nil {
		return contracts.WalkForwardWindow{}, false, err
	}

	w := contracts.WalkForwardWindow{
		TrainStart:       trainStart,
		TrainEnd:         trainEnd,
		ValidEnd:         validEnd,
		TestEnd:          testEnd,
		LabelHorizonDays: p.cfg.LabelHorizonDays,
		LabelStartOffset: p.cfg.LabelStartOffset,
	}
	if err := w.Validate(); err != nil {
		return contracts.WalkForwardWindow{}, false, fmt.Errorf("plan windows: %w", err)
	}
	return w, true, nil
}

// Plan materializes the complete finite sequence at once. Sweep workers
// prefer this; incremental callers use Windows.
func (p *Planner) Plan(start time.Time) ([]contracts.WalkForwardWindow, error) {
	it, err := p.Windows(start)
	if err != nil {
		return nil, err
	}
	var out []contracts.WalkForwardWindow
	for {
		w, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, w)
	}
	return out, nil
}

// Iterator walks the window sequence lazily.
type Iterator struct {
	planner    *Planner
	origin     time.Time
	trainStart time.Time
	done       bool
}

// Next yields the next window. ok=false marks exhaustion; the iterator stays
// exhausted until Reset.
func (it *Iterator) Next() (contracts.WalkForwardWindow, bool, error) {
	if it.done {
		return contracts.WalkForwardWindow{}, false, nil
	}

	w, ok, err := it.planner.window(it.trainStart)
	if err != nil || !ok {
		it.done = true
		return contracts.WalkForwardWindow{}, false, err
	}

	next := it.trainStart.AddDate(0, it.planner.cfg.StepMonths, 0)
	snapped, serr := it.planner.cal.SessionOnOrAfter(next)
	if serr != nil {
		// 캘린더 끝: 이번 윈도우가 마지막
		it.done = true
	} else {
		it.trainStart = snapped
	}
	return w, true, nil
}

// Reset rewinds the iterator to its first window.
func (it *Iterator) Reset() {
	it.trainStart = it.origin
	it.done = false
}
