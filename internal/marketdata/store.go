package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// Store holds finalized daily bars per symbol plus reference index levels.
// 과거 봉은 불변: 최신 거래일 봉만 장중 수정 허용
type Store struct {
	mu    sync.RWMutex
	bars  map[string][]contracts.PriceBar // sorted by date ascending
	index map[string][]indexLevel         // index name -> sorted levels
}

type indexLevel struct {
	date  time.Time
	level float64
}

// NewStore creates an empty market data store.
func NewStore() *Store {
	return &Store{
		bars:  make(map[string][]contracts.PriceBar),
		index: make(map[string][]indexLevel),
	}
}

// AddBar appends or revises a bar. Only the most recent bar for a symbol may
// be revised; touching an older finalized bar is an error.
func (s *Store) AddBar(bar contracts.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bar.Date = contracts.NormalizeDate(bar.Date)
	series := s.bars[bar.Symbol]

	if n := len(series); n > 0 {
		last := series[n-1].Date
		switch {
		case bar.Date.After(last):
			// append below
		case bar.Date.Equal(last):
			series[n-1] = bar // intraday revision of the latest bar
			return nil
		default:
			return fmt.Errorf("bar %s/%s: finalized past bars are immutable",
				bar.Symbol, bar.Date.Format("2006-01-02"))
		}
	}

	s.bars[bar.Symbol] = append(series, bar)
	return nil
}

// BarOn implements contracts.PriceSource. A date with no bar for the symbol
// (halt, suspension) yields MissingPriceError for that symbol only.
func (s *Store) BarOn(_ context.Context, symbol string, date time.Time) (*contracts.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := contracts.NormalizeDate(date)
	series := s.bars[symbol]
	i := sort.Search(len(series), func(i int) bool { return !series[i].Date.Before(d) })
	if i >= len(series) || !series[i].Date.Equal(d) {
		return nil, contracts.MissingPriceError{Symbol: symbol, Date: d}
	}
	bar := series[i]
	return &bar, nil
}

// ClosesUpTo implements contracts.PriceSource: the last n adjusted closes
// with date <= date, oldest first. Shorter history returns what exists.
func (s *Store) ClosesUpTo(_ context.Context, symbol string, date time.Time, n int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := contracts.NormalizeDate(date)
	series := s.bars[symbol]
	hi := sort.Search(len(series), func(i int) bool { return series[i].Date.After(d) })
	lo := hi - n
	if lo < 0 {
		lo = 0
	}

	out := make([]float64, 0, hi-lo)
	for _, bar := range series[lo:hi] {
		out = append(out, bar.AdjClose)
	}
	return out, nil
}

// =============================================================================
// Reference Index
// =============================================================================

// AddIndexLevel records one closing level of a reference index.
func (s *Store) AddIndexLevel(name string, date time.Time, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := contracts.NormalizeDate(date)
	series := s.index[name]
	if n := len(series); n > 0 && !series[n-1].date.Before(d) {
		if series[n-1].date.Equal(d) {
			series[n-1].level = level
			return
		}
		// out-of-order insert: re-sort, rare path
		series = append(series, indexLevel{d, level})
		sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })
		s.index[name] = series
		return
	}
	s.index[name] = append(series, indexLevel{d, level})
}

// IndexLevel returns the index close on date, false if absent.
func (s *Store) IndexLevel(name string, date time.Time) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := contracts.NormalizeDate(date)
	series := s.index[name]
	i := sort.Search(len(series), func(i int) bool { return !series[i].date.Before(d) })
	if i >= len(series) || !series[i].date.Equal(d) {
		return 0, false
	}
	return series[i].level, true
}

// IndexMA returns the simple moving average of the last window levels ending
// at date (inclusive). false when fewer than window levels exist up to date.
func (s *Store) IndexMA(name string, date time.Time, window int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if window <= 0 {
		return 0, false
	}

	d := contracts.NormalizeDate(date)
	series := s.index[name]
	hi := sort.Search(len(series), func(i int) bool { return series[i].date.After(d) })
	if hi < window {
		return 0, false
	}

	var sum float64
	for _, lv := range series[hi-window : hi] {
		sum += lv.level
	}
	return sum / float64(window), true
}
