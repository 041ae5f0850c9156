package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// Service answers trading-day and universe queries over immutable lifecycle
// data. Pure: no side effects after construction.
// ⭐ SSOT: 거래일/유니버스 조회는 이 서비스에서만
type Service struct {
	sessions  []time.Time          // ordered, deduplicated, UTC midnight
	sessionIx map[time.Time]int    // session -> position in sessions
	entries   map[string][]contracts.SymbolLifecycleEntry
	canonical map[string]string // old ticker -> terminal ticker of its rename chain
}

// NewService builds a calendar service. Sessions are sorted and deduplicated;
// rename chains are resolved eagerly and rejected if they cycle.
func NewService(sessions []time.Time, entries []contracts.SymbolLifecycleEntry) (*Service, error) {
	days := make([]time.Time, 0, len(sessions))
	seen := make(map[time.Time]bool, len(sessions))
	for _, s := range sessions {
		d := contracts.NormalizeDate(s)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	ix := make(map[time.Time]int, len(days))
	for i, d := range days {
		ix[d] = i
	}

	bys := make(map[string][]contracts.SymbolLifecycleEntry)
	renames := make(map[string]string)
	for _, e := range entries {
		bys[e.Symbol] = append(bys[e.Symbol], e)
		if e.RenamedTo != "" {
			renames[e.Symbol] = e.RenamedTo
		}
	}

	canonical, err := resolveRenameChains(renames)
	if err != nil {
		return nil, err
	}

	return &Service{
		sessions:  days,
		sessionIx: ix,
		entries:   bys,
		canonical: canonical,
	}, nil
}

// resolveRenameChains follows every chain to its terminal ticker.
// 사이클 발견 시 구성 단계에서 즉시 실패
func resolveRenameChains(renames map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(renames))
	for from := range renames {
		cur := from
		visited := map[string]bool{cur: true}
		for {
			next, ok := renames[cur]
			if !ok {
				break
			}
			if visited[next] {
				return nil, fmt.Errorf("rename chain cycle involving %q", from)
			}
			visited[next] = true
			cur = next
		}
		resolved[from] = cur
	}
	return resolved, nil
}

// Canonical maps a possibly-renamed ticker to the terminal ticker of its
// rename chain, so historical rows keep pointing at the continuous security.
func (s *Service) Canonical(symbol string) string {
	if to, ok := s.canonical[symbol]; ok {
		return to
	}
	return symbol
}

// TradingDays returns the ordered sessions in [start, end].
// Fails with CalendarGapError when the requested range has no coverage.
func (s *Service) TradingDays(start, end time.Time) ([]time.Time, error) {
	from := contracts.NormalizeDate(start)
	to := contracts.NormalizeDate(end)
	if len(s.sessions) == 0 ||
		to.Before(s.sessions[0]) || from.After(s.sessions[len(s.sessions)-1]) {
		return nil, contracts.CalendarGapError{From: from, To: to}
	}

	lo := sort.Search(len(s.sessions), func(i int) bool { return !s.sessions[i].Before(from) })
	hi := sort.Search(len(s.sessions), func(i int) bool { return s.sessions[i].After(to) })
	if lo >= hi {
		return nil, contracts.CalendarGapError{From: from, To: to}
	}

	out := make([]time.Time, hi-lo)
	copy(out, s.sessions[lo:hi])
	return out, nil
}

// IsSession reports whether date is a trading day.
func (s *Service) IsSession(date time.Time) bool {
	_, ok := s.sessionIx[contracts.NormalizeDate(date)]
	return ok
}

// SessionOffset returns the session n steps after date (negative n steps
// back). date must itself be a session.
func (s *Service) SessionOffset(date time.Time, n int) (time.Time, error) {
	i, ok := s.sessionIx[contracts.NormalizeDate(date)]
	if !ok {
		return time.Time{}, contracts.CalendarGapError{From: date, To: date}
	}
	j := i + n
	if j < 0 || j >= len(s.sessions) {
		return time.Time{}, contracts.CalendarGapError{From: date, To: date}
	}
	return s.sessions[j], nil
}

// SessionOnOrBefore snaps an arbitrary calendar date to the latest session
// not after it.
func (s *Service) SessionOnOrBefore(date time.Time) (time.Time, error) {
	d := contracts.NormalizeDate(date)
	i := sort.Search(len(s.sessions), func(i int) bool { return s.sessions[i].After(d) })
	if i == 0 {
		return time.Time{}, contracts.CalendarGapError{From: d, To: d}
	}
	return s.sessions[i-1], nil
}

// SessionOnOrAfter snaps an arbitrary calendar date to the earliest session
// not before it.
func (s *Service) SessionOnOrAfter(date time.Time) (time.Time, error) {
	d := contracts.NormalizeDate(date)
	i := sort.Search(len(s.sessions), func(i int) bool { return !s.sessions[i].Before(d) })
	if i >= len(s.sessions) {
		return time.Time{}, contracts.CalendarGapError{From: d, To: d}
	}
	return s.sessions[i], nil
}

// SessionsBefore counts sessions strictly before date.
func (s *Service) SessionsBefore(date time.Time) int {
	d := contracts.NormalizeDate(date)
	return sort.Search(len(s.sessions), func(i int) bool { return !s.sessions[i].Before(d) })
}

// ActiveSymbols returns the canonical symbols active on the given date.
// 상장폐지/개명 반영 - survivorship bias 방지의 핵심
func (s *Service) ActiveSymbols(date time.Time) map[string]bool {
	active := make(map[string]bool)
	for sym, entries := range s.entries {
		for _, e := range entries {
			if e.ActiveOn(date) {
				active[s.Canonical(sym)] = true
				break
			}
		}
	}
	return active
}

// ActiveSymbolsSorted returns the active universe in deterministic order.
func (s *Service) ActiveSymbolsSorted(date time.Time) []string {
	set := s.ActiveSymbols(date)
	syms := make([]string, 0, len(set))
	for sym := range set {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Span returns the first and last covered session.
func (s *Service) Span() (time.Time, time.Time, error) {
	if len(s.sessions) == 0 {
		return time.Time{}, time.Time{}, contracts.CalendarGapError{}
	}
	return s.sessions[0], s.sessions[len(s.sessions)-1], nil
}
