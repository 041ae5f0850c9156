package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdaySessions generates weekday sessions in [from, to].
func weekdaySessions(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func TestService_TradingDays(t *testing.T) {
	sessions := weekdaySessions(date(2024, 1, 1), date(2024, 3, 29))
	svc, err := NewService(sessions, nil)
	require.NoError(t, err)

	days, err := svc.TradingDays(date(2024, 1, 8), date(2024, 1, 12))
	require.NoError(t, err)
	assert.Len(t, days, 5)
	assert.Equal(t, date(2024, 1, 8), days[0])
	assert.Equal(t, date(2024, 1, 12), days[4])

	// 주말로만 구성된 구간은 커버리지 없음
	_, err = svc.TradingDays(date(2024, 1, 6), date(2024, 1, 7))
	var gap contracts.CalendarGapError
	assert.True(t, errors.As(err, &gap), "expected CalendarGapError, got %v", err)

	// 캘린더 범위 밖
	_, err = svc.TradingDays(date(2025, 1, 1), date(2025, 2, 1))
	assert.True(t, errors.As(err, &gap))
}

func TestService_TradingDays_Deduplicated(t *testing.T) {
	dup := []time.Time{date(2024, 1, 2), date(2024, 1, 2), date(2024, 1, 3)}
	svc, err := NewService(dup, nil)
	require.NoError(t, err)

	days, err := svc.TradingDays(date(2024, 1, 1), date(2024, 1, 31))
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestService_ActiveSymbols(t *testing.T) {
	delisted := date(2024, 2, 1)
	entries := []contracts.SymbolLifecycleEntry{
		{Symbol: "AAA", ListingDate: date(2020, 1, 2)},
		{Symbol: "BBB", ListingDate: date(2020, 1, 2), DelistingDate: &delisted},
		{Symbol: "OLD", ListingDate: date(2020, 1, 2), DelistingDate: &delisted, RenamedTo: "NEW"},
		{Symbol: "NEW", ListingDate: date(2024, 2, 1)},
	}
	svc, err := NewService(weekdaySessions(date(2024, 1, 1), date(2024, 6, 28)), entries)
	require.NoError(t, err)

	// 개명 전: OLD는 canonical NEW로 매핑됨
	before := svc.ActiveSymbols(date(2024, 1, 15))
	assert.True(t, before["AAA"])
	assert.True(t, before["BBB"])
	assert.True(t, before["NEW"], "renamed ticker must resolve to canonical symbol")
	assert.False(t, before["OLD"])

	after := svc.ActiveSymbols(date(2024, 3, 15))
	assert.True(t, after["AAA"])
	assert.False(t, after["BBB"], "delisted symbol must drop out")
	assert.True(t, after["NEW"])
}

func TestService_RenameChain(t *testing.T) {
	entries := []contracts.SymbolLifecycleEntry{
		{Symbol: "A", ListingDate: date(2020, 1, 2), RenamedTo: "B"},
		{Symbol: "B", ListingDate: date(2021, 1, 2), RenamedTo: "C"},
		{Symbol: "C", ListingDate: date(2022, 1, 2)},
	}
	svc, err := NewService(weekdaySessions(date(2024, 1, 1), date(2024, 1, 31)), entries)
	require.NoError(t, err)

	assert.Equal(t, "C", svc.Canonical("A"), "chain must resolve to terminal ticker")
	assert.Equal(t, "C", svc.Canonical("B"))
	assert.Equal(t, "C", svc.Canonical("C"))
}

func TestService_RenameCycleRejected(t *testing.T) {
	entries := []contracts.SymbolLifecycleEntry{
		{Symbol: "A", ListingDate: date(2020, 1, 2), RenamedTo: "B"},
		{Symbol: "B", ListingDate: date(2021, 1, 2), RenamedTo: "A"},
	}
	_, err := NewService(weekdaySessions(date(2024, 1, 1), date(2024, 1, 31)), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestService_SessionOffset(t *testing.T) {
	svc, err := NewService(weekdaySessions(date(2024, 1, 1), date(2024, 1, 31)), nil)
	require.NoError(t, err)

	// 금요일 +1 = 월요일
	next, err := svc.SessionOffset(date(2024, 1, 5), 1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 8), next)

	prev, err := svc.SessionOffset(date(2024, 1, 8), -1)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 5), prev)

	_, err = svc.SessionOffset(date(2024, 1, 1), -1)
	assert.Error(t, err, "stepping before calendar start must fail")
}
