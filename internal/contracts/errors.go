package contracts

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Error Taxonomy
// =============================================================================
// 구조적 결함(캘린더/설정/히스토리 부족)은 런 전체 중단,
// 종목 단위 결함(가격 누락)은 해당 종목만 스킵하고 배치 계속.

// Recoverable sentinels for the ingestion boundary.
var (
	// ErrRateLimited means the upstream vendor throttled the request.
	// Recoverable: retry with bounded backoff.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrNotFound means the vendor has no data for the requested key.
	ErrNotFound = errors.New("not found upstream")
)

// CalendarGapError means a requested range has no session coverage.
// Fatal to the run.
type CalendarGapError struct {
	From time.Time
	To   time.Time
}

func (e CalendarGapError) Error() string {
	return fmt.Sprintf("calendar gap: no sessions covering %s ~ %s",
		e.From.Format("2006-01-02"), e.To.Format("2006-01-02"))
}

// MissingPriceError means one symbol has no price bar for a snapshot date.
// Per-symbol: skip the symbol, continue the batch.
type MissingPriceError struct {
	Symbol string
	Date   time.Time
}

func (e MissingPriceError) Error() string {
	return fmt.Sprintf("missing price: %s on %s", e.Symbol, e.Date.Format("2006-01-02"))
}

// InsufficientHistoryError means the calendar does not contain enough
// sessions before the first requested train_start. Fatal.
type InsufficientHistoryError struct {
	Need int
	Have int
}

func (e InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: need %d sessions, have %d", e.Need, e.Have)
}

// ConfigurationError rejects invalid risk-control parameters at startup.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StaleDataWarning is non-fatal: the overlay holds its previous multipliers
// for the period and the warning is logged.
type StaleDataWarning struct {
	What string
	Date time.Time
}

func (e StaleDataWarning) Error() string {
	return fmt.Sprintf("stale data: %s unavailable for %s (holding previous multipliers)",
		e.What, e.Date.Format("2006-01-02"))
}
