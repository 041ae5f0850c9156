package contracts

import "time"

// =============================================================================
// Dates
// =============================================================================

// NormalizeDate truncates a timestamp to its UTC calendar date.
// ⭐ SSOT: 모든 날짜 비교는 UTC 자정 기준으로만 수행
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	return NormalizeDate(a).Equal(NormalizeDate(b))
}

// DateRange is an inclusive [From, To] calendar span.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether date falls inside the range (inclusive).
func (r DateRange) Contains(date time.Time) bool {
	d := NormalizeDate(date)
	return !d.Before(NormalizeDate(r.From)) && !d.After(NormalizeDate(r.To))
}

// Key returns a stable cache key fragment for the range.
func (r DateRange) Key() string {
	return r.From.Format("20060102") + "-" + r.To.Format("20060102")
}

// =============================================================================
// Symbol Lifecycle
// =============================================================================

// SymbolLifecycleEntry describes one listing epoch of a security.
// 활성 구간은 [ListingDate, DelistingDate) 반개구간
type SymbolLifecycleEntry struct {
	Symbol        string     `json:"symbol"`
	ListingDate   time.Time  `json:"listing_date"`
	DelistingDate *time.Time `json:"delisting_date,omitempty"` // nil = still listed
	RenamedTo     string     `json:"renamed_to,omitempty"`     // successor ticker, "" = none
}

// ActiveOn reports whether the symbol is listed on the given trading day.
func (e SymbolLifecycleEntry) ActiveOn(date time.Time) bool {
	d := NormalizeDate(date)
	if d.Before(NormalizeDate(e.ListingDate)) {
		return false
	}
	if e.DelistingDate != nil && !d.Before(NormalizeDate(*e.DelistingDate)) {
		return false
	}
	return true
}

// =============================================================================
// Fundamentals
// =============================================================================

// FundamentalFact is one immutable fundamentals observation.
// ⭐ SSOT: 팩트는 절대 수정하지 않음 - 정정 공시는 새 버전으로 append
// AvailableDate is when the fact became publicly consumable; every PIT
// lookup filters on it, never on ReportedDate.
type FundamentalFact struct {
	Symbol        string    `json:"symbol"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	PeriodEnd     time.Time `json:"period_end"`     // 보고 대상 기간 말일
	ReportedDate  time.Time `json:"reported_date"`  // 공시 주체의 보고일
	AvailableDate time.Time `json:"available_date"` // 시장에 공개된 날짜
	IngestSeq     int64     `json:"ingest_seq"`     // monotonically increasing per ingestion
}

// Valid reports whether the fact satisfies AvailableDate >= ReportedDate.
func (f FundamentalFact) Valid() bool {
	return !NormalizeDate(f.AvailableDate).Before(NormalizeDate(f.ReportedDate))
}

// Common metric names. Vendors map their own field names onto these.
const (
	MetricSharesOutstanding = "shares_outstanding"
	MetricNetIncomeTTM      = "net_income_ttm"
	MetricRevenueTTM        = "revenue_ttm"
	MetricBookValue         = "book_value"
	MetricOperatingMargin   = "operating_margin"
)

// =============================================================================
// Prices
// =============================================================================

// PriceBar is one finalized daily bar.
// 과거 날짜 봉은 불변, 당일 봉만 장중 수정 가능
type PriceBar struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Close     float64   `json:"close"`      // raw close
	AdjClose  float64   `json:"adj_close"`  // adjusted for splits/dividends
	AdjFactor float64   `json:"adj_factor"` // AdjClose = Close * AdjFactor
}

// =============================================================================
// PIT Snapshot
// =============================================================================

// PITSnapshot is one point-in-time feature row: the most recent publicly
// available fundamentals joined with the snapshot date's raw close.
// Invariant: every field is derivable from data with available_date (or
// price date) <= SnapshotDate. Absent metrics are absent, never zero-filled.
type PITSnapshot struct {
	SnapshotDate  time.Time          `json:"snapshot_date"`
	Symbol        string             `json:"symbol"`
	Metrics       map[string]float64 `json:"metrics"`
	Close         float64            `json:"close"`
	PITMarketCap  float64            `json:"pit_market_cap"` // shares_outstanding * Close, 0 if shares absent
	IngestVersion int64              `json:"ingest_version"` // max IngestSeq visible at build time
}

// Metric returns a metric value and whether it is present.
func (s PITSnapshot) Metric(name string) (float64, bool) {
	v, ok := s.Metrics[name]
	return v, ok
}
