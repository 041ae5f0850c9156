package fundamentals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/pitlab/internal/contracts"
)

// Store is the append-only fundamentals cache with per-(symbol, metric)
// as-of indexes. Facts are never mutated; restatements append new versions.
// ⭐ SSOT: as-of 팩트 조회는 이 스토어에서만
//
// Index invariant: each (symbol, metric) slice is sorted ascending by
// (available_date, reported_date, ingest_seq), so the last entry with
// available_date <= D is exactly the tie-broken PIT winner for D.
type Store struct {
	mu      sync.RWMutex
	facts   map[string]map[string][]contracts.FundamentalFact // symbol -> metric -> sorted versions
	nextSeq int64
}

// NewStore creates an empty fundamentals store.
func NewStore() *Store {
	return &Store{
		facts:   make(map[string]map[string][]contracts.FundamentalFact),
		nextSeq: 1,
	}
}

// Append ingests one fact, assigning its ingest sequence. Safe for
// concurrent ingestion workers; re-appending an identical fact is harmless
// for PIT lookups (same available/reported dates, later seq, same value).
func (s *Store) Append(fact contracts.FundamentalFact) (contracts.FundamentalFact, error) {
	if !fact.Valid() {
		return fact, fmt.Errorf("fact %s/%s: available_date %s precedes reported_date %s",
			fact.Symbol, fact.Metric,
			fact.AvailableDate.Format("2006-01-02"), fact.ReportedDate.Format("2006-01-02"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fact.AvailableDate = contracts.NormalizeDate(fact.AvailableDate)
	fact.ReportedDate = contracts.NormalizeDate(fact.ReportedDate)
	fact.IngestSeq = s.nextSeq
	s.nextSeq++

	byMetric, ok := s.facts[fact.Symbol]
	if !ok {
		byMetric = make(map[string][]contracts.FundamentalFact)
		s.facts[fact.Symbol] = byMetric
	}

	versions := append(byMetric[fact.Metric], fact)
	// Appends arrive roughly in available_date order; sort keeps the index
	// invariant when they do not.
	sort.Slice(versions, func(i, j int) bool {
		a, b := versions[i], versions[j]
		if !a.AvailableDate.Equal(b.AvailableDate) {
			return a.AvailableDate.Before(b.AvailableDate)
		}
		if !a.ReportedDate.Equal(b.ReportedDate) {
			return a.ReportedDate.Before(b.ReportedDate)
		}
		return a.IngestSeq < b.IngestSeq
	})
	byMetric[fact.Metric] = versions

	return fact, nil
}

// AsOfMetric returns the latest fact for (symbol, metric) with
// available_date <= date, or false when none exists.
func (s *Store) AsOfMetric(symbol, metric string, date time.Time) (contracts.FundamentalFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.facts[symbol][metric]
	if len(versions) == 0 {
		return contracts.FundamentalFact{}, false
	}

	d := contracts.NormalizeDate(date)
	// First index with available_date > d; the PIT winner sits just before it.
	i := sort.Search(len(versions), func(i int) bool {
		return versions[i].AvailableDate.After(d)
	})
	if i == 0 {
		return contracts.FundamentalFact{}, false
	}
	return versions[i-1], true
}

// AsOf implements contracts.FactSource: per metric, the PIT winner for date.
// Metrics with no publicly available fact are absent from the result.
func (s *Store) AsOf(_ context.Context, symbol string, date time.Time) (map[string]contracts.FundamentalFact, error) {
	s.mu.RLock()
	metrics := make([]string, 0, len(s.facts[symbol]))
	for m := range s.facts[symbol] {
		metrics = append(metrics, m)
	}
	s.mu.RUnlock()

	out := make(map[string]contracts.FundamentalFact, len(metrics))
	for _, m := range metrics {
		if f, ok := s.AsOfMetric(symbol, m, date); ok {
			out[m] = f
		}
	}
	return out, nil
}

// Version implements contracts.FactSource: max ingest sequence so far.
func (s *Store) Version(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq - 1, nil
}

// Len returns the total number of stored fact versions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byMetric := range s.facts {
		for _, versions := range byMetric {
			n += len(versions)
		}
	}
	return n
}
