package dart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
)

func rawFinancial(symbol string, payload map[string]string) contracts.RawRecord {
	return contracts.RawRecord{Symbol: symbol, Endpoint: EndpointFinancials, Payload: payload}
}

func TestParseFacts_AvailableDateFromReceipt(t *testing.T) {
	records := []contracts.RawRecord{
		rawFinancial("005930", map[string]string{
			"rcept_no":      "20240312000123",
			"account_nm":    "당기순이익",
			"fs_div":        "CFS",
			"thstrm_amount": "15,487,100,000,000",
			"thstrm_dt":     "2023.01.01 ~ 2023.12.31",
		}),
	}

	facts, err := ParseFacts(records, 7)
	require.NoError(t, err)
	require.Len(t, facts, 1)

	fact := facts[0]
	assert.Equal(t, "005930", fact.Symbol)
	assert.Equal(t, contracts.MetricNetIncomeTTM, fact.Metric)
	assert.InDelta(t, 15_487_100_000_000, fact.Value, 1)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), fact.AvailableDate)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), fact.PeriodEnd)
	assert.Equal(t, int64(7), fact.IngestSeq)
	assert.True(t, fact.Valid())
}

func TestParseFacts_DropsNonConsolidatedAndUnknownAccounts(t *testing.T) {
	records := []contracts.RawRecord{
		rawFinancial("005930", map[string]string{
			"rcept_no":      "20240312000123",
			"account_nm":    "자본총계",
			"fs_div":        "OFS", // 개별 재무제표
			"thstrm_amount": "100",
		}),
		rawFinancial("005930", map[string]string{
			"rcept_no":      "20240312000123",
			"account_nm":    "유동부채", // 매핑 없는 계정
			"fs_div":        "CFS",
			"thstrm_amount": "200",
		}),
		rawFinancial("005930", map[string]string{
			"rcept_no":      "20240312000123",
			"account_nm":    "자본총계",
			"fs_div":        "CFS",
			"thstrm_amount": "363,677,865,000,000",
			"thstrm_dt":     "2023.12.31 현재",
		}),
	}

	facts, err := ParseFacts(records, 1)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, contracts.MetricBookValue, facts[0].Metric)
}

func TestParseFacts_MalformedReceiptFails(t *testing.T) {
	records := []contracts.RawRecord{
		rawFinancial("005930", map[string]string{
			"rcept_no":      "oops",
			"account_nm":    "매출액",
			"fs_div":        "CFS",
			"thstrm_amount": "1,000",
		}),
	}
	_, err := ParseFacts(records, 1)
	assert.Error(t, err)
}

func TestReportPeriods_CoverPrecedingYearFilings(t *testing.T) {
	window := contracts.DateRange{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	periods := reportPeriods(window)

	years := map[string]bool{}
	for _, p := range periods {
		years[p.year] = true
	}
	// 2024년 3월 접수되는 2023 사업보고서를 놓치면 안 됨
	assert.True(t, years["2023"])
	assert.True(t, years["2024"])
}
