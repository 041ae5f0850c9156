package naver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pitlab/internal/contracts"
)

const siseJSONBody = `[["날짜", "시가", "고가", "저가", "종가", "거래량", "외국인소진율"],
["20240102", 78200, 79800, 78200, 79600, 17142847, 54.21],
["20240103", 78500, 78800, 77000, 77000, 21753644, 54.10],
["20240104", 0, 0, 0, 0, 0, 54.10]]`

func TestParsePriceBody_JSONRows(t *testing.T) {
	records := parsePriceBody("005930", siseJSONBody)
	require.Len(t, records, 3)
	assert.Equal(t, "20240102", records[0].Payload["date"])
	assert.Equal(t, "79600", records[0].Payload["close"])
	assert.Equal(t, "17142847", records[0].Payload["volume"])
	assert.Equal(t, EndpointDailyPrice, records[0].Endpoint)
}

func TestParsePriceBody_RegexFallbackOnMalformedJSON(t *testing.T) {
	// 닫는 괄호 누락 등 깨진 응답
	body := `[["날짜","시가"],["20240102", 78200, 79800, 78200, 79600, 17142847` + "\ngarbage"
	records := parsePriceBody("005930", body)
	require.Len(t, records, 1)
	assert.Equal(t, "79600", records[0].Payload["close"])
}

func TestParseBars_SkipsHaltedZeroClose(t *testing.T) {
	records := parsePriceBody("005930", siseJSONBody)
	bars, err := ParseBars(records)
	require.NoError(t, err)
	require.Len(t, bars, 2) // 20240104 종가 0은 제외

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 79600.0, bars[0].Close)
	assert.Equal(t, bars[0].Close, bars[0].AdjClose)
	assert.Equal(t, 1.0, bars[0].AdjFactor)
}

func TestParseBars_MalformedDateFails(t *testing.T) {
	_, err := ParseBars([]contracts.RawRecord{{
		Symbol:  "005930",
		Payload: map[string]string{"date": "nope", "close": "100"},
	}})
	assert.Error(t, err)
}

const indexPageHTML = `<html><body>
<table class="type_1">
<tr><th>날짜</th><th>체결가</th></tr>
<tr><td>2024.01.03</td><td>2,607.31</td></tr>
<tr><td>2024.01.02</td><td>2,669.81</td></tr>
<tr><td class="blank"></td></tr>
</table>
</body></html>`

func TestParseIndexHTML_ExtractsDailyCloses(t *testing.T) {
	records, oldest, err := parseIndexHTML("KOSPI", indexPageHTML)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), oldest)
	assert.Equal(t, "2607.31", records[0].Payload["level"])

	levels, err := ParseIndexLevels(records)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, "KOSPI", levels[0].Index)
	assert.Equal(t, 2607.31, levels[0].Level)
}
