package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pitlab/internal/contracts"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "데이터 수집",
	Long: `외부 벤더로부터 데이터를 수집합니다.

수집은 멱등합니다: 같은 (심볼, 엔드포인트, 기간)은 마커 TTL 동안
한 번만 호출되고, 저장은 natural key 충돌 시 무시됩니다.

Example:
  go run ./cmd/pitlab ingest prices --from 2024-01-01 --to 2024-03-31
  go run ./cmd/pitlab ingest financials --from 2024-01-01
  go run ./cmd/pitlab ingest index --from 2024-01-01`,
}

var (
	ingestFrom string
	ingestTo   string
)

var ingestPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "일봉 수집 (Naver)",
	RunE:  runIngestPrices,
}

var ingestIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "시장 지수 수집 (Naver)",
	RunE:  runIngestIndex,
}

var ingestFinancialsCmd = &cobra.Command{
	Use:   "financials",
	Short: "재무제표 팩트 수집 (DART)",
	RunE:  runIngestFinancials,
}

var ingestSharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "상장주식수/시가총액 수집 (KRX)",
	RunE:  runIngestShares,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestPricesCmd, ingestIndexCmd, ingestFinancialsCmd, ingestSharesCmd)

	ingestCmd.PersistentFlags().StringVar(&ingestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	ingestCmd.PersistentFlags().StringVar(&ingestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
}

func ingestWindow() (contracts.DateRange, error) {
	if ingestFrom == "" {
		return contracts.DateRange{}, fmt.Errorf("--from is required")
	}
	from, err := time.Parse("2006-01-02", ingestFrom)
	if err != nil {
		return contracts.DateRange{}, fmt.Errorf("invalid from date: %w", err)
	}
	to := time.Now()
	if ingestTo != "" {
		to, err = time.Parse("2006-01-02", ingestTo)
		if err != nil {
			return contracts.DateRange{}, fmt.Errorf("invalid to date: %w", err)
		}
	}
	return contracts.DateRange{From: from, To: to}, nil
}

func runIngestPrices(cmd *cobra.Command, args []string) error {
	printHeader("Price Ingest (Naver)")

	window, err := ingestWindow()
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	cal, err := d.loadCalendar(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := d.newIngestService()
	if err != nil {
		return err
	}

	symbols := cal.ActiveSymbolsSorted(window.To)
	fmt.Printf("  Symbols : %d\n  Window  : %s\n\n", len(symbols), window.Key())

	saved, err := svc.IngestPrices(cmd.Context(), symbols, window)
	if err != nil {
		return fmt.Errorf("ingest prices: %w", err)
	}
	fmt.Printf("✅ Saved %d bars\n", saved)
	return nil
}

func runIngestIndex(cmd *cobra.Command, args []string) error {
	printHeader("Index Level Ingest (Naver)")

	window, err := ingestWindow()
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	svc, err := d.newIngestService()
	if err != nil {
		return err
	}

	saved, err := svc.IngestIndexLevels(cmd.Context(), []string{"KOSPI", "KOSDAQ"}, window)
	if err != nil {
		return fmt.Errorf("ingest index levels: %w", err)
	}
	fmt.Printf("✅ Saved %d index levels\n", saved)
	return nil
}

func runIngestFinancials(cmd *cobra.Command, args []string) error {
	printHeader("Financial Facts Ingest (DART)")

	window, err := ingestWindow()
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	cal, err := d.loadCalendar(cmd.Context())
	if err != nil {
		return err
	}
	svc, err := d.newIngestService()
	if err != nil {
		return err
	}

	symbols := cal.ActiveSymbolsSorted(window.To)
	saved, err := svc.IngestFinancials(cmd.Context(), symbols, window)
	if err != nil {
		return fmt.Errorf("ingest financials: %w", err)
	}
	fmt.Printf("✅ Saved %d facts\n", saved)
	return nil
}

func runIngestShares(cmd *cobra.Command, args []string) error {
	printHeader("Shares Outstanding Ingest (KRX)")

	window, err := ingestWindow()
	if err != nil {
		return err
	}

	d, err := initDeps()
	if err != nil {
		return err
	}
	defer d.close()

	svc, err := d.newIngestService()
	if err != nil {
		return err
	}

	saved, err := svc.IngestSharesOutstanding(cmd.Context(), []string{"KOSPI", "KOSDAQ"}, window)
	if err != nil {
		return fmt.Errorf("ingest shares outstanding: %w", err)
	}
	fmt.Printf("✅ Saved %d facts\n", saved)
	return nil
}
