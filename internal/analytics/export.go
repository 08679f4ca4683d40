package analytics

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// amounts are printed the way Peruvian finance teams read them:
// S/ 1,234.56 with es-PE grouping.
var currencyPrinter = message.NewPrinter(language.MustParse("es-PE"))

func formatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return currencyPrinter.Sprintf("S/ %.2f", f)
}

// WriteKPICSV serialises the KPI report to CSV.
func WriteKPICSV(w io.Writer, report KPIReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	growth := "n/a"
	if report.GrowthPct != nil {
		growth = report.GrowthPct.StringFixed(1) + "%"
	}
	records := [][]string{
		{"From", report.From.Format("2006-01-02")},
		{"To", report.To.Format("2006-01-02")},
		{"Total Spend", formatAmount(report.TotalSpend)},
		{"Order Count", decimal.NewFromInt(report.OrderCount).String()},
		{"Average Order Value", formatAmount(report.AvgOrderValue)},
		{"Growth vs Previous Period", growth},
		{"Fulfillment Rate", report.FulfillmentPct.StringFixed(1) + "%"},
		{"Average Lead Time (days)", report.AvgLeadTimeDays.StringFixed(1)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{"Top Supplier", "Spend", "Share"}); err != nil {
		return err
	}
	for _, s := range report.TopSuppliers {
		if err := writer.Write([]string{s.Name, formatAmount(s.Spend), s.SharePct.StringFixed(1) + "%"}); err != nil {
			return err
		}
	}

	if err := writer.Write([]string{"Top Category", "Spend", "Share"}); err != nil {
		return err
	}
	for _, c := range report.TopCategories {
		if err := writer.Write([]string{c.Category, formatAmount(c.Spend), c.SharePct.StringFixed(1) + "%"}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
