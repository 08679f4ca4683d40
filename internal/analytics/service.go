package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Service coordinates KPI query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

const defaultTopN = 5

var hundred = decimal.NewFromInt(100)

// GetKPIs resolves the spend report for the window, cache-aside. Growth is
// measured against the immediately preceding window of equal length; with a
// zero baseline the growth field is omitted rather than inflated.
func (s *Service) GetKPIs(ctx context.Context, filter KPIFilter) (KPIReport, error) {
	if filter.CompanyID <= 0 {
		return KPIReport{}, fmt.Errorf("analytics: invalid company ID %d", filter.CompanyID)
	}
	if !filter.To.After(filter.From) {
		return KPIReport{}, fmt.Errorf("analytics: empty date range %s..%s", filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"))
	}
	if filter.TopN <= 0 {
		filter.TopN = defaultTopN
	}

	loader := func(ctx context.Context) (any, error) {
		return s.build(ctx, filter)
	}
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return KPIReport{}, err
		}
		return value.(KPIReport), nil
	}
	key, err := s.cache.BuildKey(ctx, "purchasing", "kpi",
		strconv.FormatInt(filter.CompanyID, 10),
		filter.From.Format("2006-01-02"), filter.To.Format("2006-01-02"),
		strconv.Itoa(filter.TopN))
	if err != nil {
		return KPIReport{}, err
	}
	var report KPIReport
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return KPIReport{}, err
	}
	return report, nil
}

func (s *Service) build(ctx context.Context, filter KPIFilter) (KPIReport, error) {
	window := filter.To.Sub(filter.From)
	prevFrom := filter.From.Add(-window)

	var (
		current     SpendSummary
		previous    SpendSummary
		suppliers   []SupplierSpend
		categories  []CategorySpend
		fulfillment Fulfillment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		current, err = s.repo.SpendSummary(gctx, filter.CompanyID, filter.From, filter.To)
		return err
	})
	g.Go(func() (err error) {
		previous, err = s.repo.SpendSummary(gctx, filter.CompanyID, prevFrom, filter.From)
		return err
	})
	g.Go(func() (err error) {
		suppliers, err = s.repo.TopSuppliers(gctx, filter.CompanyID, filter.From, filter.To, filter.TopN)
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.repo.TopCategories(gctx, filter.CompanyID, filter.From, filter.To, filter.TopN)
		return err
	})
	g.Go(func() (err error) {
		fulfillment, err = s.repo.Fulfillment(gctx, filter.CompanyID, filter.From, filter.To)
		return err
	})
	if err := g.Wait(); err != nil {
		return KPIReport{}, err
	}

	report := KPIReport{
		From:            filter.From,
		To:              filter.To,
		TotalSpend:      current.TotalSpend.Round(2),
		OrderCount:      current.OrderCount,
		AvgOrderValue:   decimal.Zero,
		AvgLeadTimeDays: fulfillment.AvgLeadDays,
		TopSuppliers:    withShare(suppliers, current.TotalSpend),
		TopCategories:   withCategoryShare(categories, current.TotalSpend),
	}
	if current.OrderCount > 0 {
		report.AvgOrderValue = current.TotalSpend.Div(decimal.NewFromInt(current.OrderCount)).Round(2)
	}
	if previous.TotalSpend.IsPositive() {
		growth := current.TotalSpend.Sub(previous.TotalSpend).Div(previous.TotalSpend).Mul(hundred).Round(1)
		report.GrowthPct = &growth
	}
	if fulfillment.ScopedCount > 0 {
		report.FulfillmentPct = decimal.NewFromInt(fulfillment.ReceivedCount).
			Div(decimal.NewFromInt(fulfillment.ScopedCount)).Mul(hundred).Round(1)
	}
	return report, nil
}

func withShare(rows []SupplierSpend, total decimal.Decimal) []SupplierSpend {
	out := make([]SupplierSpend, 0, len(rows))
	for _, row := range rows {
		row.Spend = row.Spend.Round(2)
		if total.IsPositive() {
			row.SharePct = row.Spend.Div(total).Mul(hundred).Round(1)
		}
		out = append(out, row)
	}
	return out
}

func withCategoryShare(rows []CategorySpend, total decimal.Decimal) []CategorySpend {
	out := make([]CategorySpend, 0, len(rows))
	for _, row := range rows {
		row.Spend = row.Spend.Round(2)
		if total.IsPositive() {
			row.SharePct = row.Spend.Div(total).Mul(hundred).Round(1)
		}
		out = append(out, row)
	}
	return out
}

// ParseRange reads from/to query values, defaulting to the current month.
func ParseRange(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	if fromRaw == "" && toRaw == "" {
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), nil
	}
	from, err := time.Parse("2006-01-02", fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("analytics: from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("analytics: to must be YYYY-MM-DD")
	}
	return from, to, nil
}
