package analytics

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	summaries     map[string]SpendSummary
	suppliers     []SupplierSpend
	categories    []CategorySpend
	fulfillment   Fulfillment
	summaryCalls  int
	supplierCalls int
}

func windowKey(from, to time.Time) string {
	return from.Format("2006-01-02") + ".." + to.Format("2006-01-02")
}

func (m *mockRepo) SpendSummary(ctx context.Context, companyID int64, from, to time.Time) (SpendSummary, error) {
	m.summaryCalls++
	return m.summaries[windowKey(from, to)], nil
}

func (m *mockRepo) TopSuppliers(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]SupplierSpend, error) {
	m.supplierCalls++
	if limit < len(m.suppliers) {
		return m.suppliers[:limit], nil
	}
	return m.suppliers, nil
}

func (m *mockRepo) TopCategories(ctx context.Context, companyID int64, from, to time.Time, limit int) ([]CategorySpend, error) {
	return m.categories, nil
}

func (m *mockRepo) Fulfillment(ctx context.Context, companyID int64, from, to time.Time) (Fulfillment, error) {
	return m.fulfillment, nil
}

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func testWindow() (time.Time, time.Time) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func seededRepo(t *testing.T) *mockRepo {
	from, to := testWindow()
	prevFrom := from.Add(-to.Sub(from))
	return &mockRepo{
		summaries: map[string]SpendSummary{
			windowKey(from, to):       {TotalSpend: d(t, "10000.00"), OrderCount: 4},
			windowKey(prevFrom, from): {TotalSpend: d(t, "8000.00"), OrderCount: 5},
		},
		suppliers: []SupplierSpend{
			{SupplierID: 10, Name: "Aceros del Sur", Spend: d(t, "6000.00")},
			{SupplierID: 11, Name: "Ferretería Lima", Spend: d(t, "4000.00")},
		},
		categories: []CategorySpend{
			{Category: "steel", Spend: d(t, "7500.00")},
		},
		fulfillment: Fulfillment{ReceivedCount: 3, ScopedCount: 4, AvgLeadDays: d(t, "6.5")},
	}
}

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute))
}

func TestGetKPIs(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(repo, nil)
	from, to := testWindow()

	report, err := svc.GetKPIs(context.Background(), KPIFilter{CompanyID: 1, From: from, To: to})
	require.NoError(t, err)
	require.Equal(t, "10000.00", report.TotalSpend.StringFixed(2))
	require.EqualValues(t, 4, report.OrderCount)
	require.Equal(t, "2500.00", report.AvgOrderValue.StringFixed(2))
	require.NotNil(t, report.GrowthPct)
	require.Equal(t, "25.0", report.GrowthPct.StringFixed(1))
	require.Equal(t, "75.0", report.FulfillmentPct.StringFixed(1))
	require.Equal(t, "6.5", report.AvgLeadTimeDays.StringFixed(1))

	require.Len(t, report.TopSuppliers, 2)
	require.Equal(t, "60.0", report.TopSuppliers[0].SharePct.StringFixed(1))
	require.Equal(t, "40.0", report.TopSuppliers[1].SharePct.StringFixed(1))
	require.Len(t, report.TopCategories, 1)
	require.Equal(t, "75.0", report.TopCategories[0].SharePct.StringFixed(1))
}

func TestGetKPIsOmitsGrowthWithoutBaseline(t *testing.T) {
	from, to := testWindow()
	repo := &mockRepo{
		summaries: map[string]SpendSummary{
			windowKey(from, to): {TotalSpend: d(t, "500.00"), OrderCount: 1},
		},
	}
	svc := NewService(repo, nil)

	report, err := svc.GetKPIs(context.Background(), KPIFilter{CompanyID: 1, From: from, To: to})
	require.NoError(t, err)
	require.Nil(t, report.GrowthPct)
	require.Equal(t, "0.0", report.FulfillmentPct.StringFixed(1))
}

func TestGetKPIsCaches(t *testing.T) {
	repo := seededRepo(t)
	svc := newCachedService(t, repo)
	from, to := testWindow()
	filter := KPIFilter{CompanyID: 1, From: from, To: to}

	first, err := svc.GetKPIs(context.Background(), filter)
	require.NoError(t, err)
	callsAfterFirst := repo.summaryCalls

	second, err := svc.GetKPIs(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, callsAfterFirst, repo.summaryCalls, "second read must come from cache")
	require.Equal(t, first.TotalSpend.StringFixed(2), second.TotalSpend.StringFixed(2))

	// Bumping the version forces a reload.
	require.NoError(t, svc.cache.Bump(context.Background()))
	_, err = svc.GetKPIs(context.Background(), filter)
	require.NoError(t, err)
	require.Greater(t, repo.summaryCalls, callsAfterFirst)
}

func TestGetKPIsRejectsBadFilter(t *testing.T) {
	svc := NewService(seededRepo(t), nil)
	from, to := testWindow()

	_, err := svc.GetKPIs(context.Background(), KPIFilter{CompanyID: 0, From: from, To: to})
	require.Error(t, err)

	_, err = svc.GetKPIs(context.Background(), KPIFilter{CompanyID: 1, From: to, To: from})
	require.Error(t, err)
}

func TestWriteKPICSV(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(repo, nil)
	from, to := testWindow()

	report, err := svc.GetKPIs(context.Background(), KPIFilter{CompanyID: 1, From: from, To: to})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteKPICSV(&buf, report))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "Metric,Value"))
	require.Contains(t, out, "Total Spend")
	require.Contains(t, out, "Aceros del Sur")
	require.Contains(t, out, "25.0%")
}

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	from, to, err := ParseRange("", "", now)
	require.NoError(t, err)
	require.Equal(t, "2026-08-01", from.Format("2006-01-02"))
	require.Equal(t, "2026-09-01", to.Format("2006-01-02"))

	from, to, err = ParseRange("2026-01-01", "2026-04-01", now)
	require.NoError(t, err)
	require.Equal(t, 90*24*time.Hour, to.Sub(from))

	_, _, err = ParseRange("2026-01-01", "bad", now)
	require.Error(t, err)
}
