package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIFilter scopes the spend aggregation. Orders count when their status is
// CONFIRMED, IN_PROGRESS or RECEIVED; drafts and cancellations are excluded.
type KPIFilter struct {
	CompanyID int64
	From      time.Time
	To        time.Time
	TopN      int
}

// SupplierSpend is one row of the top-supplier ranking.
type SupplierSpend struct {
	SupplierID int64           `json:"supplier_id"`
	Name       string          `json:"name"`
	Spend      decimal.Decimal `json:"spend"`
	SharePct   decimal.Decimal `json:"share_pct"`
}

// CategorySpend is one row of the top-category ranking.
type CategorySpend struct {
	Category string          `json:"category"`
	Spend    decimal.Decimal `json:"spend"`
	SharePct decimal.Decimal `json:"share_pct"`
}

// KPIReport is the spend dashboard payload for one company and window.
type KPIReport struct {
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	TotalSpend      decimal.Decimal  `json:"total_spend"`
	OrderCount      int64            `json:"order_count"`
	AvgOrderValue   decimal.Decimal  `json:"avg_order_value"`
	GrowthPct       *decimal.Decimal `json:"growth_pct,omitempty"`
	FulfillmentPct  decimal.Decimal  `json:"fulfillment_pct"`
	AvgLeadTimeDays decimal.Decimal  `json:"avg_lead_time_days"`
	TopSuppliers    []SupplierSpend  `json:"top_suppliers"`
	TopCategories   []CategorySpend  `json:"top_categories"`
}

// SpendSummary is the aggregate row for one window.
type SpendSummary struct {
	TotalSpend decimal.Decimal
	OrderCount int64
}

// Fulfillment carries the reception-side aggregates for one window.
type Fulfillment struct {
	ReceivedCount int64
	ScopedCount   int64
	AvgLeadDays   decimal.Decimal
}
