package purchasing

import (
	"context"
	"time"
)

// Notification event types emitted after successful commits.
const (
	EventOrderCreated       = "purchase.order.created"
	EventOrderUpdated       = "purchase.order.updated"
	EventOrderConfirmed     = "purchase.order.confirmed"
	EventOrderInProgress    = "purchase.order.in_progress"
	EventOrderReceived      = "purchase.order.received"
	EventOrderCancelled     = "purchase.order.cancelled"
	EventInvoiceAdded       = "purchase.invoice.added"
	EventPaymentRegistered  = "purchase.payment.registered"
	EventQuotationConverted = "purchase.quotation.converted"
)

// OrderEvent is the payload delivered for order lifecycle notifications.
type OrderEvent struct {
	OrderID    int64     `json:"order_id"`
	CompanyID  int64     `json:"company_id"`
	SupplierID int64     `json:"supplier_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvoiceEvent is the payload for invoice and payment notifications.
type InvoiceEvent struct {
	InvoiceID  int64     `json:"invoice_id"`
	OrderID    int64     `json:"order_id"`
	CompanyID  int64     `json:"company_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotifierPort delivers best-effort notifications. Implementations must not
// block commits; failures are logged by the caller and otherwise ignored.
type NotifierPort interface {
	Notify(ctx context.Context, eventType string, payload any) error
}
