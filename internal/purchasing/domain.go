package purchasing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order lifecycle statuses.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusReceived   OrderStatus = "RECEIVED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusReceived || s == OrderStatusCancelled
}

// Operations gated by the order status.
type Operation string

const (
	OpModify  Operation = "MODIFY"
	OpConfirm Operation = "CONFIRM"
	OpStart   Operation = "START"
	OpInvoice Operation = "INVOICE"
	OpReceive Operation = "RECEIVE"
	OpCancel  Operation = "CANCEL"
)

// allowedFrom lists the statuses each operation may start from. Any pair not
// present is rejected with ErrInvalidStateTransition, never silently skipped.
var allowedFrom = map[Operation][]OrderStatus{
	OpModify:  {OrderStatusPending, OrderStatusConfirmed, OrderStatusInProgress},
	OpConfirm: {OrderStatusPending},
	OpStart:   {OrderStatusConfirmed},
	OpInvoice: {OrderStatusConfirmed, OrderStatusInProgress, OrderStatusReceived},
	OpReceive: {OrderStatusConfirmed, OrderStatusInProgress},
	OpCancel:  {OrderStatusPending, OrderStatusConfirmed, OrderStatusInProgress},
}

// Allowed reports whether op may be applied to an order in status from.
func (op Operation) Allowed(from OrderStatus) bool {
	for _, s := range allowedFrom[op] {
		if s == from {
			return true
		}
	}
	return false
}

// Purchase invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Quotation statuses.
type QuotationStatus string

const (
	QuotationStatusPending   QuotationStatus = "PENDING"
	QuotationStatusConverted QuotationStatus = "CONVERTED"
	QuotationStatusRejected  QuotationStatus = "REJECTED"
)

// PurchaseOrder domain model. Totals are mutated only through calculation
// results; Status only through the lifecycle service.
type PurchaseOrder struct {
	ID           int64
	CompanyID    int64
	SupplierID   int64
	Number       string
	Status       OrderStatus
	EmissionDate time.Time
	DeliveryDate *time.Time
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	Notes        string
	Lines        []OrderLine
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderLine is owned by its order and replaced wholesale on every update.
type OrderLine struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
	Received  bool
}

// Supplier as seen by the purchasing domain.
type Supplier struct {
	ID        int64
	CompanyID int64
	TaxID     string
	Name      string
	Email     string
	Phone     string
	Active    bool
}

// PurchaseInvoice links 1:N to a purchase order.
type PurchaseInvoice struct {
	ID        int64
	OrderID   int64
	CompanyID int64
	Number    string
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Status    InvoiceStatus
	IssuedAt  time.Time
	DueAt     time.Time
}

// Payment links 1:N to a purchase invoice.
type Payment struct {
	ID        int64
	InvoiceID int64
	Amount    decimal.Decimal
	Method    string
	PaidAt    time.Time
}

// Quotation is a supplier-priced precursor document convertible into an order.
type Quotation struct {
	ID         int64
	CompanyID  int64
	SupplierID int64
	Number     string
	Status     QuotationStatus
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	Notes      string
	Lines      []QuotationLine
	CreatedAt  time.Time
}

// QuotationLine carries the already-agreed price, copied verbatim on conversion.
type QuotationLine struct {
	ID          int64
	QuotationID int64
	ProductID   int64
	Quantity    int64
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Subtotal    decimal.Decimal
}

// Company as seen by the purchasing domain.
type Company struct {
	ID     int64
	Name   string
	Active bool
}

// Product reference data needed for line validation and stock effects.
type Product struct {
	ID        int64
	CompanyID int64
	Name      string
	IsService bool
}

var (
	// ErrNotFound indicates a referenced entity is missing or out of company scope.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrInvalidInput indicates malformed input: order number, quantities, prices, line set.
	ErrInvalidInput = errors.New("purchasing: invalid input")
	// ErrBusinessRule indicates a violated business rule: inactive parties, quotas, ceilings, date windows.
	ErrBusinessRule = errors.New("purchasing: business rule violation")
	// ErrInvalidStateTransition occurs when an operation is attempted from a disallowed status.
	ErrInvalidStateTransition = errors.New("purchasing: invalid state transition")
	// ErrCalculationInconsistency signals recomputed totals diverged beyond tolerance. Always fatal.
	ErrCalculationInconsistency = errors.New("purchasing: calculation inconsistency")
	// ErrConcurrencyConflict maps unique-constraint aborts; callers should retry.
	ErrConcurrencyConflict = errors.New("purchasing: concurrency conflict")
)
