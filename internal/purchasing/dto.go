package purchasing

import (
	"time"

	"github.com/shopspring/decimal"
)

type orderLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Discount  decimal.Decimal `json:"discount"`
}

type createOrderRequest struct {
	SupplierID   int64              `json:"supplier_id" validate:"required,gt=0"`
	Number       string             `json:"number" validate:"required"`
	EmissionDate *time.Time         `json:"emission_date"`
	DeliveryDate *time.Time         `json:"delivery_date"`
	Notes        string             `json:"notes"`
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	Number       *string             `json:"number"`
	DeliveryDate *time.Time          `json:"delivery_date"`
	Notes        *string             `json:"notes"`
	Lines        *[]orderLineRequest `json:"lines" validate:"omitempty,min=1,dive"`
}

type invoiceRequest struct {
	Number   string    `json:"number" validate:"required"`
	IssuedAt time.Time `json:"issued_at"`
	DueAt    time.Time `json:"due_at" validate:"required"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method" validate:"required,oneof=TRANSFER CASH CHECK CARD"`
}

type convertRequest struct {
	AutoApprove  bool       `json:"auto_approve"`
	DeliveryDate *time.Time `json:"delivery_date"`
}

type fullCycleRequest struct {
	Receive bool `json:"receive"`
}

type orderLineResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Discount  string `json:"discount"`
	Subtotal  string `json:"subtotal"`
	Received  bool   `json:"received"`
}

type orderResponse struct {
	ID           int64               `json:"id"`
	Number       string              `json:"number"`
	SupplierID   int64               `json:"supplier_id"`
	Status       string              `json:"status"`
	EmissionDate time.Time           `json:"emission_date"`
	DeliveryDate *time.Time          `json:"delivery_date,omitempty"`
	Subtotal     string              `json:"subtotal"`
	Discount     string              `json:"discount"`
	Tax          string              `json:"tax"`
	Total        string              `json:"total"`
	Notes        string              `json:"notes,omitempty"`
	Lines        []orderLineResponse `json:"lines"`
}

type invoiceResponse struct {
	ID       int64     `json:"id"`
	OrderID  int64     `json:"order_id"`
	Number   string    `json:"number"`
	Subtotal string    `json:"subtotal"`
	Tax      string    `json:"tax"`
	Total    string    `json:"total"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issued_at"`
	DueAt    time.Time `json:"due_at"`
}

func toLineInputs(lines []orderLineRequest) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
		})
	}
	return out
}

func toOrderResponse(o PurchaseOrder) orderResponse {
	resp := orderResponse{
		ID:           o.ID,
		Number:       o.Number,
		SupplierID:   o.SupplierID,
		Status:       string(o.Status),
		EmissionDate: o.EmissionDate,
		DeliveryDate: o.DeliveryDate,
		Subtotal:     o.Subtotal.StringFixed(2),
		Discount:     o.Discount.StringFixed(2),
		Tax:          o.Tax.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		Notes:        o.Notes,
		Lines:        make([]orderLineResponse, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Discount:  l.Discount.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
			Received:  l.Received,
		})
	}
	return resp
}

func toInvoiceResponse(inv PurchaseInvoice) invoiceResponse {
	return invoiceResponse{
		ID:       inv.ID,
		OrderID:  inv.OrderID,
		Number:   inv.Number,
		Subtotal: inv.Subtotal.StringFixed(2),
		Tax:      inv.Tax.StringFixed(2),
		Total:    inv.Total.StringFixed(2),
		Status:   string(inv.Status),
		IssuedAt: inv.IssuedAt,
		DueAt:    inv.DueAt,
	}
}
