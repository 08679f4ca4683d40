package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Converter turns supplier quotations into purchase orders, reusing the
// lifecycle service for downstream steps.
type Converter struct {
	repo     RepositoryPort
	service  *Service
	notifier NotifierPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewConverter constructs a Converter.
func NewConverter(repo RepositoryPort, service *Service, notifier NotifierPort, logger *slog.Logger) *Converter {
	return &Converter{repo: repo, service: service, notifier: notifier, logger: logger, now: time.Now}
}

// ConvertInput describes a quotation conversion request.
type ConvertInput struct {
	QuotationID  int64
	CompanyID    int64
	UserID       int64
	AutoApprove  bool
	DeliveryDate *time.Time
}

// ConversionResult reports the created order and the consumed quotation.
type ConversionResult struct {
	Order       PurchaseOrder
	QuotationID int64
}

// ConvertQuotationToOrder copies a pending quotation's lines and monetary
// fields verbatim into a new order, allocates the next sequential number for
// the company and month, and consumes the quotation, all in one transaction.
// The quotation is presumed already priced, so the calculation unit is not
// re-run.
func (c *Converter) ConvertQuotationToOrder(ctx context.Context, input ConvertInput) (ConversionResult, error) {
	quotation, err := c.repo.GetQuotation(ctx, input.CompanyID, input.QuotationID)
	if err != nil {
		return ConversionResult{}, err
	}
	if quotation.Status != QuotationStatusPending {
		return ConversionResult{}, fmt.Errorf("%w: quotation %s is %s", ErrInvalidStateTransition, quotation.Number, quotation.Status)
	}
	if len(quotation.Lines) == 0 {
		return ConversionResult{}, fmt.Errorf("%w: quotation %s has no lines", ErrInvalidInput, quotation.Number)
	}

	status := OrderStatusPending
	if input.AutoApprove {
		status = OrderStatusConfirmed
	}
	emission := c.now().UTC()

	var orderID int64
	err = c.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextOrderNumber(ctx, input.CompanyID, emission)
		if err != nil {
			return err
		}
		order := PurchaseOrder{
			CompanyID:    input.CompanyID,
			SupplierID:   quotation.SupplierID,
			Number:       number,
			Status:       status,
			EmissionDate: emission,
			DeliveryDate: input.DeliveryDate,
			Subtotal:     quotation.Subtotal,
			Discount:     quotation.Discount,
			Tax:          quotation.Tax,
			Total:        quotation.Total,
			Notes:        quotation.Notes,
			CreatedBy:    input.UserID,
		}
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		orderID = id
		lines := make([]LineResult, 0, len(quotation.Lines))
		for _, ql := range quotation.Lines {
			lines = append(lines, LineResult{
				ProductID: ql.ProductID,
				Quantity:  ql.Quantity,
				UnitPrice: ql.UnitPrice,
				Discount:  ql.Discount,
				Subtotal:  ql.Subtotal,
			})
		}
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.MarkQuotationConverted(ctx, quotation.ID)
	})
	if err != nil {
		return ConversionResult{}, err
	}

	order, err := c.repo.GetOrder(ctx, input.CompanyID, orderID)
	if err != nil {
		return ConversionResult{}, err
	}
	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, EventQuotationConverted, orderEvent(order)); err != nil && c.logger != nil {
			c.logger.Warn("notification failed", slog.String("event", EventQuotationConverted), slog.Any("error", err))
		}
	}
	return ConversionResult{Order: order, QuotationID: quotation.ID}, nil
}

// FullCycleInput drives the quotation → order → reception chain.
type FullCycleInput struct {
	QuotationID int64
	CompanyID   int64
	UserID      int64
	Receive     bool
}

// FullCycleResult reports how far the chain progressed. The chain is not
// atomic across steps: a reception failure leaves a valid CONFIRMED order,
// which is surfaced here rather than rolled back.
type FullCycleResult struct {
	Order        PurchaseOrder
	Received     bool
	ReceiveError string
}

// RunFullCycle converts the quotation with auto-approval and, when asked,
// immediately receives the resulting order. Each step is independently
// transactional.
func (c *Converter) RunFullCycle(ctx context.Context, input FullCycleInput) (FullCycleResult, error) {
	conv, err := c.ConvertQuotationToOrder(ctx, ConvertInput{
		QuotationID: input.QuotationID,
		CompanyID:   input.CompanyID,
		UserID:      input.UserID,
		AutoApprove: true,
	})
	if err != nil {
		return FullCycleResult{}, err
	}
	result := FullCycleResult{Order: conv.Order}
	if !input.Receive {
		return result, nil
	}
	received, err := c.service.ReceiveOrder(ctx, input.CompanyID, conv.Order.ID, input.UserID)
	if err != nil {
		result.ReceiveError = err.Error()
		if c.logger != nil {
			c.logger.Warn("full cycle reception failed",
				slog.String("order", conv.Order.Number), slog.Any("error", err))
		}
		return result, nil
	}
	result.Order = received
	result.Received = true
	return result, nil
}
