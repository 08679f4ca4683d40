package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quipu-erp/quipu-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	OrderLookup
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, companyID, id int64) (PurchaseOrder, error)
	GetQuotation(ctx context.Context, companyID, id int64) (Quotation, error)
	GetInvoice(ctx context.Context, companyID, id int64) (PurchaseInvoice, error)
	ListOutstandingInvoices(ctx context.Context, companyID int64) ([]PurchaseInvoice, error)
}

// AuditPort records mutation trails, reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the purchase order state machine and orchestrates
// validation, calculation and atomic persistence.
type Service struct {
	repo      RepositoryPort
	calc      *Calculator
	validator *Validator
	notifier  NotifierPort
	audit     AuditPort
	logger    *slog.Logger
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, cfg Config, notifier NotifierPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		calc:      NewCalculator(cfg),
		validator: NewValidator(cfg),
		notifier:  notifier,
		audit:     audit,
		logger:    logger,
	}
}

// CreateOrderInput describes the order creation payload.
type CreateOrderInput struct {
	CompanyID    int64
	SupplierID   int64
	UserID       int64
	Number       string
	EmissionDate time.Time
	DeliveryDate *time.Time
	Notes        string
	Lines        []LineInput
}

// UpdateOrderInput carries the header patch and optional line replacement.
type UpdateOrderInput struct {
	OrderID      int64
	CompanyID    int64
	UserID       int64
	Number       *string
	DeliveryDate *time.Time
	Notes        *string
	Lines        *[]LineInput
}

// InvoiceInput describes invoice creation against an order.
type InvoiceInput struct {
	OrderID   int64
	CompanyID int64
	Number    string
	IssuedAt  time.Time
	DueAt     time.Time
}

// CreateOrder validates, calculates and persists a new order in PENDING.
// Uniqueness and the monthly quota are re-checked inside the transaction so
// two concurrent creates cannot both pass the pre-check.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.EmissionDate.IsZero() {
		input.EmissionDate = time.Now().UTC()
	}
	if err := s.validator.ValidateOrderNumber(input.Number); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.validator.ValidateDates(input.EmissionDate, input.DeliveryDate); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.validator.ValidateLines(input.Lines); err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.validator.CheckCompany(ctx, s.repo, input.CompanyID); err != nil {
		return PurchaseOrder{}, err
	}
	if _, err := s.validator.CheckSupplier(ctx, s.repo, input.CompanyID, input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}

	result, err := s.calc.Calculate(input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	// Ceiling uses the computed total, never a caller-supplied one.
	if err := s.validator.CheckCeiling(result.Total); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.calc.Verify(result.Subtotal, result.Discount, result.Tax, result.Total); err != nil {
		return PurchaseOrder{}, err
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.validator.CheckNumberUnique(ctx, tx, input.CompanyID, input.Number, 0); err != nil {
			return err
		}
		if err := s.validator.CheckMonthlyQuota(ctx, tx, input.CompanyID, input.EmissionDate); err != nil {
			return err
		}
		if err := s.checkProductsExist(ctx, tx, input.CompanyID, result.Lines); err != nil {
			return err
		}
		order := PurchaseOrder{
			CompanyID:    input.CompanyID,
			SupplierID:   input.SupplierID,
			Number:       input.Number,
			Status:       OrderStatusPending,
			EmissionDate: input.EmissionDate,
			DeliveryDate: input.DeliveryDate,
			Subtotal:     result.Subtotal,
			Discount:     result.Discount,
			Tax:          result.Tax,
			Total:        result.Total,
			Notes:        input.Notes,
			CreatedBy:    input.UserID,
		}
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		orderID = id
		return tx.ReplaceLines(ctx, id, result.Lines)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	created, err := s.repo.GetOrder(ctx, input.CompanyID, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.UserID, "ORDER_CREATE", orderID, map[string]any{"number": created.Number, "total": created.Total.String()})
	s.notify(ctx, EventOrderCreated, orderEvent(created))
	return created, nil
}

// UpdateOrder applies a header patch and, when lines are supplied, replaces
// the whole line set and recomputes totals. Forbidden once the order is
// RECEIVED or CANCELLED.
func (s *Service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (PurchaseOrder, error) {
	existing, err := s.repo.GetOrder(ctx, input.CompanyID, input.OrderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !OpModify.Allowed(existing.Status) {
		return PurchaseOrder{}, transitionError(OpModify, existing.Status)
	}

	updated := existing
	if input.Number != nil && *input.Number != existing.Number {
		if err := s.validator.ValidateOrderNumber(*input.Number); err != nil {
			return PurchaseOrder{}, err
		}
		updated.Number = *input.Number
	}
	if input.DeliveryDate != nil {
		if err := s.validator.ValidateDates(existing.EmissionDate, input.DeliveryDate); err != nil {
			return PurchaseOrder{}, err
		}
		updated.DeliveryDate = input.DeliveryDate
	}
	if input.Notes != nil {
		updated.Notes = *input.Notes
	}

	var result CalculationResult
	linesChanged := input.Lines != nil && len(*input.Lines) > 0
	if linesChanged {
		if err := s.validator.ValidateLines(*input.Lines); err != nil {
			return PurchaseOrder{}, err
		}
		result, err = s.calc.Calculate(*input.Lines)
		if err != nil {
			return PurchaseOrder{}, err
		}
		if err := s.validator.CheckCeiling(result.Total); err != nil {
			return PurchaseOrder{}, err
		}
		updated.Subtotal = result.Subtotal
		updated.Discount = result.Discount
		updated.Tax = result.Tax
		updated.Total = result.Total
	}
	// Guard against silent arithmetic drift before anything is written.
	if err := s.calc.Verify(updated.Subtotal, updated.Discount, updated.Tax, updated.Total); err != nil {
		return PurchaseOrder{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if updated.Number != existing.Number {
			if err := s.validator.CheckNumberUnique(ctx, tx, input.CompanyID, updated.Number, existing.ID); err != nil {
				return err
			}
		}
		if linesChanged {
			if err := s.checkProductsExist(ctx, tx, input.CompanyID, result.Lines); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderHeader(ctx, updated); err != nil {
			return err
		}
		if linesChanged {
			return tx.ReplaceLines(ctx, existing.ID, result.Lines)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	reloaded, err := s.repo.GetOrder(ctx, input.CompanyID, input.OrderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.UserID, "ORDER_UPDATE", reloaded.ID, map[string]any{"number": reloaded.Number})
	s.notify(ctx, EventOrderUpdated, orderEvent(reloaded))
	return reloaded, nil
}

// ConfirmOrder moves a PENDING order to CONFIRMED.
func (s *Service) ConfirmOrder(ctx context.Context, companyID, orderID, userID int64) (PurchaseOrder, error) {
	return s.transition(ctx, companyID, orderID, userID, OpConfirm, OrderStatusConfirmed, EventOrderConfirmed)
}

// StartOrder moves a CONFIRMED order to IN_PROGRESS.
func (s *Service) StartOrder(ctx context.Context, companyID, orderID, userID int64) (PurchaseOrder, error) {
	return s.transition(ctx, companyID, orderID, userID, OpStart, OrderStatusInProgress, EventOrderInProgress)
}

// CancelOrder moves any non-terminal order to CANCELLED. No stock effect.
func (s *Service) CancelOrder(ctx context.Context, companyID, orderID, userID int64) (PurchaseOrder, error) {
	return s.transition(ctx, companyID, orderID, userID, OpCancel, OrderStatusCancelled, EventOrderCancelled)
}

func (s *Service) transition(ctx context.Context, companyID, orderID, userID int64, op Operation, to OrderStatus, event string) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, companyID, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !op.Allowed(order.Status) {
		return PurchaseOrder{}, transitionError(op, order.Status)
	}
	// The guarded update re-checks the source status inside the transaction,
	// so a transition raced by another writer fails instead of overwriting.
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrderStatus(ctx, orderID, to, allowedFrom[op])
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Status = to
	s.recordAudit(ctx, userID, "ORDER_"+string(op), orderID, map[string]any{"number": order.Number, "status": string(to)})
	s.notify(ctx, event, orderEvent(order))
	return order, nil
}

// ReceiveOrder marks the order RECEIVED and applies increment-or-initialise
// stock updates for every non-service line, all inside one transaction. A
// failing line rolls back the status flip and every other line's effect.
func (s *Service) ReceiveOrder(ctx context.Context, companyID, orderID, userID int64) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, companyID, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !OpReceive.Allowed(order.Status) {
		return PurchaseOrder{}, transitionError(OpReceive, order.Status)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateOrderStatus(ctx, orderID, OrderStatusReceived, allowedFrom[OpReceive]); err != nil {
			return err
		}
		ids := make([]int64, 0, len(order.Lines))
		for _, line := range order.Lines {
			ids = append(ids, line.ProductID)
		}
		products, err := tx.GetProducts(ctx, companyID, ids)
		if err != nil {
			return err
		}
		services := make(map[int64]bool, len(products))
		for _, p := range products {
			services[p.ID] = p.IsService
		}
		for _, line := range order.Lines {
			if services[line.ProductID] {
				continue
			}
			if err := tx.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("stock update for product %d: %w", line.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Status = OrderStatusReceived
	s.recordAudit(ctx, userID, "ORDER_RECEIVE", orderID, map[string]any{"number": order.Number})
	s.notify(ctx, EventOrderReceived, orderEvent(order))
	return order, nil
}

// AddInvoice creates a purchase invoice against an invoiceable order,
// copying the order's monetary fields. The order status is unchanged.
func (s *Service) AddInvoice(ctx context.Context, input InvoiceInput) (PurchaseInvoice, error) {
	order, err := s.repo.GetOrder(ctx, input.CompanyID, input.OrderID)
	if err != nil {
		return PurchaseInvoice{}, err
	}
	if !OpInvoice.Allowed(order.Status) {
		return PurchaseInvoice{}, transitionError(OpInvoice, order.Status)
	}
	if input.Number == "" {
		return PurchaseInvoice{}, fmt.Errorf("%w: invoice number required", ErrInvalidInput)
	}
	inv := PurchaseInvoice{
		OrderID:   order.ID,
		CompanyID: order.CompanyID,
		Number:    input.Number,
		Subtotal:  order.Subtotal.Sub(order.Discount),
		Tax:       order.Tax,
		Total:     order.Total,
		Status:    InvoiceStatusPending,
		IssuedAt:  defaultTime(input.IssuedAt),
		DueAt:     input.DueAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		return nil
	})
	if err != nil {
		return PurchaseInvoice{}, err
	}
	s.recordAudit(ctx, 0, "INVOICE_CREATE", inv.ID, map[string]any{"number": inv.Number, "order": order.Number})
	s.notify(ctx, EventInvoiceAdded, invoiceEvent(inv))
	return inv, nil
}

// RegisterPayment records a payment and marks the invoice PAID once the
// settled sum covers the invoice total.
func (s *Service) RegisterPayment(ctx context.Context, companyID int64, payment Payment) (Payment, error) {
	if !payment.Amount.IsPositive() {
		return Payment{}, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	inv, err := s.repo.GetInvoice(ctx, companyID, payment.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if inv.Status != InvoiceStatusPending {
		return Payment{}, fmt.Errorf("%w: invoice %s is %s", ErrBusinessRule, inv.Number, inv.Status)
	}
	payment.PaidAt = defaultTime(payment.PaidAt)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		settled, err := tx.SumPayments(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}
		if settled.Amount.GreaterThanOrEqual(inv.Total) {
			return tx.UpdateInvoiceStatus(ctx, payment.InvoiceID, InvoiceStatusPaid)
		}
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.notify(ctx, EventPaymentRegistered, invoiceEvent(inv))
	return payment, nil
}

// AgingBucket summarises outstanding invoice totals by days overdue.
type AgingBucket struct {
	Current  decimal.Decimal
	Bucket30 decimal.Decimal
	Bucket60 decimal.Decimal
	Bucket90 decimal.Decimal
	Older    decimal.Decimal
}

// OutstandingAging groups unpaid purchase invoices into due-date buckets.
func (s *Service) OutstandingAging(ctx context.Context, companyID int64, asOf time.Time) (AgingBucket, error) {
	invoices, err := s.repo.ListOutstandingInvoices(ctx, companyID)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	bucket := AgingBucket{
		Current:  decimal.Zero,
		Bucket30: decimal.Zero,
		Bucket60: decimal.Zero,
		Bucket90: decimal.Zero,
		Older:    decimal.Zero,
	}
	for _, inv := range invoices {
		days := int(asOf.Sub(inv.DueAt).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(inv.Total)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(inv.Total)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(inv.Total)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(inv.Total)
		default:
			bucket.Older = bucket.Older.Add(inv.Total)
		}
	}
	return bucket, nil
}

// checkProductsExist requires every referenced product to exist within the
// company scope.
func (s *Service) checkProductsExist(ctx context.Context, tx TxRepository, companyID int64, lines []LineResult) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := tx.GetProducts(ctx, companyID, ids)
	if err != nil {
		return err
	}
	found := make(map[int64]struct{}, len(products))
	for _, p := range products {
		found[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchasing", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

// notify delivers a best-effort notification. Failures never affect the
// outcome of the committed operation.
func (s *Service) notify(ctx context.Context, eventType string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, eventType, payload); err != nil && s.logger != nil {
		s.logger.Warn("notification failed", slog.String("event", eventType), slog.Any("error", err))
	}
}

func transitionError(op Operation, from OrderStatus) error {
	return fmt.Errorf("%w: %s not allowed from %s", ErrInvalidStateTransition, op, from)
}

func orderEvent(o PurchaseOrder) OrderEvent {
	return OrderEvent{
		OrderID:    o.ID,
		CompanyID:  o.CompanyID,
		SupplierID: o.SupplierID,
		Number:     o.Number,
		Status:     string(o.Status),
		Total:      o.Total.String(),
		OccurredAt: time.Now().UTC(),
	}
}

func invoiceEvent(inv PurchaseInvoice) InvoiceEvent {
	return InvoiceEvent{
		InvoiceID:  inv.ID,
		OrderID:    inv.OrderID,
		CompanyID:  inv.CompanyID,
		Number:     inv.Number,
		Status:     string(inv.Status),
		Total:      inv.Total.String(),
		OccurredAt: time.Now().UTC(),
	}
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}
