package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

// Handler exposes the purchasing operations over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	converter *Converter
	repo      *Repository
	validate  *validator.Validate
}

// NewHandler constructs the purchasing handler.
func NewHandler(logger *slog.Logger, service *Service, converter *Converter, repo *Repository) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		converter: converter,
		repo:      repo,
		validate:  validator.New(),
	}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/confirm", h.Confirm)
		r.Post("/{id}/start", h.Start)
		r.Post("/{id}/receive", h.Receive)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/invoices", h.AddInvoice)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/{id}/payments", h.RegisterPayment)
		r.Get("/aging", h.Aging)
	})
	r.Route("/quotations", func(r chi.Router) {
		r.Post("/{id}/convert", h.Convert)
		r.Post("/{id}/full-cycle", h.FullCycle)
	})
}

// respondErr maps domain error kinds onto problem-details responses.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, ErrBusinessRule):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violation", err.Error())
	case errors.Is(err, ErrInvalidStateTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid State Transition", err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "Concurrency Conflict", err.Error())
	case errors.Is(err, ErrCalculationInconsistency):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Calculation Inconsistency", err.Error())
	default:
		ref := uuid.NewString()
		h.logger.Error("purchasing request failed", slog.String("ref", ref), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "reference "+ref)
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (shared.Identity, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return shared.Identity{}, false
	}
	return id, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	input := CreateOrderInput{
		CompanyID:    id.CompanyID,
		SupplierID:   req.SupplierID,
		UserID:       id.UserID,
		Number:       req.Number,
		DeliveryDate: req.DeliveryDate,
		Notes:        req.Notes,
		Lines:        toLineInputs(req.Lines),
	}
	if req.EmissionDate != nil {
		input.EmissionDate = *req.EmissionDate
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid order id")
		return
	}
	order, err := h.repo.GetOrder(r.Context(), id.CompanyID, orderID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	pageReq := shared.ParsePageRequest(q)
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     q.Get("status"),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
	}
	items, total, err := h.repo.ListOrders(r.Context(), id.CompanyID, pageReq.PerPage, pageReq.Offset(), filters)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders":     items,
		"pagination": shared.NewPagination(pageReq, total),
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid order id")
		return
	}
	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	input := UpdateOrderInput{
		OrderID:      orderID,
		CompanyID:    id.CompanyID,
		UserID:       id.UserID,
		Number:       req.Number,
		DeliveryDate: req.DeliveryDate,
		Notes:        req.Notes,
	}
	if req.Lines != nil {
		lines := toLineInputs(*req.Lines)
		input.Lines = &lines
	}
	order, err := h.service.UpdateOrder(r.Context(), input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) statusAction(fn func(r *http.Request, companyID, orderID, userID int64) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.identity(w, r)
		if !ok {
			return
		}
		orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid order id")
			return
		}
		order, err := fn(r, id.CompanyID, orderID, id.UserID)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toOrderResponse(order))
	}
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.statusAction(func(r *http.Request, companyID, orderID, userID int64) (PurchaseOrder, error) {
		return h.service.ConfirmOrder(r.Context(), companyID, orderID, userID)
	})(w, r)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.statusAction(func(r *http.Request, companyID, orderID, userID int64) (PurchaseOrder, error) {
		return h.service.StartOrder(r.Context(), companyID, orderID, userID)
	})(w, r)
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	h.statusAction(func(r *http.Request, companyID, orderID, userID int64) (PurchaseOrder, error) {
		return h.service.ReceiveOrder(r.Context(), companyID, orderID, userID)
	})(w, r)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.statusAction(func(r *http.Request, companyID, orderID, userID int64) (PurchaseOrder, error) {
		return h.service.CancelOrder(r.Context(), companyID, orderID, userID)
	})(w, r)
}

func (h *Handler) AddInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid order id")
		return
	}
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	inv, err := h.service.AddInvoice(r.Context(), InvoiceInput{
		OrderID:   orderID,
		CompanyID: id.CompanyID,
		Number:    req.Number,
		IssuedAt:  req.IssuedAt,
		DueAt:     req.DueAt,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid invoice id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	payment, err := h.service.RegisterPayment(r.Context(), id.CompanyID, Payment{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    req.Method,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     payment.ID,
		"amount": payment.Amount.StringFixed(2),
		"method": payment.Method,
	})
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	quotationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid quotation id")
		return
	}
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	result, err := h.converter.ConvertQuotationToOrder(r.Context(), ConvertInput{
		QuotationID:  quotationID,
		CompanyID:    id.CompanyID,
		UserID:       id.UserID,
		AutoApprove:  req.AutoApprove,
		DeliveryDate: req.DeliveryDate,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"quotation_id": result.QuotationID,
		"order":        toOrderResponse(result.Order),
	})
}

func (h *Handler) FullCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	quotationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid quotation id")
		return
	}
	var req fullCycleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	result, err := h.converter.RunFullCycle(r.Context(), FullCycleInput{
		QuotationID: quotationID,
		CompanyID:   id.CompanyID,
		UserID:      id.UserID,
		Receive:     req.Receive,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	resp := map[string]any{
		"order":    toOrderResponse(result.Order),
		"received": result.Received,
	}
	if result.ReceiveError != "" {
		resp["receive_error"] = result.ReceiveError
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	bucket, err := h.service.OutstandingAging(r.Context(), id.CompanyID, asOf)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"current":   bucket.Current.StringFixed(2),
		"bucket_30": bucket.Bucket30.StringFixed(2),
		"bucket_60": bucket.Bucket60.StringFixed(2),
		"bucket_90": bucket.Bucket90.StringFixed(2),
		"older":     bucket.Older.StringFixed(2),
	})
}
