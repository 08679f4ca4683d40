package suppliers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Post("/{id}/activate", h.Activate)
}

type supplierRequest struct {
	TaxID   string `json:"tax_id" validate:"required,len=11,numeric"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, ErrInUse):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violation", err.Error())
	default:
		h.logger.Error("supplier request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	pageReq := shared.ParsePageRequest(q)
	filters := ListFilters{
		Search:     q.Get("search"),
		ActiveOnly: q.Get("active") == "true",
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
		Limit:      pageReq.PerPage,
		Offset:     pageReq.Offset(),
	}
	items, total, err := h.service.List(r.Context(), id.CompanyID, filters)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"suppliers":  items,
		"pagination": shared.NewPagination(pageReq, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid supplier id")
		return
	}
	supplier, err := h.service.Get(r.Context(), id.CompanyID, supplierID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), Supplier{
		CompanyID: id.CompanyID,
		TaxID:     req.TaxID,
		Name:      req.Name,
		Address:   req.Address,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid supplier id")
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), id.CompanyID, supplierID, Supplier{
		TaxID:   req.TaxID,
		Name:    req.Name,
		Address: req.Address,
		Email:   req.Email,
		Phone:   req.Phone,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid supplier id")
		return
	}
	if err := h.service.Delete(r.Context(), id.CompanyID, supplierID); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid supplier id")
		return
	}
	if active {
		err = h.service.Activate(r.Context(), id.CompanyID, supplierID)
	} else {
		err = h.service.Deactivate(r.Context(), id.CompanyID, supplierID)
	}
	if err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
