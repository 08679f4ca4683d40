package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/low", h.Low)
	r.Get("/{productID}", h.Show)
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
	pageReq := shared.ParsePageRequest(r.URL.Query())
	levels, total, err := h.service.List(r.Context(), id.CompanyID, r.URL.Query().Get("search"), pageReq.PerPage, pageReq.Offset())
	if err != nil {
		h.logger.Error("list stock failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"levels":     levels,
		"pagination": shared.NewPagination(pageReq, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "invalid product id")
		return
	}
	level, err := h.service.Get(r.Context(), id.CompanyID, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get stock failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func (h *Handler) Low(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	threshold, _ := strconv.ParseInt(r.URL.Query().Get("threshold"), 10, 64)
	levels, err := h.service.Below(r.Context(), id.CompanyID, threshold)
	if err != nil {
		h.logger.Error("low stock report failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": levels})
}
