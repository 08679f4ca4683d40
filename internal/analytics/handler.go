package analytics

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

// Handler serves the spend KPI endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	csvPool sync.Pool
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	h := &Handler{logger: logger, service: service, now: time.Now}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kpis", h.KPIs)
	r.Get("/kpis/export", h.ExportCSV)
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (KPIFilter, bool) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return KPIFilter{}, false
	}
	q := r.URL.Query()
	from, to, err := ParseRange(q.Get("from"), q.Get("to"), h.now().UTC())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return KPIFilter{}, false
	}
	topN, _ := strconv.Atoi(q.Get("top"))
	return KPIFilter{CompanyID: id.CompanyID, From: from, To: to, TopN: topN}, true
}

func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetKPIs(r.Context(), filter)
	if err != nil {
		h.logger.Error("kpi aggregation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetKPIs(r.Context(), filter)
	if err != nil {
		h.logger.Error("kpi aggregation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.csvPool.Put(buf)

	if err := WriteKPICSV(buf, report); err != nil {
		h.logger.Error("kpi export failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="purchasing_kpis.csv"`)
	_, _ = w.Write(buf.Bytes())
}
