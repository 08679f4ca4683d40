package report

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/quipu-erp/quipu-erp/internal/analytics"
	"github.com/quipu-erp/quipu-erp/internal/platform/httpx"
	"github.com/quipu-erp/quipu-erp/internal/shared"
)

var kpiTemplate = template.Must(template.New("kpi").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Indicadores de compras</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; border-bottom: 2px solid #444; padding-bottom: 0.3em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; font-size: 0.9em; }
th { background: #f0f0f0; }
.num { text-align: right; }
</style>
</head>
<body>
<h1>Indicadores de compras</h1>
<p>Periodo: {{.From}} – {{.To}}</p>
<table>
<tr><th>Gasto total</th><td class="num">{{.TotalSpend}}</td></tr>
<tr><th>Órdenes</th><td class="num">{{.OrderCount}}</td></tr>
<tr><th>Ticket promedio</th><td class="num">{{.AvgOrderValue}}</td></tr>
{{if .GrowthPct}}<tr><th>Crecimiento</th><td class="num">{{.GrowthPct}} %</td></tr>{{end}}
<tr><th>Cumplimiento</th><td class="num">{{.FulfillmentPct}} %</td></tr>
<tr><th>Lead time promedio</th><td class="num">{{.AvgLeadTimeDays}} días</td></tr>
</table>
{{if .Suppliers}}
<h1>Principales proveedores</h1>
<table>
<tr><th>Proveedor</th><th class="num">Gasto</th><th class="num">Participación</th></tr>
{{range .Suppliers}}<tr><td>{{.Name}}</td><td class="num">{{.Spend}}</td><td class="num">{{.SharePct}} %</td></tr>
{{end}}</table>
{{end}}
{{if .Categories}}
<h1>Principales categorías</h1>
<table>
<tr><th>Categoría</th><th class="num">Gasto</th><th class="num">Participación</th></tr>
{{range .Categories}}<tr><td>{{.Category}}</td><td class="num">{{.Spend}}</td><td class="num">{{.SharePct}} %</td></tr>
{{end}}</table>
{{end}}
</body>
</html>`))

var pdfPrinter = message.NewPrinter(language.MustParse("es-PE"))

type kpiRow struct {
	Name     string
	Category string
	Spend    string
	SharePct string
}

type kpiView struct {
	From            string
	To              string
	TotalSpend      string
	OrderCount      int64
	AvgOrderValue   string
	GrowthPct       string
	FulfillmentPct  string
	AvgLeadTimeDays string
	Suppliers       []kpiRow
	Categories      []kpiRow
}

func formatCurrency(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	return pdfPrinter.Sprintf("S/ %.2f", f)
}

// BuildKPIHTML renders the KPI report as a printable HTML document.
func BuildKPIHTML(rep analytics.KPIReport) (string, error) {
	view := kpiView{
		From:            rep.From.Format("02/01/2006"),
		To:              rep.To.Format("02/01/2006"),
		TotalSpend:      formatCurrency(rep.TotalSpend),
		OrderCount:      rep.OrderCount,
		AvgOrderValue:   formatCurrency(rep.AvgOrderValue),
		FulfillmentPct:  rep.FulfillmentPct.StringFixed(1),
		AvgLeadTimeDays: rep.AvgLeadTimeDays.StringFixed(1),
	}
	if rep.GrowthPct != nil {
		view.GrowthPct = rep.GrowthPct.StringFixed(1)
	}
	for _, s := range rep.TopSuppliers {
		view.Suppliers = append(view.Suppliers, kpiRow{
			Name:     s.Name,
			Spend:    formatCurrency(s.Spend),
			SharePct: s.SharePct.StringFixed(1),
		})
	}
	for _, c := range rep.TopCategories {
		view.Categories = append(view.Categories, kpiRow{
			Category: c.Category,
			Spend:    formatCurrency(c.Spend),
			SharePct: c.SharePct.StringFixed(1),
		})
	}
	var buf bytes.Buffer
	if err := kpiTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// KPISource feeds the PDF handler with aggregated spend data.
type KPISource interface {
	GetKPIs(ctx context.Context, filter analytics.KPIFilter) (analytics.KPIReport, error)
}

// Handler serves the PDF export of the KPI report.
type Handler struct {
	logger *slog.Logger
	source KPISource
	client *Client
	now    func() time.Time
}

// NewHandler constructs the report handler.
func NewHandler(logger *slog.Logger, source KPISource, client *Client) *Handler {
	return &Handler{logger: logger, source: source, client: client, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kpis.pdf", h.KPIPDF)
}

func (h *Handler) KPIPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IdentityFromContext(r.Context())
	if !ok || id.CompanyID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "caller identity missing")
		return
	}
	q := r.URL.Query()
	from, to, err := analytics.ParseRange(q.Get("from"), q.Get("to"), h.now().UTC())
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	topN, _ := strconv.Atoi(q.Get("top"))

	rep, err := h.source.GetKPIs(r.Context(), analytics.KPIFilter{CompanyID: id.CompanyID, From: from, To: to, TopN: topN})
	if err != nil {
		h.logger.Error("kpi aggregation failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	html, err := BuildKPIHTML(rep)
	if err != nil {
		h.logger.Error("kpi html render failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("pdf render failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", "document renderer unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="indicadores_compras.pdf"`)
	_, _ = w.Write(pdf)
}
