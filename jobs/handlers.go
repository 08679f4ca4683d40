package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quipu-erp/quipu-erp/internal/analytics"
	jobmetrics "github.com/quipu-erp/quipu-erp/internal/jobs"
	"github.com/quipu-erp/quipu-erp/internal/purchasing"
)

// Sender delivers notifications over an external channel. Implementations are
// best-effort; a delivery error fails the task and Asynq retries it.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendWhatsApp(ctx context.Context, phone, message string) error
}

// LogSender writes deliveries to the log. It stands in until the SMTP and
// WhatsApp gateways are provisioned.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.Logger.Info("email delivered",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("bytes", len(body)),
	)
	return nil
}

func (s LogSender) SendWhatsApp(ctx context.Context, phone, message string) error {
	s.Logger.Info("whatsapp delivered",
		slog.String("phone", phone),
		slog.Int("bytes", len(message)),
	)
	return nil
}

// AgingSource produces the outstanding-invoice buckets for a company.
type AgingSource interface {
	OutstandingAging(ctx context.Context, companyID int64, asOf time.Time) (purchasing.AgingBucket, error)
}

// ProcessorConfig collects the dependencies of the task processor.
type ProcessorConfig struct {
	Logger  *slog.Logger
	Cache   *analytics.Cache
	Sender  Sender
	Aging   AgingSource
	Metrics *jobmetrics.Metrics
}

// Processor owns the Asynq task handlers.
type Processor struct {
	logger  *slog.Logger
	cache   *analytics.Cache
	sender  Sender
	aging   AgingSource
	metrics *jobmetrics.Metrics
}

// NewProcessor constructs a Processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	sender := cfg.Sender
	if sender == nil {
		sender = LogSender{Logger: cfg.Logger}
	}
	return &Processor{
		logger:  cfg.Logger,
		cache:   cfg.Cache,
		sender:  sender,
		aging:   cfg.Aging,
		metrics: cfg.Metrics,
	}
}

// HandlePurchaseEvent invalidates the analytics cache and fans the event out
// to the delivery channels.
func (p *Processor) HandlePurchaseEvent(ctx context.Context, t *asynq.Task) error {
	tracker := p.metrics.Track("purchase_event")
	var payload PurchaseEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if payload.Type == "" {
		_ = tracker.End(fmt.Errorf("jobs: event without type"))
		return asynq.SkipRetry
	}

	// Every purchasing event moves a KPI, so one version bump covers all of
	// them. A bump failure is not worth a retry storm; the TTL catches up.
	if err := p.cache.Bump(ctx); err != nil {
		p.logger.Warn("analytics cache bump failed", slog.Any("error", err))
	}

	subject, body := describeEvent(payload)
	if err := p.sender.SendEmail(ctx, "compras@quipu.pe", subject, body); err != nil {
		p.metrics.CountDelivery("email", "failure")
		return tracker.End(fmt.Errorf("jobs: email delivery: %w", err))
	}
	p.metrics.CountDelivery("email", "success")

	if err := p.sender.SendWhatsApp(ctx, "+51999999999", subject); err != nil {
		p.metrics.CountDelivery("whatsapp", "failure")
		return tracker.End(fmt.Errorf("jobs: whatsapp delivery: %w", err))
	}
	p.metrics.CountDelivery("whatsapp", "success")

	return tracker.End(nil)
}

// HandleAgingDigest composes and sends the outstanding-invoice digest.
func (p *Processor) HandleAgingDigest(ctx context.Context, t *asynq.Task) error {
	tracker := p.metrics.Track("aging_digest")
	var payload AgingDigestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	if p.aging == nil {
		_ = tracker.End(fmt.Errorf("jobs: aging source not configured"))
		return asynq.SkipRetry
	}
	bucket, err := p.aging.OutstandingAging(ctx, payload.CompanyID, time.Now().UTC())
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: aging digest company %d: %w", payload.CompanyID, err))
	}

	recipient := payload.Recipient
	if recipient == "" {
		recipient = "finanzas@quipu.pe"
	}
	body := formatAgingDigest(bucket)
	if err := p.sender.SendEmail(ctx, recipient, "Cuentas por pagar — resumen de antigüedad", body); err != nil {
		p.metrics.CountDelivery("email", "failure")
		return tracker.End(fmt.Errorf("jobs: digest delivery: %w", err))
	}
	p.metrics.CountDelivery("email", "success")
	return tracker.End(nil)
}

func describeEvent(payload PurchaseEventPayload) (subject, body string) {
	subject = "Compras: " + payload.Type
	body = fmt.Sprintf("Evento %s registrado el %s.\n\n%s\n",
		payload.Type,
		payload.OccurredAt.Format(time.RFC3339),
		string(payload.Payload),
	)
	return subject, body
}

func formatAgingDigest(bucket purchasing.AgingBucket) string {
	var b strings.Builder
	b.WriteString("Resumen de facturas pendientes de pago:\n\n")
	fmt.Fprintf(&b, "  Vigentes:       S/ %s\n", bucket.Current.StringFixed(2))
	fmt.Fprintf(&b, "  1-30 días:      S/ %s\n", bucket.Bucket30.StringFixed(2))
	fmt.Fprintf(&b, "  31-60 días:     S/ %s\n", bucket.Bucket60.StringFixed(2))
	fmt.Fprintf(&b, "  61-90 días:     S/ %s\n", bucket.Bucket90.StringFixed(2))
	fmt.Fprintf(&b, "  Más de 90 días: S/ %s\n", bucket.Older.StringFixed(2))
	return b.String()
}
