package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quipu-erp/quipu-erp/internal/observability"
)

// Notifier enqueues purchasing events for asynchronous delivery. It implements
// the purchasing notifier port; the caller treats enqueue failures as
// log-and-continue, so a Redis outage never blocks a commit.
type Notifier struct {
	client  *asynq.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNotifier constructs a queue-backed notifier.
func NewNotifier(client *asynq.Client, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, metrics: metrics, logger: logger}
}

// Notify serialises the event and enqueues it on the notifications queue.
func (n *Notifier) Notify(ctx context.Context, eventType string, payload any) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("jobs: notifier not configured")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: marshal %s event: %w", eventType, err)
	}
	task, err := NewPurchaseEventTask(PurchaseEventPayload{
		Type:       eventType,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	enqueueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := n.client.EnqueueContext(enqueueCtx, task); err != nil {
		return fmt.Errorf("jobs: enqueue %s event: %w", eventType, err)
	}
	n.metrics.CountEvent(eventType)
	if n.logger != nil {
		n.logger.Debug("event enqueued", slog.String("type", eventType))
	}
	return nil
}
