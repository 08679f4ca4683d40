package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNotifications carries fire-and-forget purchase notifications.
	QueueNotifications = "notifications"

	// TaskTypePurchaseEvent fans a purchasing lifecycle event out to the
	// configured delivery channels.
	TaskTypePurchaseEvent = "purchasing:event"
	// TaskTypeAgingDigest builds the outstanding-invoice digest for a company.
	TaskTypeAgingDigest = "purchasing:aging_digest"
)

// PurchaseEventPayload wraps a domain event for queue transport. Payload keeps
// the original event JSON so the worker does not depend on every event shape.
type PurchaseEventPayload struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewPurchaseEventTask constructs an Asynq task for a purchasing event.
func NewPurchaseEventTask(payload PurchaseEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePurchaseEvent, data, asynq.Queue(QueueNotifications), asynq.MaxRetry(3)), nil
}

// AgingDigestPayload selects the company whose digest should be produced.
type AgingDigestPayload struct {
	CompanyID int64  `json:"company_id"`
	Recipient string `json:"recipient"`
}

// NewAgingDigestTask constructs an Asynq task for the aging digest.
func NewAgingDigestTask(payload AgingDigestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAgingDigest, data, asynq.Queue(QueueDefault)), nil
}
