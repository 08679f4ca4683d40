package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quipu-erp/quipu-erp/internal/analytics"
	"github.com/quipu-erp/quipu-erp/internal/purchasing"
)

type recordingSender struct {
	emails    []string
	whatsapps []string
	bodies    []string
	failEmail error
}

func (s *recordingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if s.failEmail != nil {
		return s.failEmail
	}
	s.emails = append(s.emails, subject)
	s.bodies = append(s.bodies, body)
	return nil
}

func (s *recordingSender) SendWhatsApp(ctx context.Context, phone, message string) error {
	s.whatsapps = append(s.whatsapps, message)
	return nil
}

type stubAging struct {
	bucket purchasing.AgingBucket
	err    error
}

func (s stubAging) OutstandingAging(ctx context.Context, companyID int64, asOf time.Time) (purchasing.AgingBucket, error) {
	return s.bucket, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, sender *recordingSender, aging AgingSource) (*Processor, *analytics.Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := analytics.NewCache(client, time.Minute)
	proc := NewProcessor(ProcessorConfig{
		Logger: testLogger(),
		Cache:  cache,
		Sender: sender,
		Aging:  aging,
	})
	return proc, cache
}

func purchaseEventTask(t *testing.T, eventType string) *asynq.Task {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"order_id": 1, "number": "OC-2608-0001"})
	require.NoError(t, err)
	task, err := NewPurchaseEventTask(PurchaseEventPayload{
		Type:       eventType,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return task
}

func TestHandlePurchaseEventDeliversAndBumpsCache(t *testing.T) {
	sender := &recordingSender{}
	proc, cache := newTestProcessor(t, sender, nil)
	ctx := context.Background()

	before, err := cache.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, proc.HandlePurchaseEvent(ctx, purchaseEventTask(t, purchasing.EventOrderConfirmed)))

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	require.Len(t, sender.emails, 1)
	require.Contains(t, sender.emails[0], purchasing.EventOrderConfirmed)
	require.Contains(t, sender.bodies[0], "OC-2608-0001")
	require.Len(t, sender.whatsapps, 1)
}

func TestHandlePurchaseEventSkipsRetryOnBadPayload(t *testing.T) {
	sender := &recordingSender{}
	proc, _ := newTestProcessor(t, sender, nil)

	task := asynq.NewTask(TaskTypePurchaseEvent, []byte("{not json"))
	err := proc.HandlePurchaseEvent(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, sender.emails)
}

func TestHandlePurchaseEventReturnsDeliveryError(t *testing.T) {
	sender := &recordingSender{failEmail: errors.New("smtp down")}
	proc, _ := newTestProcessor(t, sender, nil)

	err := proc.HandlePurchaseEvent(context.Background(), purchaseEventTask(t, purchasing.EventOrderReceived))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleAgingDigest(t *testing.T) {
	sender := &recordingSender{}
	bucket := purchasing.AgingBucket{
		Current:  decimal.RequireFromString("100.00"),
		Bucket30: decimal.RequireFromString("50.50"),
		Bucket60: decimal.Zero,
		Bucket90: decimal.Zero,
		Older:    decimal.RequireFromString("9.99"),
	}
	proc, _ := newTestProcessor(t, sender, stubAging{bucket: bucket})

	task, err := NewAgingDigestTask(AgingDigestPayload{CompanyID: 1, Recipient: "tesoreria@acme.pe"})
	require.NoError(t, err)
	require.NoError(t, proc.HandleAgingDigest(context.Background(), task))

	require.Len(t, sender.bodies, 1)
	require.Contains(t, sender.bodies[0], "S/ 100.00")
	require.Contains(t, sender.bodies[0], "S/ 50.50")
	require.Contains(t, sender.bodies[0], "S/ 9.99")
}

func TestHandleAgingDigestPropagatesSourceError(t *testing.T) {
	sender := &recordingSender{}
	proc, _ := newTestProcessor(t, sender, stubAging{err: errors.New("db gone")})

	task, err := NewAgingDigestTask(AgingDigestPayload{CompanyID: 1})
	require.NoError(t, err)
	err = proc.HandleAgingDigest(context.Background(), task)
	require.Error(t, err)
	require.Empty(t, sender.emails)
}
