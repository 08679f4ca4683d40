package purchasing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T) (*Converter, *Service, *memoryRepo) {
	t.Helper()
	svc, repo, notifier := newTestService(t, DefaultConfig())
	conv := NewConverter(repo, svc, notifier, testLogger())
	return conv, svc, repo
}

func seedQuotation(t *testing.T, repo *memoryRepo, id int64, status QuotationStatus) Quotation {
	t.Helper()
	q := Quotation{
		ID:         id,
		CompanyID:  1,
		SupplierID: 10,
		Number:     fmt.Sprintf("COT-2026-%04d", id),
		Status:     status,
		Subtotal:   money(t, "340.00"),
		Discount:   money(t, "10.00"),
		Tax:        money(t, "59.40"),
		Total:      money(t, "389.40"),
		Lines: []QuotationLine{
			{ID: id*10 + 1, QuotationID: id, ProductID: 100, Quantity: 3, UnitPrice: money(t, "50.00"), Subtotal: money(t, "150.00")},
			{ID: id*10 + 2, QuotationID: id, ProductID: 101, Quantity: 1, UnitPrice: money(t, "200.00"), Discount: money(t, "10.00"), Subtotal: money(t, "190.00")},
		},
	}
	repo.quotations[id] = q
	return q
}

func TestConvertQuotationToOrder(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)

	result, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{
		QuotationID: 1,
		CompanyID:   1,
		UserID:      7,
	})
	require.NoError(t, err)

	order := result.Order
	require.Equal(t, OrderStatusPending, order.Status)
	require.Equal(t, fmt.Sprintf("OC-%s-0001", time.Now().UTC().Format("0601")), order.Number)
	// Monetary fields come over verbatim, no recalculation.
	requireMoney(t, "340.00", order.Subtotal)
	requireMoney(t, "10.00", order.Discount)
	requireMoney(t, "59.40", order.Tax)
	requireMoney(t, "389.40", order.Total)
	require.Len(t, order.Lines, 2)
	requireMoney(t, "190.00", order.Lines[1].Subtotal)

	require.Equal(t, QuotationStatusConverted, repo.quotations[1].Status)
}

func TestConvertAutoApprove(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)

	result, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{
		QuotationID: 1,
		CompanyID:   1,
		UserID:      7,
		AutoApprove: true,
	})
	require.NoError(t, err)
	require.Equal(t, OrderStatusConfirmed, result.Order.Status)
}

func TestConvertNumbersAreSequential(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)
	seedQuotation(t, repo, 2, QuotationStatusPending)

	first, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 1, CompanyID: 1, UserID: 7})
	require.NoError(t, err)
	second, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 2, CompanyID: 1, UserID: 7})
	require.NoError(t, err)

	period := time.Now().UTC().Format("0601")
	require.Equal(t, fmt.Sprintf("OC-%s-0001", period), first.Order.Number)
	require.Equal(t, fmt.Sprintf("OC-%s-0002", period), second.Order.Number)
}

func TestConvertConcurrentAllocationsNeverShareNumbers(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	const conversions = 8
	for i := int64(1); i <= conversions; i++ {
		seedQuotation(t, repo, i, QuotationStatusPending)
	}

	numbers := make([]string, conversions)
	errs := make([]error, conversions)
	var wg sync.WaitGroup
	for i := int64(0); i < conversions; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			result, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{
				QuotationID: i + 1,
				CompanyID:   1,
				UserID:      7,
			})
			numbers[i], errs[i] = result.Order.Number, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, conversions)
	for i, err := range errs {
		require.NoError(t, err)
		require.False(t, seen[numbers[i]], "number %s allocated twice", numbers[i])
		seen[numbers[i]] = true
	}
	require.Len(t, seen, conversions)
}

func TestConvertSequenceRestartsEachMonth(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)
	seedQuotation(t, repo, 2, QuotationStatusPending)
	seedQuotation(t, repo, 3, QuotationStatusPending)

	january := time.Date(2026, time.January, 31, 15, 0, 0, 0, time.UTC)
	conv.now = func() time.Time { return january }
	first, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 1, CompanyID: 1, UserID: 7})
	require.NoError(t, err)
	second, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 2, CompanyID: 1, UserID: 7})
	require.NoError(t, err)
	require.Equal(t, "OC-2601-0001", first.Order.Number)
	require.Equal(t, "OC-2601-0002", second.Order.Number)

	// A fresh month starts the sequence over at 0001.
	conv.now = func() time.Time { return january.AddDate(0, 0, 1) }
	third, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 3, CompanyID: 1, UserID: 7})
	require.NoError(t, err)
	require.Equal(t, "OC-2602-0001", third.Order.Number)
}

func TestConvertRejectsConsumedQuotation(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusConverted)
	seedQuotation(t, repo, 2, QuotationStatusRejected)

	_, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 1, CompanyID: 1, UserID: 7})
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 2, CompanyID: 1, UserID: 7})
	require.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestConvertRejectsEmptyQuotation(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	q := seedQuotation(t, repo, 1, QuotationStatusPending)
	q.Lines = nil
	repo.quotations[1] = q

	_, err := conv.ConvertQuotationToOrder(context.Background(), ConvertInput{QuotationID: 1, CompanyID: 1, UserID: 7})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunFullCycle(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)

	result, err := conv.RunFullCycle(context.Background(), FullCycleInput{
		QuotationID: 1,
		CompanyID:   1,
		UserID:      7,
		Receive:     true,
	})
	require.NoError(t, err)
	require.True(t, result.Received)
	require.Empty(t, result.ReceiveError)
	require.Equal(t, OrderStatusReceived, result.Order.Status)
	require.EqualValues(t, 3, repo.stock[100])
}

func TestRunFullCycleWithoutReception(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)

	result, err := conv.RunFullCycle(context.Background(), FullCycleInput{
		QuotationID: 1,
		CompanyID:   1,
		UserID:      7,
	})
	require.NoError(t, err)
	require.False(t, result.Received)
	require.Equal(t, OrderStatusConfirmed, result.Order.Status)
}

func TestRunFullCycleSurvivesReceptionFailure(t *testing.T) {
	conv, _, repo := newTestConverter(t)
	seedQuotation(t, repo, 1, QuotationStatusPending)
	repo.failStockFor = 100

	result, err := conv.RunFullCycle(context.Background(), FullCycleInput{
		QuotationID: 1,
		CompanyID:   1,
		UserID:      7,
		Receive:     true,
	})
	// The chain is not atomic across steps: conversion stands, the failure
	// is reported alongside the confirmed order.
	require.NoError(t, err)
	require.False(t, result.Received)
	require.NotEmpty(t, result.ReceiveError)
	require.Equal(t, OrderStatusConfirmed, repo.orders[result.Order.ID].Status)
	require.Equal(t, QuotationStatusConverted, repo.quotations[1].Status)
	require.EqualValues(t, 0, repo.stock[100])
}
