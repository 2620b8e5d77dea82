package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/engine"
	"budgetwatch/internal/records/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	msgs []*amqp.TransactionEvaluationMessage
	err  error
}

func (p *fakePublisher) PublishEvaluation(_ context.Context, msg *amqp.TransactionEvaluationMessage) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type countingEvaluator struct {
	calls []core.Transaction
	err   error
}

func (e *countingEvaluator) Evaluate(_ context.Context, tx core.Transaction) error {
	e.calls = append(e.calls, tx)
	return e.err
}

type recordingInvalidator struct{ users []string }

func (r *recordingInvalidator) Invalidate(userID string) { r.users = append(r.users, userID) }

func seedCategory(t *testing.T, s *memory.Store) core.Category {
	t.Helper()
	c, err := s.CreateCategory(context.Background(), core.Category{UserID: "u1", Name: "Groceries", Type: core.Expense})
	require.NoError(t, err)
	return c
}

func newTx(c core.Category, amount string) core.Transaction {
	return core.Transaction{
		UserID:      "u1",
		Category:    c,
		Amount:      decimal.RequireFromString(amount),
		Description: "weekly shop",
		Date:        core.NewDate(2025, 3, 3),
	}
}

func TestRecordInlineRunsEvaluator(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	eval := &countingEvaluator{}
	inv := &recordingInvalidator{}
	svc := NewTransactionService(store, eval, nil, EvaluateInline, inv, nil)

	res, err := svc.Record(context.Background(), newTx(c, "50"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Transaction.ID)
	assert.Equal(t, EvaluateInline, res.Mode)
	assert.NoError(t, res.EvaluationErr)
	require.Len(t, eval.calls, 1)
	assert.Equal(t, res.Transaction.ID, eval.calls[0].ID)
	assert.Equal(t, []string{"u1"}, inv.users)
}

func TestRecordInlineEndToEnd(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	ctx := context.Background()
	_, err := store.CreateBudget(ctx, core.Budget{UserID: "u1", Category: c, Month: core.NewDate(2025, 3, 1), Amount: decimal.NewFromInt(40)})
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC) }
	svc := NewTransactionService(store, engine.NewEvaluator(store, engine.WithClock(clock)), nil, EvaluateInline, nil, nil)

	_, err = svc.Record(ctx, newTx(c, "50"))
	require.NoError(t, err)

	list, err := store.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Budget exceeded for Groceries! Budget: 40, Spent: 50", list[0].Message)
}

func TestRecordQueuePublishes(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	eval := &countingEvaluator{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, eval, pub, EvaluateQueue, nil, nil)

	res, err := svc.Record(context.Background(), newTx(c, "10"))
	require.NoError(t, err)
	assert.Empty(t, eval.calls)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, res.Transaction.ID, pub.msgs[0].TransactionID)
	assert.Equal(t, int64(1), pub.msgs[0].Version)

	tx := res.Transaction
	tx.Amount = decimal.NewFromInt(12)
	res, err = svc.Revise(context.Background(), tx)
	require.NoError(t, err)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, int64(2), pub.msgs[1].Version)
	assert.Equal(t, int64(2), res.Transaction.Version)
}

func TestRecordQueuePublishFailureKeepsWrite(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	svc := NewTransactionService(store, &countingEvaluator{}, pub, EvaluateQueue, nil, nil)

	res, err := svc.Record(context.Background(), newTx(c, "10"))
	require.NoError(t, err)
	assert.ErrorIs(t, res.EvaluationErr, amqp.ErrCircuitOpen)

	_, err = store.GetTransaction(context.Background(), "u1", res.Transaction.ID)
	assert.NoError(t, err)
}

func TestRecordQueueWithoutPublisherFallsBackInline(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	eval := &countingEvaluator{}
	svc := NewTransactionService(store, eval, nil, EvaluateQueue, nil, nil)

	res, err := svc.Record(context.Background(), newTx(c, "10"))
	require.NoError(t, err)
	assert.Equal(t, EvaluateInline, res.Mode)
	assert.Len(t, eval.calls, 1)
}

func TestRecordRejectsInvalid(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	eval := &countingEvaluator{}
	svc := NewTransactionService(store, eval, nil, EvaluateInline, nil, nil)

	tx := newTx(c, "10")
	tx.Description = " "
	_, err := svc.Record(context.Background(), tx)
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
	assert.Empty(t, eval.calls)
}

func TestEvaluationErrorIsReported(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	eval := &countingEvaluator{err: core.ErrStoreUnavailable}
	svc := NewTransactionService(store, eval, nil, EvaluateInline, nil, nil)

	res, err := svc.Record(context.Background(), newTx(c, "10"))
	require.NoError(t, err)
	assert.True(t, errors.Is(res.EvaluationErr, core.ErrStoreUnavailable))
}

func TestReviseUnknownTransaction(t *testing.T) {
	store := memory.New()
	c := seedCategory(t, store)
	svc := NewTransactionService(store, &countingEvaluator{}, nil, EvaluateInline, nil, nil)

	tx := newTx(c, "10")
	tx.ID = "missing"
	_, err := svc.Revise(context.Background(), tx)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
