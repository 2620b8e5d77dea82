package worker

import (
	"context"
	"errors"
	"testing"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/records/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	seen []core.Transaction
	err  error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, tx core.Transaction) error {
	f.seen = append(f.seen, tx)
	return f.err
}

func seed(t *testing.T) (*memory.Store, core.Transaction) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	c, err := s.CreateCategory(ctx, core.Category{UserID: "u1", Name: "Food", Type: core.Expense})
	require.NoError(t, err)
	tx, err := s.CreateTransaction(ctx, core.Transaction{
		UserID: "u1", Category: c, Amount: decimal.NewFromInt(5),
		Description: "lunch", Date: core.NewDate(2025, 3, 1),
	})
	require.NoError(t, err)
	return s, tx
}

func TestHandleEvaluationMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("evaluates current version", func(t *testing.T) {
		store, tx := seed(t)
		eval := &fakeEvaluator{}
		w := NewEvaluationWorker(store, eval, nil)

		require.NoError(t, w.HandleEvaluationMessage(ctx, amqp.NewTransactionEvaluationMessage(tx.ID, "u1", 1)))
		require.Len(t, eval.seen, 1)
		assert.Equal(t, "lunch", eval.seen[0].Description)
	})

	t.Run("skips stale version", func(t *testing.T) {
		store, tx := seed(t)
		tx.Description = "dinner"
		_, err := store.UpdateTransaction(ctx, tx)
		require.NoError(t, err)

		eval := &fakeEvaluator{}
		w := NewEvaluationWorker(store, eval, nil)
		require.NoError(t, w.HandleEvaluationMessage(ctx, amqp.NewTransactionEvaluationMessage(tx.ID, "u1", 1)))
		assert.Empty(t, eval.seen)

		require.NoError(t, w.HandleEvaluationMessage(ctx, amqp.NewTransactionEvaluationMessage(tx.ID, "u1", 2)))
		require.Len(t, eval.seen, 1)
		assert.Equal(t, "dinner", eval.seen[0].Description)
	})

	t.Run("drops missing transaction", func(t *testing.T) {
		store, _ := seed(t)
		eval := &fakeEvaluator{}
		w := NewEvaluationWorker(store, eval, nil)

		assert.NoError(t, w.HandleEvaluationMessage(ctx, amqp.NewTransactionEvaluationMessage("gone", "u1", 1)))
		assert.Empty(t, eval.seen)
	})

	t.Run("returns evaluation errors for requeue", func(t *testing.T) {
		store, tx := seed(t)
		eval := &fakeEvaluator{err: core.ErrStoreUnavailable}
		w := NewEvaluationWorker(store, eval, nil)

		err := w.HandleEvaluationMessage(ctx, amqp.NewTransactionEvaluationMessage(tx.ID, "u1", 1))
		assert.True(t, errors.Is(err, core.ErrStoreUnavailable))
	})
}
