// Package worker runs queued transaction evaluations.
package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/records"
	"budgetwatch/internal/services"
)

type TransactionGetter interface {
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
}

// EvaluationWorker loads the transaction named by a message and evaluates it.
type EvaluationWorker struct {
	store     TransactionGetter
	evaluator services.Evaluator
	logger    *log.Logger
}

var _ TransactionGetter = (records.TransactionWriter)(nil)

func NewEvaluationWorker(store TransactionGetter, evaluator services.Evaluator, logger *log.Logger) *EvaluationWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &EvaluationWorker{
		store:     store,
		evaluator: evaluator,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvaluationMessage evaluates the current state of the transaction.
// Messages for deleted transactions and messages older than the stored
// version are acknowledged without work; any other failure is returned so
// the delivery is requeued.
func (w *EvaluationWorker) HandleEvaluationMessage(ctx context.Context, msg *amqp.TransactionEvaluationMessage) error {
	logger := w.logger.With(
		log.FieldTransactionID, msg.TransactionID,
		log.FieldUserID, msg.UserID,
		log.FieldVersion, msg.Version)

	tx, err := w.store.GetTransaction(ctx, msg.UserID, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		logger.InfoContext(ctx, "Transaction no longer exists, dropping message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", msg.TransactionID, err)
	}

	if tx.Version > msg.Version {
		logger.DebugContext(ctx, "Skipping stale evaluation message", "stored_version", tx.Version)
		return nil
	}

	if err := w.evaluator.Evaluate(ctx, tx); err != nil {
		return fmt.Errorf("evaluate transaction %s: %w", tx.ID, err)
	}
	logger.InfoContext(ctx, "Transaction evaluated")
	return nil
}
