// Package services wires the record store, the evaluation engine and the
// evaluation queue into the operations the HTTP layer calls.
package services

import (
	"context"
	"fmt"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/records"
)

// EvaluationMode selects where transaction evaluation runs.
type EvaluationMode string

const (
	EvaluateInline EvaluationMode = "inline"
	EvaluateQueue  EvaluationMode = "queue"
)

type (
	Evaluator interface {
		Evaluate(ctx context.Context, tx core.Transaction) error
	}

	EvaluationPublisher interface {
		PublishEvaluation(ctx context.Context, msg *amqp.TransactionEvaluationMessage) error
	}

	// Invalidator drops cached reports derived from a user's transactions.
	Invalidator interface {
		Invalidate(userID string)
	}
)

// WriteResult reports a successful write and what happened to its evaluation.
type WriteResult struct {
	Transaction core.Transaction
	Mode        EvaluationMode
	// EvaluationErr is set when the inline evaluation or the publish failed.
	// The write itself stands.
	EvaluationErr error
}

// TransactionService is the write path: every create or update is followed
// by an evaluation, inline or through the queue.
type TransactionService struct {
	store       records.TransactionWriter
	evaluator   Evaluator
	publisher   EvaluationPublisher
	mode        EvaluationMode
	invalidator Invalidator
	logger      *log.Logger
}

func NewTransactionService(
	store records.TransactionWriter,
	evaluator Evaluator,
	publisher EvaluationPublisher,
	mode EvaluationMode,
	invalidator Invalidator,
	logger *log.Logger,
) *TransactionService {
	if logger == nil {
		logger = log.Nop()
	}
	return &TransactionService{
		store:       store,
		evaluator:   evaluator,
		publisher:   publisher,
		mode:        mode,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentApp),
	}
}

// Record validates and stores a new transaction, then evaluates it.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (WriteResult, error) {
	if err := tx.Validate(); err != nil {
		return WriteResult{}, err
	}
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("save transaction: %w", err)
	}
	return s.afterWrite(ctx, created, log.OpCreate), nil
}

// Revise updates an existing transaction, bumping its version, then
// evaluates it again.
func (s *TransactionService) Revise(ctx context.Context, tx core.Transaction) (WriteResult, error) {
	if err := tx.Validate(); err != nil {
		return WriteResult{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("update transaction: %w", err)
	}
	return s.afterWrite(ctx, updated, log.OpUpdate), nil
}

func (s *TransactionService) afterWrite(ctx context.Context, tx core.Transaction, op string) WriteResult {
	if s.invalidator != nil {
		s.invalidator.Invalidate(tx.UserID)
	}
	logger := s.logger.WithFields(log.NewFields().
		WithOperation(op).
		WithTransaction(tx.UserID, tx.ID, tx.Category.Name, core.FormatAmount(tx.Amount)))
	logger.InfoContext(ctx, "Transaction saved", log.FieldVersion, tx.Version)

	res := WriteResult{Transaction: tx, Mode: s.mode}
	if s.mode == EvaluateQueue {
		if s.publisher != nil {
			msg := amqp.NewTransactionEvaluationMessage(tx.ID, tx.UserID, tx.Version)
			if err := s.publisher.PublishEvaluation(ctx, msg); err != nil {
				logger.LogErr(ctx, "Failed to publish evaluation message", err, log.ErrorTypeNetwork)
				res.EvaluationErr = err
			}
			return res
		}
		logger.WarnContext(ctx, "AMQP client not available, evaluating inline")
		res.Mode = EvaluateInline
	}

	if err := s.evaluator.Evaluate(ctx, tx); err != nil {
		res.EvaluationErr = err
	}
	return res
}
