package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/queue"
)

// CancelRequest identifies the transaction whose pending work should be cancelled.
type CancelRequest struct {
	TransactionID  string
	OrganizationID string
	EnvironmentID  string
	UserID         string
	RequestID      string
}

// Canceller hands cancellation requests to the execution queue, in the same
// transaction id namespace dispatched triggers use.
type Canceller struct {
	queue  queue.Client
	logger *slog.Logger
}

func NewCanceller(client queue.Client, logger *slog.Logger) *Canceller {
	return &Canceller{
		queue:  client,
		logger: logger.With("module", "canceller"),
	}
}

// Cancel enqueues a cancellation for req.TransactionID.
func (c *Canceller) Cancel(ctx context.Context, req CancelRequest) error {
	if req.TransactionID == "" {
		return ErrTransactionIDRequired
	}

	job := &models.CancelJob{
		TransactionID:  req.TransactionID,
		OrganizationID: req.OrganizationID,
		EnvironmentID:  req.EnvironmentID,
		UserID:         req.UserID,
		RequestID:      req.RequestID,
	}

	err := c.queue.Enqueue(ctx, req.TransactionID, job, req.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to enqueue cancellation: %w", err)
	}

	c.logger.InfoContext(ctx, "Cancellation queued",
		"transaction_id", req.TransactionID,
		"organization_id", req.OrganizationID)

	return nil
}
