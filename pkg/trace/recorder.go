// Package trace records immutable per-request decision traces.
package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/herald/pkg/models"
	"github.com/google/uuid"
)

const writeTimeout = 10 * time.Second

// Store persists request traces.
type Store interface {
	CreateRequestTrace(ctx context.Context, records []models.TraceRecord) error
}

// Entry describes one pipeline exit to be traced.
type Entry struct {
	RequestID      string
	TransactionID  string
	OrganizationID string
	EnvironmentID  string
	UserID         string
	EventType      models.TraceEventType
	Status         models.TraceStatus
	Message        string
	RawData        any
}

// Recorder writes trace records in the background. Writes are best-effort:
// failures are logged and never reach the caller.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With("module", "trace_recorder"),
		now:    time.Now,
	}
}

// Record schedules a trace write and returns immediately. Entries without a
// request id are dropped.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil || entry.RequestID == "" {
		return
	}

	record := models.TraceRecord{
		ID:             uuid.NewString(),
		RequestID:      entry.RequestID,
		TransactionID:  entry.TransactionID,
		OrganizationID: entry.OrganizationID,
		EnvironmentID:  entry.EnvironmentID,
		UserID:         entry.UserID,
		EventType:      entry.EventType,
		Status:         entry.Status,
		Message:        entry.Message,
		RawData:        entry.RawData,
		CreatedAt:      r.now().UTC(),
	}

	// The write must outlive the request that produced it.
	writeCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		r.write(writeCtx, record)
	}()
}

// Wait blocks until all scheduled writes have finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}

	r.wg.Wait()
}

func (r *Recorder) write(ctx context.Context, record models.TraceRecord) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.ErrorContext(ctx, "Trace write panicked",
				"request_id", record.RequestID,
				"event_type", record.EventType,
				"error", fmt.Sprint(recovered))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := r.store.CreateRequestTrace(ctx, []models.TraceRecord{record})
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to write request trace",
			"request_id", record.RequestID,
			"event_type", record.EventType,
			"error", err)
	}
}
