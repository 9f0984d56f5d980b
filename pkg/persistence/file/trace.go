package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
)

const maxTraceLineSize = 1024 * 1024

// TraceRepository appends traces as JSON lines to traces/request_traces.jsonl.
type TraceRepository struct {
	path string
	mu   sync.Mutex
}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository(root string) *TraceRepository {
	return &TraceRepository{path: filepath.Join(root, "traces", "request_traces.jsonl")}
}

func (tr *TraceRepository) CreateRequestTrace(_ context.Context, records []models.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	err := os.MkdirAll(filepath.Dir(tr.path), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create traces directory: %w", err)
	}

	file, err := os.OpenFile(tr.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open traces file: %w", err)
	}

	encoder := json.NewEncoder(file)

	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			_ = file.Close()

			return persistence.NewRecordError("CreateRequestTrace", "trace", record.RequestID, err)
		}
	}

	return file.Close()
}

func (tr *TraceRepository) RequestTraces(_ context.Context, requestID string) ([]models.TraceRecord, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	records := make([]models.TraceRecord, 0)

	file, err := os.Open(tr.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}

		return nil, fmt.Errorf("failed to open traces file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTraceLineSize)

	for scanner.Scan() {
		var record models.TraceRecord

		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, persistence.NewRecordError("RequestTraces", "trace", requestID, fmt.Errorf("%w: %w", persistence.ErrCorruptRecord, err))
		}

		if record.RequestID == requestID {
			records = append(records, record)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read traces file: %w", err)
	}

	return records, nil
}
