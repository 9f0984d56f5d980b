// Package file provides file-based persistence implementation for workflows, tenants and request traces.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/herald/pkg/persistence"
)

var _ persistence.Persistence = (*Persistence)(nil)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	*WorkflowRepository
	*TenantRepository
	*TraceRepository

	root string
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		WorkflowRepository: NewWorkflowRepository(cleanRoot),
		TenantRepository:   NewTenantRepository(cleanRoot),
		TraceRepository:    NewTraceRepository(cleanRoot),
		root:               cleanRoot,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrUnhealthy, err)
	}

	return nil
}

// store reads and writes one JSON document per record.
type store struct {
	root string
	mu   sync.RWMutex
}

// path builds a file path from escaped segments so identifiers cannot leave the root.
func (s *store) path(segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, s.root)

	for _, segment := range segments {
		parts = append(parts, url.PathEscape(segment))
	}

	return filepath.Join(parts...) + ".json"
}

// read decodes the document at path into target. It reports false when the file does not exist.
func (s *store) read(path string, target any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", persistence.ErrCorruptRecord, path, err)
	}

	return true, nil
}

func (s *store) write(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	return os.WriteFile(path, data, 0o600)
}
