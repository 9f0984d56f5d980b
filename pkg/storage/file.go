package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileUploader writes objects below a root directory.
type FileUploader struct {
	root   string
	logger *slog.Logger
}

func NewFileUploader(root string, logger *slog.Logger) (*FileUploader, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create attachments directory: %w", err)
	}

	return &FileUploader{
		root:   root,
		logger: logger.With("module", "file_uploader"),
	}, nil
}

func (u *FileUploader) Upload(ctx context.Context, objects []Object) error {
	for _, object := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := u.resolve(object.Path)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", object.Path, err)
		}

		if err := os.WriteFile(target, object.Content, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", object.Path, err)
		}

		u.logger.DebugContext(ctx, "Stored attachment", "path", object.Path, "size", len(object.Content))
	}

	return nil
}

// resolve maps a storage path to a file below root, refusing paths that escape it.
func (u *FileUploader) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(cleaned) || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	return filepath.Join(u.root, cleaned), nil
}
