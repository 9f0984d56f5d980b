package cmd

import (
	"log/slog"

	"github.com/dukex/herald/pkg/storage"
)

// NewUploader creates the attachment uploader rooted at path.
func NewUploader(logger *slog.Logger, path string) (storage.Uploader, error) {
	return storage.NewFileUploader(path, logger)
}
