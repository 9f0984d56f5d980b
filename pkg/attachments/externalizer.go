// Package attachments moves inline base64 attachments out of trigger payloads
// and into attachment storage.
package attachments

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/dukex/herald/pkg/payload"
	"github.com/dukex/herald/pkg/storage"
	"github.com/google/uuid"
)

const (
	attachmentsKey = "attachments"
	fileKey        = "file"
	nameKey        = "name"
	mimeKey        = "mime"
	storagePathKey = "storagePath"
)

// ErrInvalidAttachment is returned for attachment entries that cannot be externalized.
var ErrInvalidAttachment = errors.New("invalid attachment")

type Externalizer struct {
	uploader storage.Uploader
	logger   *slog.Logger
	newID    func() string
}

func NewExternalizer(uploader storage.Uploader, logger *slog.Logger) *Externalizer {
	return &Externalizer{
		uploader: uploader,
		logger:   logger.With("module", "attachment_externalizer"),
		newID:    uuid.NewString,
	}
}

// Externalize uploads every attachment of data and returns a copy of data
// whose attachments carry a storage path instead of their content. data is
// returned as is when it has no attachments.
func (e *Externalizer) Externalize(ctx context.Context, data map[string]any, organizationID, environmentID string) (map[string]any, error) {
	entries, ok := data[attachmentsKey].([]any)
	if !ok || len(entries) == 0 {
		return data, nil
	}

	objects := make([]storage.Object, 0, len(entries))
	rewritten := make([]any, 0, len(entries))

	for i, entry := range entries {
		attachment, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: attachments.%d is not an object", ErrInvalidAttachment, i)
		}

		name, _ := attachment[nameKey].(string)
		if name == "" || path.Base(name) != name || name == ".." {
			return nil, fmt.Errorf("%w: attachments.%d has an invalid name", ErrInvalidAttachment, i)
		}

		encoded, _ := attachment[fileKey].(string)

		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: attachments.%d is not valid base64: %w", ErrInvalidAttachment, i, err)
		}

		storagePath := path.Join(organizationID, environmentID, e.newID(), name)
		contentType, _ := attachment[mimeKey].(string)

		objects = append(objects, storage.Object{
			Path:        storagePath,
			Content:     content,
			ContentType: contentType,
		})

		metadata := make(map[string]any, len(attachment))
		for key, value := range attachment {
			if key == fileKey {
				continue
			}

			metadata[key] = payload.DeepCopyValue(value)
		}

		metadata[storagePathKey] = storagePath
		rewritten = append(rewritten, metadata)
	}

	if err := e.uploader.Upload(ctx, objects); err != nil {
		return nil, fmt.Errorf("failed to upload attachments: %w", err)
	}

	e.logger.DebugContext(ctx, "Externalized attachments",
		"organization_id", organizationID,
		"environment_id", environmentID,
		"count", len(objects))

	result := make(map[string]any, len(data))
	for key, value := range data {
		if key == attachmentsKey {
			continue
		}

		result[key] = payload.DeepCopyValue(value)
	}

	result[attachmentsKey] = rewritten

	return result, nil
}
