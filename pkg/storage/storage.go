// Package storage uploads externalized attachment content.
package storage

import (
	"context"
	"errors"
)

var ErrInvalidPath = errors.New("invalid storage path")

// Object is a single blob to upload.
type Object struct {
	Path        string
	Content     []byte
	ContentType string
}

// Uploader stores objects. Upload returns once every object is durable.
type Uploader interface {
	Upload(ctx context.Context, objects []Object) error
}
