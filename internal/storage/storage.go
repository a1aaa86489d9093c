// Package storage abstracts persistence of uploaded media blobs.
package storage

import (
	"context"
	"io"
)

// BlobStore stores and removes media objects. Put returns the URL path the
// object is served from, which is what gets persisted on the owning record.
type BlobStore interface {
	Put(ctx context.Context, name string, contentType string, r io.Reader, size int64) (string, error)
	Remove(ctx context.Context, name string) error
}
