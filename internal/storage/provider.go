// Package storage defines the blob-store contract shared by the local data
// directory and the optional remote snapshot mirrors.
package storage

import (
	"context"
	"io"
)

// BlobStore writes an object and returns a URI describing where it landed.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
