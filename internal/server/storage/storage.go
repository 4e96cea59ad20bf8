// Package storage abstracts durable blob storage for uploaded media.
package storage

import "context"

// BlobStore is an append-only sink for media blobs. Put must complete before
// any database record referencing the key is written, and must never be
// called twice for the same logical media with different content.
type BlobStore interface {
	// Put stores data under key and returns a stable public URL for it.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Delete removes the blob; missing keys are not an error.
	Delete(ctx context.Context, key string) error
}
