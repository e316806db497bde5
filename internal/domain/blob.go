package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver writes the full trade history of a resolved market to blob
// storage for offline record keeping. It returns the object path written.
type Archiver interface {
	ArchiveMarket(ctx context.Context, market Market, trades []Trade) (string, error)
}
