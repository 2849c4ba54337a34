package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves old records from the primary store into cold storage.
// Deletion from the primary store is a separate, explicit step executed
// after the archive has been verified.
type Archiver interface {
	// ArchiveRebalances uploads all completed rebalances started before the
	// cutoff and returns the archived record count.
	ArchiveRebalances(ctx context.Context, before time.Time) (int64, error)

	// ArchiveAlerts uploads all alerts created before the cutoff and returns
	// the archived record count.
	ArchiveAlerts(ctx context.Context, before time.Time) (int64, error)
}
