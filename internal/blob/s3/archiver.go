package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lpwatch/rangekeeper/internal/domain"
)

// RebalanceArchiveStore provides read access to completed rebalances for
// archival. The Postgres RebalanceStore satisfies it.
type RebalanceArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Rebalance, error)
}

// AlertArchiveStore provides read access to old alerts for archival. The
// Postgres AlertStore satisfies it.
type AlertArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Alert, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for old
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; that is a separate, explicit step to be executed after
// the archive has been verified.
type ArchiveImpl struct {
	writer     domain.BlobWriter
	rebalances RebalanceArchiveStore
	alerts     AlertArchiveStore
	logger     *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, rebalances RebalanceArchiveStore, alerts AlertArchiveStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer:     writer,
		rebalances: rebalances,
		alerts:     alerts,
		logger:     logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRebalances queries completed rebalances started before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/rebalances/YYYY-MM.jsonl. It returns the count of archived records.
func (a *ArchiveImpl) ArchiveRebalances(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.rebalances.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rebalances query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rebalances marshal: %w", err)
	}

	path := archivePath("rebalances", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive rebalances upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "archived rebalances",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// ArchiveAlerts queries alerts created before the cutoff, serializes them to
// JSONL, and uploads the file to S3 at archive/alerts/YYYY-MM.jsonl. It
// returns the count of archived records.
func (a *ArchiveImpl) ArchiveAlerts(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.alerts.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts marshal: %w", err)
	}

	path := archivePath("alerts", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts upload: %w", err)
	}

	count := int64(len(records))
	a.logger.InfoContext(ctx, "archived alerts",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// Run archives once a day until the context is cancelled, keeping retention
// days of history in the primary store. Errors are logged and the loop
// continues.
func (a *ArchiveImpl) Run(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := time.Now().Add(-retention)
			if _, err := a.ArchiveRebalances(ctx, before); err != nil {
				a.logger.ErrorContext(ctx, "rebalance archive failed", slog.String("error", err.Error()))
			}
			if _, err := a.ArchiveAlerts(ctx, before); err != nil {
				a.logger.ErrorContext(ctx, "alert archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
