package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// FillArchiver moves aged fills out of the primary store into object
// storage as JSONL, then prunes them. Deletion happens only after the
// upload succeeds.
type FillArchiver struct {
	writer domain.BlobWriter
	fills  domain.FillStore
	logger *slog.Logger
}

// NewFillArchiver creates a FillArchiver.
func NewFillArchiver(writer domain.BlobWriter, fills domain.FillStore, logger *slog.Logger) *FillArchiver {
	return &FillArchiver{
		writer: writer,
		fills:  fills,
		logger: logger.With(slog.String("component", "fill_archiver")),
	}
}

// Archive uploads every fill executed before the cutoff to
// archive/fills/YYYY-MM-DD.jsonl and deletes the archived rows. It returns
// the number of fills archived.
func (a *FillArchiver) Archive(ctx context.Context, cutoff time.Time) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	key := fmt.Sprintf("archive/fills/%s.jsonl", cutoff.UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
	}

	deleted, err := a.fills.DeleteBefore(ctx, cutoff)
	if err != nil {
		return int64(len(fills)), fmt.Errorf("s3blob: archive fills prune: %w", err)
	}

	a.logger.InfoContext(ctx, "fills archived",
		slog.String("key", key),
		slog.Int("archived", len(fills)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(fills)), nil
}

// Run archives once a day at the configured retention horizon until the
// context is cancelled.
func (a *FillArchiver) Run(ctx context.Context, retention time.Duration) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.Archive(ctx, cutoff); err != nil {
				a.logger.WarnContext(ctx, "fill archive pass failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// marshalJSONL serialises records as newline-delimited JSON.
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
