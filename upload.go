package drivefeed

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const batchContentType = "application/x-ndjson"

// objectName builds the timestamped batch object name, e.g.
// "staging/drive_data_20260830120000.jsonl".
func objectName(prefix string, now time.Time) string {
	name := fmt.Sprintf("drive_data_%s.jsonl", now.UTC().Format("20060102150405"))
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// UploadBatch writes an encoded JSONL batch to the staging bucket and
// returns the gs:// URI of the new object.
func (c *Clients) UploadBatch(ctx context.Context, cfg Config, data []byte, now time.Time) (string, error) {
	name := objectName(cfg.ObjectPrefix, now)

	w := c.Storage.Bucket(cfg.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = batchContentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", cfg.Bucket, name), nil
}

// StagedObject describes one previously uploaded batch.
type StagedObject struct {
	Name    string
	Size    int64
	Created time.Time
}

// ListStaged returns batch objects under the configured prefix in listing order.
func (c *Clients) ListStaged(ctx context.Context, cfg Config) ([]StagedObject, error) {
	it := c.Storage.Bucket(cfg.Bucket).Objects(ctx, &storage.Query{Prefix: cfg.ObjectPrefix})

	var objects []StagedObject
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list staged objects: %w", err)
		}
		objects = append(objects, StagedObject{
			Name:    attrs.Name,
			Size:    attrs.Size,
			Created: attrs.Created,
		})
	}
	return objects, nil
}
