package drivefeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
)

// Google Workspace types have no binary content and must be exported.
const (
	mimeGoogleDoc   = "application/vnd.google-apps.document"
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"
)

const truncationMarker = "\n[truncated]"

// ExtractResult carries the text pulled out of one Drive file.
type ExtractResult struct {
	Text    string
	Skipped bool // no extractor for the file's MIME type
}

// extractContent pulls the text out of a Drive file. Google Docs export as
// plain text, Sheets as CSV, plain text types download directly. Types
// without an extractor produce a placeholder record instead of being
// dropped, so downstream consumers still see the file existed.
func (c *Clients) extractContent(ctx context.Context, cfg Config, f File) (ExtractResult, error) {
	switch {
	case f.MimeType == mimeGoogleDoc:
		text, err := c.exportFile(ctx, cfg, f.ID, "text/plain")
		return ExtractResult{Text: text}, err
	case f.MimeType == mimeGoogleSheet:
		text, err := c.exportFile(ctx, cfg, f.ID, "text/csv")
		return ExtractResult{Text: text}, err
	case isTextMime(f.MimeType):
		text, err := c.downloadFile(ctx, cfg, f.ID)
		return ExtractResult{Text: text}, err
	default:
		return ExtractResult{
			Text:    fmt.Sprintf("Content extraction skipped for file type: %s", f.MimeType),
			Skipped: true,
		}, nil
	}
}

func isTextMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || mimeType == "application/json"
}

// exportFile converts a Google Workspace file to exportMime and returns the body.
func (c *Clients) exportFile(ctx context.Context, cfg Config, fileID, exportMime string) (string, error) {
	var text string
	op := func() error {
		resp, err := c.Drive.Files.Export(fileID, exportMime).Context(ctx).Download()
		if err != nil {
			return classifyDriveErr(err)
		}
		defer resp.Body.Close()
		text, err = readCapped(resp.Body, cfg.MaxContentBytes)
		return err
	}
	if err := backoff.Retry(op, newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("export file %s as %s: %w", fileID, exportMime, err)
	}
	return text, nil
}

// downloadFile fetches a file's raw content (alt=media).
func (c *Clients) downloadFile(ctx context.Context, cfg Config, fileID string) (string, error) {
	var text string
	op := func() error {
		resp, err := c.Drive.Files.Get(fileID).Context(ctx).SupportsAllDrives(true).Download()
		if err != nil {
			return classifyDriveErr(err)
		}
		defer resp.Body.Close()
		text, err = readCapped(resp.Body, cfg.MaxContentBytes)
		return err
	}
	if err := backoff.Retry(op, newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("download file %s: %w", fileID, err)
	}
	return text, nil
}

// classifyDriveErr marks non-transient API errors permanent so the retry
// loop gives up immediately instead of hammering on 403s and 404s.
func classifyDriveErr(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return err
		}
		return backoff.Permanent(err)
	}
	// Transport-level errors (resets, timeouts) are worth retrying.
	return err
}

func newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx)
}

// readCapped reads up to max bytes, appending a marker when content was cut.
func readCapped(r io.Reader, max int64) (string, error) {
	if max <= 0 {
		b, err := io.ReadAll(r)
		return string(b), err
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > max {
		return string(b[:max]) + truncationMarker, nil
	}
	return string(b), nil
}
