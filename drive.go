package drivefeed

import (
	"context"
	"fmt"
	"time"
)

// File is the Drive file metadata an ingestion run keeps.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string // RFC 3339, as returned by the Drive API
}

// buildQuery constructs the Drive files.list query for a folder and cutoff.
// Trashed files are excluded; the cutoff compares against modifiedTime.
func buildQuery(folderID string, cutoff time.Time) string {
	return fmt.Sprintf(
		"'%s' in parents and modifiedTime > '%s' and trashed = false",
		folderID,
		cutoff.UTC().Format(time.RFC3339),
	)
}

// ListModified returns every file in the configured folder modified after
// cutoff, walking all result pages. Order follows the Drive listing.
func (c *Clients) ListModified(ctx context.Context, cfg Config, cutoff time.Time) ([]File, error) {
	query := buildQuery(cfg.FolderID, cutoff)

	var files []File
	pageToken := ""
	for {
		call := c.Drive.Files.List().
			Context(ctx).
			Q(query).
			PageSize(cfg.PageSize).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list drive files: %w", err)
		}

		for _, f := range list.Files {
			files = append(files, File{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				ModifiedTime: f.ModifiedTime,
			})
		}

		if list.NextPageToken == "" {
			return files, nil
		}
		pageToken = list.NextPageToken
	}
}
