package drivefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Summary reports what a single ingestion run did.
type Summary struct {
	RunID      string
	Found      int    // files returned by the Drive listing
	Processed  int    // files with extracted content
	Skipped    int    // files recorded with placeholder text
	Failed     int    // files omitted after extraction errors
	BatchBytes int    // size of the encoded JSONL batch
	Object     string // gs:// URI of the uploaded object, empty if none
}

// Job is one run-to-completion ingestion of a Drive folder into GCS.
type Job struct {
	cfg     Config
	clients *Clients
	logger  zerolog.Logger

	// DryRun lists and extracts but never uploads.
	DryRun bool

	now func() time.Time
}

// NewJob wires an ingestion job from its dependencies.
func NewJob(cfg Config, clients *Clients, logger zerolog.Logger) *Job {
	return &Job{cfg: cfg, clients: clients, logger: logger, now: time.Now}
}

// Run executes the ingestion pipeline once: list, extract, encode, upload.
// A per-file extraction failure drops that file from the batch; the run
// itself fails only when every listed file failed or the upload did.
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	logger := j.logger.With().Str("run_id", runID).Logger()
	summary := &Summary{RunID: runID}

	cutoff := j.now().Add(-j.cfg.Window)
	logger.Info().
		Str("folder", j.cfg.FolderID).
		Str("bucket", j.cfg.Bucket).
		Time("cutoff", cutoff).
		Msg("starting drive ingestion")

	files, err := j.clients.ListModified(ctx, j.cfg, cutoff)
	if err != nil {
		return summary, err
	}
	summary.Found = len(files)
	logger.Info().Int("files", len(files)).Msg("drive listing complete")

	if len(files) == 0 {
		logger.Info().Msg("no files to process, skipping upload")
		return summary, nil
	}

	type outcome struct {
		record  Record
		ok      bool
		skipped bool
	}
	outcomes := make([]outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			res, err := j.clients.extractContent(gctx, j.cfg, f)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn().Err(err).
					Str("file", f.Name).
					Str("id", f.ID).
					Msg("extraction failed, dropping file from batch")
				return nil
			}
			outcomes[i] = outcome{
				record: Record{
					DocumentID:       f.ID,
					FileName:         f.Name,
					TextContent:      res.Text,
					LastModifiedDate: f.ModifiedTime,
					Source:           j.cfg.Source,
				},
				ok:      true,
				skipped: res.Skipped,
			}
			logger.Debug().Str("file", f.Name).Str("mime", f.MimeType).Msg("processed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	// Record order matches the Drive listing regardless of which worker
	// finished first.
	var records []Record
	for _, o := range outcomes {
		switch {
		case !o.ok:
			summary.Failed++
		case o.skipped:
			summary.Skipped++
			records = append(records, o.record)
		default:
			summary.Processed++
			records = append(records, o.record)
		}
	}

	if summary.Failed == len(files) {
		return summary, fmt.Errorf("all %d files failed extraction", len(files))
	}

	data, err := encodeJSONL(records)
	if err != nil {
		return summary, fmt.Errorf("encode batch: %w", err)
	}
	summary.BatchBytes = len(data)

	if j.DryRun {
		logger.Info().
			Int("records", len(records)).
			Int("bytes", len(data)).
			Str("object", objectName(j.cfg.ObjectPrefix, j.now())).
			Msg("dry run, skipping upload")
		return summary, nil
	}

	uri, err := j.clients.UploadBatch(ctx, j.cfg, data, j.now())
	if err != nil {
		return summary, err
	}
	summary.Object = uri

	logger.Info().
		Int("records", len(records)).
		Int("bytes", len(data)).
		Str("object", uri).
		Msg("batch uploaded")
	return summary, nil
}
