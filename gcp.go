package drivefeed

import (
	"context"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Clients holds the GCP SDK clients used by an ingestion run.
type Clients struct {
	Drive   *drive.Service
	Storage *storage.Client
}

// NewClients initializes the Drive and Storage clients.
func NewClients(ctx context.Context, cfg Config) (*Clients, error) {
	if cfg.EndpointURL != "" {
		return newClientsWithEndpoint(ctx, cfg.EndpointURL)
	}
	return newClientsDefault(ctx, cfg)
}

func newClientsWithEndpoint(ctx context.Context, endpointURL string) (*Clients, error) {
	driveSvc, err := drive.NewService(ctx,
		option.WithEndpoint(endpointURL),
		option.WithoutAuthentication(),
	)
	if err != nil {
		return nil, err
	}

	// The storage client derives its upload URL from the /storage/v1
	// base path, the same shape STORAGE_EMULATOR_HOST produces.
	storageClient, err := storage.NewClient(ctx,
		option.WithEndpoint(strings.TrimSuffix(endpointURL, "/")+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		return nil, err
	}

	return &Clients{Drive: driveSvc, Storage: storageClient}, nil
}

func newClientsDefault(ctx context.Context, cfg Config) (*Clients, error) {
	driveOpts := []option.ClientOption{
		option.WithScopes(drive.DriveReadonlyScope),
	}
	if cfg.CredentialsFile != "" {
		driveOpts = append(driveOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, err
	}

	var storageOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		storageOpts = append(storageOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	storageClient, err := storage.NewClient(ctx, storageOpts...)
	if err != nil {
		return nil, err
	}

	return &Clients{Drive: driveSvc, Storage: storageClient}, nil
}

// Close releases the underlying clients.
func (c *Clients) Close() error {
	return c.Storage.Close()
}
