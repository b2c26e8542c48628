package drivefeed

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds ingestion job configuration.
type Config struct {
	FolderID        string        // Drive folder to harvest
	Bucket          string        // GCS staging bucket
	ObjectPrefix    string        // optional prefix for batch objects
	Window          time.Duration // lookback window for modified files
	PageSize        int64         // Drive listing page size
	Workers         int           // concurrent extractions
	MaxContentBytes int64         // cap on extracted text per file (0 = unlimited)
	Source          string        // source label written into every record
	CredentialsFile string        // optional service account key file
	EndpointURL     string        // API endpoint override for simulators
}

// fileConfig is the TOML representation of Config. Window is a string so
// operators can write "72h" instead of nanoseconds.
type fileConfig struct {
	FolderID        string `toml:"folder_id"`
	Bucket          string `toml:"bucket"`
	ObjectPrefix    string `toml:"object_prefix"`
	Window          string `toml:"window"`
	PageSize        int64  `toml:"page_size"`
	Workers         int    `toml:"workers"`
	MaxContentBytes int64  `toml:"max_content_bytes"`
	Source          string `toml:"source"`
	CredentialsFile string `toml:"credentials_file"`
	EndpointURL     string `toml:"endpoint_url"`
}

func defaultConfig() Config {
	return Config{
		Window:          7 * 24 * time.Hour,
		PageSize:        100,
		Workers:         4,
		MaxContentBytes: 10 << 20,
		Source:          "Google Drive",
	}
}

// LoadConfig builds configuration from defaults, an optional TOML file, and
// environment variables, in increasing order of precedence.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := applyFile(&cfg, fc); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(c *Config, fc fileConfig) error {
	setIfNonEmpty(&c.FolderID, fc.FolderID)
	setIfNonEmpty(&c.Bucket, fc.Bucket)
	setIfNonEmpty(&c.ObjectPrefix, fc.ObjectPrefix)
	setIfNonEmpty(&c.Source, fc.Source)
	setIfNonEmpty(&c.CredentialsFile, fc.CredentialsFile)
	setIfNonEmpty(&c.EndpointURL, fc.EndpointURL)
	if fc.PageSize != 0 {
		c.PageSize = fc.PageSize
	}
	if fc.Workers != 0 {
		c.Workers = fc.Workers
	}
	if fc.MaxContentBytes != 0 {
		c.MaxContentBytes = fc.MaxContentBytes
	}
	if fc.Window != "" {
		d, err := time.ParseDuration(fc.Window)
		if err != nil {
			return fmt.Errorf("invalid window %q in config file: %w", fc.Window, err)
		}
		c.Window = d
	}
	return nil
}

func applyEnv(c *Config) error {
	setIfNonEmpty(&c.FolderID, os.Getenv("DRIVEFEED_FOLDER_ID"))
	setIfNonEmpty(&c.Bucket, os.Getenv("DRIVEFEED_BUCKET"))
	setIfNonEmpty(&c.ObjectPrefix, os.Getenv("DRIVEFEED_OBJECT_PREFIX"))
	setIfNonEmpty(&c.Source, os.Getenv("DRIVEFEED_SOURCE"))
	setIfNonEmpty(&c.CredentialsFile, os.Getenv("DRIVEFEED_CREDENTIALS_FILE"))
	setIfNonEmpty(&c.EndpointURL, os.Getenv("DRIVEFEED_ENDPOINT_URL"))

	if v := os.Getenv("DRIVEFEED_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DRIVEFEED_WINDOW %q: %w", v, err)
		}
		c.Window = d
	}
	if v := os.Getenv("DRIVEFEED_PAGE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DRIVEFEED_PAGE_SIZE %q: %w", v, err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("DRIVEFEED_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DRIVEFEED_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("DRIVEFEED_MAX_CONTENT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DRIVEFEED_MAX_CONTENT_BYTES %q: %w", v, err)
		}
		c.MaxContentBytes = n
	}
	return nil
}

func setIfNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.FolderID == "" {
		return fmt.Errorf("DRIVEFEED_FOLDER_ID is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("DRIVEFEED_BUCKET is required")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.PageSize < 1 || c.PageSize > 1000 {
		return fmt.Errorf("page size must be between 1 and 1000, got %d", c.PageSize)
	}
	return nil
}
