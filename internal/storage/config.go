package storage

import (
	"github.com/caarlos0/env/v10"
)

// ArchiveConfig holds the MinIO connection used for webhook archiving.
// An empty Endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint  string `env:"ARCHIVE_ENDPOINT"`
	AccessKey string `env:"ARCHIVE_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_SECRET_KEY"`
	UseSSL    bool   `env:"ARCHIVE_USE_SSL" envDefault:"false"`
	Bucket    string `env:"ARCHIVE_BUCKET" envDefault:"webhook-archive"`
	Prefix    string `env:"ARCHIVE_PREFIX" envDefault:"webhooks"`
}

// Enabled reports whether an endpoint was configured.
func (c *ArchiveConfig) Enabled() bool {
	return c != nil && c.Endpoint != ""
}

// LoadArchiveConfig reads ARCHIVE_* from the environment.
func LoadArchiveConfig() (*ArchiveConfig, error) {
	cfg := &ArchiveConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
