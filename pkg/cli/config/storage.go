package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/service/blob"
	"github.com/secmon-lab/tedbrain/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Storage holds CLI flags for the media blob storage
type Storage struct {
	backend string
	bucket  string
	prefix  string
}

func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Media storage backend (memory or gcs)",
			Value:       "memory",
			Sources:     cli.EnvVars("TEDBRAIN_STORAGE_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Cloud Storage bucket for media (gcs backend)",
			Sources:     cli.EnvVars("TEDBRAIN_STORAGE_BUCKET"),
			Destination: &s.bucket,
		},
		&cli.StringFlag{
			Name:        "storage-prefix",
			Usage:       "Object name prefix in the bucket",
			Sources:     cli.EnvVars("TEDBRAIN_STORAGE_PREFIX"),
			Destination: &s.prefix,
		},
	}
}

// Configure returns the blob storage and a function releasing it
func (s *Storage) Configure(ctx context.Context) (interfaces.BlobStorage, func(), error) {
	switch s.backend {
	case "gcs":
		if s.bucket == "" {
			return nil, nil, goerr.Wrap(ErrInvalidConfig, "storage-bucket is required when using gcs backend")
		}
		store, err := blob.NewGCS(ctx, s.bucket, blob.WithPrefix(s.prefix))
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize cloud storage")
		}
		logging.Default().Info("Using Cloud Storage for media", "bucket", s.bucket, "prefix", s.prefix)
		return store, func() { _ = store.Close() }, nil

	case "memory":
		return blob.NewMemory(), func() {}, nil

	default:
		return nil, nil, goerr.Wrap(ErrInvalidBackend, "invalid storage backend", goerr.V(BackendKey, s.backend))
	}
}
