package corpus

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/onnwee/provider-search/internal/config"
)

// ErrNoDatabase is returned when the postgres source is selected without a connection.
var ErrNoDatabase = errors.New("postgres corpus source requires a database connection")

// NewSource returns the corpus source selected by cfg.CorpusSource.
// db is only used by the postgres source and may be nil otherwise.
func NewSource(cfg *config.Config, db *sql.DB) (Source, error) {
	switch cfg.CorpusSource {
	case config.CorpusSourceFile:
		return FileSource{Path: cfg.CorpusPath}, nil
	case config.CorpusSourcePostgres:
		if db == nil {
			return nil, ErrNoDatabase
		}
		return PostgresSource{DB: db, Table: cfg.ProvidersTable}, nil
	case config.CorpusSourceS3:
		client, err := NewR2Client(R2Config{
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create R2 client: %w", err)
		}
		return S3Source{Client: client, Bucket: cfg.R2BucketName, Key: cfg.R2ObjectKey}, nil
	}
	return nil, fmt.Errorf("unknown corpus source %q", cfg.CorpusSource)
}
