package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// FileSource reads the corpus from a local JSONL file.
type FileSource struct {
	Path string
}

// Load reads and decodes the file.
func (s FileSource) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	records, err := DecodeJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Path, ErrEmptyCorpus)
	}

	slog.Info("loaded provider corpus", "source", "file", "path", s.Path, "count", len(records))
	return records, nil
}
