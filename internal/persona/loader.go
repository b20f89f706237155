package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilePrefix is stripped from persona file names when deriving an id.
const FilePrefix = "persona_"

// LoadDir reads every *.json file in dir and builds a registry.
// The persona id is the file's "id" field, or the file name without the
// "persona_" prefix and ".json" suffix. A directory with no persona files
// is a configuration error.
func LoadDir(dir string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no persona files found in %s", ErrInvalidConfig, dir)
	}
	sort.Strings(paths)

	configs := make([]Config, 0, len(paths))
	for _, path := range paths {
		cfg, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	reg, err := NewRegistry(configs)
	if err != nil {
		return nil, err
	}

	slog.Info("loaded personas",
		"dir", dir,
		"count", reg.Len(),
		"ids", reg.IDs())

	return reg, nil
}

func readConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, path, err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
	}

	if cfg.ID == "" {
		cfg.ID = IDFromFilename(path)
	}
	cfg.Source = path
	return cfg, nil
}

// IDFromFilename derives a persona id from a file path,
// e.g. "config/persona_sarah.json" -> "sarah".
func IDFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimPrefix(name, FilePrefix)
}
