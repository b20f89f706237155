// Package corpus loads provider records from the configured source:
// a JSONL file, a PostgreSQL table, or an object in S3-compatible storage.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrEmptyCorpus is returned when a source yields no usable records.
var ErrEmptyCorpus = errors.New("corpus contains no provider records")

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 4 * 1024 * 1024

// Record is one provider: its id and the raw attribute map as stored.
// Numbers are kept as json.Number so no precision is lost before feature extraction.
type Record struct {
	ID         string
	Attributes map[string]any
}

// Text returns a string attribute, or "" when absent or not a string.
func (r Record) Text(key string) string {
	s, _ := r.Attributes[key].(string)
	return s
}

// Source loads the full provider corpus.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// DecodeJSONL reads one JSON object per line. Blank lines are skipped.
// The record id comes from "NPI" or, failing that, "provider_id"; records
// without an id are skipped with a warning. A malformed line is an error.
func DecodeJSONL(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []Record
	line := 0
	skipped := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		attrs, err := decodeAttributes(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := RecordID(attrs)
		if id == "" {
			skipped++
			continue
		}
		records = append(records, Record{ID: id, Attributes: attrs})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	if skipped > 0 {
		slog.Warn("skipped corpus records without an id", "count", skipped)
	}
	return records, nil
}

func decodeAttributes(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("invalid provider record: %w", err)
	}
	if attrs == nil {
		return nil, errors.New("invalid provider record: not a JSON object")
	}
	return attrs, nil
}

func marshalAttributes(attrs map[string]any) ([]byte, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider record: %w", err)
	}
	return raw, nil
}

// RecordID extracts the provider id from "NPI" or "provider_id".
// Numeric ids are rendered without a fractional part.
func RecordID(attrs map[string]any) string {
	for _, key := range []string{"NPI", "provider_id"} {
		switch v := attrs[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case float64:
			return fmt.Sprintf("%.0f", v)
		case int, int64:
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}
