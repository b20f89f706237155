package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveindex "github.com/blevesearch/bleve_index_api"
	"github.com/onnwee/provider-search/internal/corpus"
	"github.com/onnwee/provider-search/internal/ranking"
)

// Indexed field names.
const (
	fieldText   = "text"
	fieldRecord = "record"
)

// batchSize is the number of documents written per bleve batch.
const batchSize = 1000

// scoringModels maps each method to the bleve scoring model of its index.
// bleve has no query-likelihood model; ql_dirichlet is served by the classic
// tf-idf scorer, which gives a second, differently shaped baseline.
var scoringModels = map[Method]string{
	MethodBM25:        bleveindex.BM25Scoring,
	MethodQLDirichlet: bleveindex.TFIDFScoring,
}

// Index is a Retriever over on-disk bleve indexes, one per method.
// Safe for concurrent use once opened.
type Index struct {
	dir     string
	indexes map[Method]bleve.Index
}

var _ Retriever = (*Index)(nil)

func newMapping(scoringModel string) *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "standard"
	text.Store = false
	text.IncludeInAll = true
	doc.AddFieldMappingsAt(fieldText, text)

	// The raw record is stored for retrieval but never analyzed.
	record := bleve.NewTextFieldMapping()
	record.Index = false
	record.Store = true
	record.IncludeInAll = false
	record.IncludeTermVectors = false
	record.DocValues = false
	doc.AddFieldMappingsAt(fieldRecord, record)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = "standard"
	im.ScoringModel = scoringModel
	return im
}

func methodDir(dir string, m Method) string {
	return filepath.Join(dir, string(m))
}

// Build creates fresh indexes under dir from records, replacing any existing
// index for each method, and returns them opened.
func Build(ctx context.Context, dir string, records []corpus.Record) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}

	idx := &Index{dir: dir, indexes: make(map[Method]bleve.Index, len(scoringModels))}
	for _, m := range Methods() {
		path := methodDir(dir, m)
		if err := os.RemoveAll(path); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to remove old %s index: %w", m, err)
		}

		bi, err := bleve.New(path, newMapping(scoringModels[m]))
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to create %s index: %w", m, err)
		}
		idx.indexes[m] = bi

		if err := indexRecords(ctx, bi, records); err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to index %s: %w", m, err)
		}
	}

	slog.Info("built provider index", "dir", dir, "documents", len(records))
	return idx, nil
}

func indexRecords(ctx context.Context, bi bleve.Index, records []corpus.Record) error {
	batch := bi.NewBatch()
	for i, r := range records {
		raw, err := json.Marshal(r.Attributes)
		if err != nil {
			return fmt.Errorf("provider %s: %w", r.ID, err)
		}
		doc := map[string]any{
			fieldText:   SearchText(r.Attributes),
			fieldRecord: string(raw),
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return fmt.Errorf("provider %s: %w", r.ID, err)
		}

		if batch.Size() >= batchSize || i == len(records)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := bi.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	return nil
}

// Open opens indexes previously written by Build.
func Open(dir string) (*Index, error) {
	idx := &Index{dir: dir, indexes: make(map[Method]bleve.Index, len(scoringModels))}
	for _, m := range Methods() {
		bi, err := bleve.Open(methodDir(dir, m))
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("failed to open %s index: %w", m, err)
		}
		idx.indexes[m] = bi
	}
	return idx, nil
}

// OpenOrBuild opens the indexes under dir, building them from src when they
// do not exist yet.
func OpenOrBuild(ctx context.Context, dir string, src corpus.Source) (*Index, error) {
	idx, err := Open(dir)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, err
	}

	slog.Info("no provider index found, building from corpus", "dir", dir)
	records, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return Build(ctx, dir, records)
}

// DocCount returns the number of indexed providers.
func (x *Index) DocCount() (uint64, error) {
	bi, ok := x.indexes[MethodBM25]
	if !ok {
		return 0, errors.New("index not open")
	}
	return bi.DocCount()
}

// HealthCheck reports whether the index is open and readable.
func (x *Index) HealthCheck(ctx context.Context) error {
	_, err := x.DocCount()
	return err
}

// Close closes every open index.
func (x *Index) Close() error {
	var errs []error
	for m, bi := range x.indexes {
		if err := bi.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
		}
		delete(x.indexes, m)
	}
	return errors.Join(errs...)
}

// Retrieve runs a match query against the method's index.
// Hits are ordered by score descending, then document id, so equal scores
// come back in a stable order.
func (x *Index) Retrieve(ctx context.Context, query string, method Method, k int) ([]ranking.RawCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(ctx, "search", err)
	}
	bi, ok := x.indexes[method]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrRetrieval, method)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrRetrieval, k)
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(fieldText)

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{fieldRecord}
	req.SortBy([]string{"-_score", "_id"})

	res, err := bi.SearchInContext(ctx, req)
	if err != nil {
		return nil, wrap(ctx, "search", err)
	}

	out := make([]ranking.RawCandidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		attrs, err := decodeRecord(hit.Fields[fieldRecord])
		if err != nil {
			return nil, fmt.Errorf("%w: provider %s: %w", ErrRetrieval, hit.ID, err)
		}
		out = append(out, ranking.RawCandidate{
			ProviderID:    hit.ID,
			BaselineScore: hit.Score,
			Attributes:    attrs,
		})
	}
	return out, nil
}

func decodeRecord(field any) (map[string]any, error) {
	raw, ok := field.(string)
	if !ok {
		return nil, errors.New("stored record missing")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("invalid stored record: %w", err)
	}
	return attrs, nil
}
