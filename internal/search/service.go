package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/provider-search/internal/persona"
	"github.com/onnwee/provider-search/internal/ranking"
	"github.com/onnwee/provider-search/internal/retrieval"
	"github.com/onnwee/provider-search/internal/tracing"
)

// Service defaults.
const (
	DefaultCandidatePool    = 100
	DefaultRetrievalTimeout = 2 * time.Second
	DefaultExplainTopN      = 5
)

// unknownValue fills provider_name and specialty when the record lacks them.
const unknownValue = "Unknown"

// Config tunes a Service. Zero fields take the defaults above.
type Config struct {
	// CandidatePool is how many baseline hits are reranked per query.
	CandidatePool int

	// RetrievalTimeout bounds the retrieval call.
	RetrievalTimeout time.Duration

	// ExplainTopN is the number of contributions returned per explained result.
	ExplainTopN int
}

func (c Config) withDefaults() Config {
	if c.CandidatePool <= 0 {
		c.CandidatePool = DefaultCandidatePool
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if c.ExplainTopN <= 0 {
		c.ExplainTopN = DefaultExplainTopN
	}
	return c
}

// Response is the search result envelope.
// Persona and Alpha are null when no persona was applied.
type Response struct {
	Query      string           `json:"query"`
	Method     retrieval.Method `json:"method"`
	Persona    *string          `json:"persona"`
	Alpha      *float64         `json:"alpha"`
	NumResults int              `json:"num_results"`
	Results    []Result         `json:"results"`
}

// Result is one ranked provider.
type Result struct {
	Rank          int                    `json:"rank"`
	ProviderID    string                 `json:"provider_id"`
	ProviderName  string                 `json:"provider_name"`
	Specialty     string                 `json:"specialty"`
	CombinedScore float64                `json:"combined_score"`
	BaselineScore float64                `json:"baseline_score"`
	PersonaScore  float64                `json:"persona_score"`
	ProviderData  map[string]any         `json:"provider_data"`
	Features      map[string]float64     `json:"features,omitempty"`
	Explanation   []ranking.Contribution `json:"explanation,omitempty"`
}

// Service runs searches: retrieve a candidate pool, rerank it for the
// requested persona, and shape the response.
type Service struct {
	retriever retrieval.Retriever
	reranker  *ranking.Reranker
	personas  ranking.PersonaSource
	cfg       Config
}

// NewService creates a search service.
func NewService(retriever retrieval.Retriever, reranker *ranking.Reranker, personas ranking.PersonaSource, cfg Config) *Service {
	return &Service{
		retriever: retriever,
		reranker:  reranker,
		personas:  personas,
		cfg:       cfg.withDefaults(),
	}
}

// Search runs one query end to end. Any failure aborts the whole call;
// there are no partial results.
//
// Errors wrap ranking.ErrValidation for bad input, persona.ErrNotFound for an
// unknown persona (checked before retrieval) and retrieval.ErrRetrieval for
// adapter failures, including the retrieval timeout.
func (s *Service) Search(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search")
	defer func() { endSpan(err) }()

	p, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	tracing.SetAttributes(ctx,
		tracing.AttrQueryLength.Int(len(p.Query)),
		tracing.AttrMethod.String(string(p.Method)),
		tracing.AttrK.Int(p.K),
	)

	// One snapshot serves the whole request, even across a concurrent reload.
	reg := s.personas.Current()
	if p.Persona != "" {
		if _, err := reg.Get(p.Persona); err != nil {
			return nil, err
		}
		tracing.SetAttributes(ctx,
			tracing.AttrPersona.String(p.Persona),
			tracing.AttrAlpha.Float64(p.Alpha),
		)
	}

	candidates, err := s.retrieve(ctx, p)
	if err != nil {
		return nil, err
	}
	tracing.SetAttributes(ctx, tracing.AttrCandidates.Int(len(candidates)))

	_, endRerank := tracing.StartSpan(ctx, "rerank")
	result, err := s.reranker.RerankWith(reg, candidates, ranking.Options{
		K:         p.K,
		PersonaID: p.Persona,
		Alpha:     p.Alpha,
	})
	endRerank(err)
	if err != nil {
		return nil, err
	}

	resp, err = s.buildResponse(p, result)
	if err != nil {
		return nil, err
	}
	tracing.SetAttributes(ctx, tracing.AttrResults.Int(resp.NumResults))

	slog.DebugContext(ctx, "search completed",
		"method", p.Method,
		"persona", p.Persona,
		"candidates", len(candidates),
		"results", resp.NumResults,
	)
	return resp, nil
}

func (s *Service) retrieve(ctx context.Context, p Params) ([]ranking.RawCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()

	pool := max(s.cfg.CandidatePool, p.K)
	candidates, err := s.retriever.Retrieve(ctx, p.Query, p.Method, pool)
	if err != nil {
		if !errors.Is(err, retrieval.ErrRetrieval) {
			err = fmt.Errorf("%w: %w", retrieval.ErrRetrieval, err)
		}
		return nil, err
	}
	return candidates, nil
}

func (s *Service) buildResponse(p Params, result *ranking.Result) (*Response, error) {
	resp := &Response{
		Query:   p.Query,
		Method:  p.Method,
		Results: make([]Result, 0, len(result.Candidates)),
	}
	if result.Persona != nil {
		id, alpha := result.Persona.ID, p.Alpha
		resp.Persona = &id
		resp.Alpha = &alpha
	}

	for i, c := range result.Candidates {
		data := c.Attributes
		if data == nil {
			data = map[string]any{}
		}
		r := Result{
			Rank:          i + 1,
			ProviderID:    c.ProviderID,
			ProviderName:  textOr(data, "provider_name", unknownValue),
			Specialty:     textOr(data, "specialty_readable", unknownValue),
			CombinedScore: c.CombinedScore,
			BaselineScore: c.BaselineScore,
			PersonaScore:  c.PersonaScore,
			ProviderData:  data,
		}
		if p.IncludeFeatures {
			r.Features = c.Features.Map()
		}
		if p.IncludeExplanation && result.Persona != nil {
			contribs, err := ranking.Explain(c, result.Persona, s.cfg.ExplainTopN)
			if err != nil {
				return nil, fmt.Errorf("explain %s: %w", c.ProviderID, err)
			}
			r.Explanation = contribs
		}
		resp.Results = append(resp.Results, r)
	}
	resp.NumResults = len(resp.Results)
	return resp, nil
}

// KnownPersonas returns the ids in the active persona table, for error
// responses that list the valid choices.
func (s *Service) KnownPersonas() []string {
	return s.personas.Current().IDs()
}

// Persona looks up a profile in the active table.
func (s *Service) Persona(id string) (*persona.Profile, error) {
	return s.personas.Current().Get(id)
}

func textOr(attrs map[string]any, key, fallback string) string {
	if s, ok := attrs[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
