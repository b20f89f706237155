package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/onnwee/provider-search/internal/features"
	"github.com/onnwee/provider-search/internal/validate"
)

// Config is the persisted persona shape. Weights are grouped by category
// and flattened into a single feature->weight map at load time.
type Config struct {
	ID             string                                `json:"id,omitempty"`
	Name           string                                `json:"name"`
	Description    string                                `json:"description"`
	PriorityOrder  []string                              `json:"priority_order"`
	FeatureWeights map[string]map[string]json.RawMessage `json:"feature_weights"`

	// Source names where the config came from (file path), for error messages.
	Source string `json:"-"`
}

// Registry is an immutable table of validated profiles.
// Safe for concurrent reads without locking.
type Registry struct {
	profiles map[string]*Profile
	ids      []string
}

// NewRegistry validates every config and builds a registry.
// Any invalid config fails the whole load; the returned error wraps
// ErrInvalidConfig and lists every violation found.
func NewRegistry(configs []Config) (*Registry, error) {
	reg := &Registry{profiles: make(map[string]*Profile, len(configs))}
	var errs []error

	for _, cfg := range configs {
		profile, err := buildProfile(cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := reg.profiles[profile.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate persona id %q", sourceName(cfg), profile.ID))
			continue
		}
		reg.profiles[profile.ID] = profile
		reg.ids = append(reg.ids, profile.ID)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	sort.Strings(reg.ids)
	return reg, nil
}

func buildProfile(cfg Config) (*Profile, error) {
	src := sourceName(cfg)
	var problems []string

	id := cfg.ID
	if id == "" {
		problems = append(problems, "id is required")
	} else if v, err := validate.Identifier(id); err != nil || v != id {
		problems = append(problems, fmt.Sprintf("id %q must be lowercase letters, digits, dash or underscore", id))
	}

	priority := make([]Category, 0, len(cfg.PriorityOrder))
	seenCategory := make(map[Category]bool)
	for _, entry := range cfg.PriorityOrder {
		c := Category(entry)
		if !c.Valid() {
			problems = append(problems, fmt.Sprintf("priority_order: unknown category %q", entry))
			continue
		}
		if seenCategory[c] {
			problems = append(problems, fmt.Sprintf("priority_order: duplicate category %q", entry))
			continue
		}
		seenCategory[c] = true
		priority = append(priority, c)
	}

	weights := make([]Weight, 0)
	seenKey := make(map[features.Key]string)
	// Iterate groups in sorted order so error messages are stable.
	groups := make([]string, 0, len(cfg.FeatureWeights))
	for g := range cfg.FeatureWeights {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		if !Category(group).Valid() {
			problems = append(problems, fmt.Sprintf("feature_weights: unknown category %q", group))
			continue
		}
		names := make([]string, 0, len(cfg.FeatureWeights[group]))
		for name := range cfg.FeatureWeights[group] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			key, ok := features.ParseKey(name)
			if !ok {
				problems = append(problems, fmt.Sprintf("feature_weights.%s: unknown feature %q", group, name))
				continue
			}
			value, err := parseWeight(cfg.FeatureWeights[group][name])
			if err != nil {
				problems = append(problems, fmt.Sprintf("feature_weights.%s.%s: %v", group, name, err))
				continue
			}
			if prev, dup := seenKey[key]; dup {
				problems = append(problems, fmt.Sprintf("feature_weights: feature %q listed under both %q and %q", name, prev, group))
				continue
			}
			seenKey[key] = group
			weights = append(weights, Weight{Key: key, Value: value})
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %s", src, strings.Join(problems, "; "))
	}

	sort.Slice(weights, func(i, j int) bool { return weights[i].Key < weights[j].Key })

	return &Profile{
		ID:            id,
		Name:          cfg.Name,
		Description:   cfg.Description,
		PriorityOrder: priority,
		weights:       weights,
	}, nil
}

func parseWeight(raw json.RawMessage) (float64, error) {
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("weight must be a number, got %s", string(raw))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("weight must be finite")
	}
	return value, nil
}

func sourceName(cfg Config) string {
	if cfg.Source != "" {
		return cfg.Source
	}
	if cfg.ID != "" {
		return "persona " + cfg.ID
	}
	return "persona"
}

// Get returns the profile with the given id.
// The returned error wraps ErrNotFound when the id is unknown.
func (r *Registry) Get(id string) (*Profile, error) {
	if r != nil {
		if p, ok := r.profiles[id]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// List returns all profiles sorted by id.
func (r *Registry) List() []*Profile {
	if r == nil {
		return nil
	}
	out := make([]*Profile, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.profiles[id])
	}
	return out
}

// IDs returns the persona ids sorted.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
