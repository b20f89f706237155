package retrieval

import (
	"strings"

	"github.com/onnwee/provider-search/internal/features"
)

// Attribute names used to build the searchable text. The long names are the
// NPPES column headers carried through by the data pipeline.
var (
	nameKeys       = []string{"provider_name"}
	credentialKeys = []string{"credential", "Provider Credential Text"}
	specialtyKeys  = []string{"specialty_readable", "specialty"}
	cityKeys       = []string{"city", "Provider Business Practice Location Address City Name"}
	stateKeys      = []string{"state", "Provider Business Practice Location Address State Name"}
)

// featureWords are appended when the boolean attribute is true, so queries
// like "spanish telehealth pediatrician" match on capabilities.
var featureWords = []struct {
	key  string
	word string
}{
	{"telehealth_available", "telehealth"},
	{"speaks_spanish", "Spanish"},
	{"speaks_chinese", "Chinese"},
	{"evening_hours", "evening hours"},
	{"weekend_hours", "weekend hours"},
	{"accepting_new_patients", "accepting new patients"},
	{"accepts_medicare", "Medicare"},
	{"accepts_medicaid", "Medicaid"},
}

// SearchText builds the indexed text for a provider record.
// A precomputed "search_text" attribute wins; otherwise the text joins name,
// credential, specialty, city and state with the capability words.
func SearchText(attrs map[string]any) string {
	if s, ok := attrs["search_text"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}

	parts := make([]string, 0, 8)
	for _, keys := range [][]string{nameKeys, credentialKeys, specialtyKeys, cityKeys, stateKeys} {
		if v := firstString(attrs, keys); v != "" {
			parts = append(parts, v)
		}
	}
	if s, ok := attrs["specialty_search_text"].(string); ok && s != "" {
		parts = append(parts, s)
	}

	var words []string
	for _, fw := range featureWords {
		if features.Truthy(attrs[fw.key]) {
			words = append(words, fw.word)
		}
	}
	if len(words) > 0 {
		parts = append(parts, strings.Join(words, " "))
	}

	return strings.Join(parts, " | ")
}

func firstString(attrs map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := attrs[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
