// Package features turns raw provider attribute records into normalized
// feature vectors over a closed, enumerated key set.
package features

// Key identifies one normalized provider feature.
// The set is closed: persona weights and explanations may only reference
// keys declared here.
type Key int

// Feature keys, grouped by the persona category they usually serve.
const (
	// Convenience
	DistanceMiles Key = iota
	AvailabilityScore
	WaitDays
	Appointments7Days
	Appointments14Days
	Appointments30Days
	EveningHours
	WeekendHours
	TelehealthAvailable

	// Quality
	AverageRating
	NumReviews
	YearsExperience
	HasRating

	// Cost
	NetworkBreadth
	InNetworkBCBS
	InNetworkUHC
	AcceptsMedicare
	AcceptsMedicaid

	// Demographic
	SpeaksSpanish
	SpeaksChinese
	AcceptingNewPatients

	// NumKeys is the size of the key set. Not a feature.
	NumKeys
)

// Kind describes how a raw attribute is interpreted.
type Kind int

const (
	// Numeric features default to 0.5 when the source value is missing.
	Numeric Kind = iota
	// Boolean features default to 0.0 when the source value is missing.
	Boolean
)

type keyInfo struct {
	name string
	kind Kind
}

var keyTable = [NumKeys]keyInfo{
	DistanceMiles:        {"distance_miles", Numeric},
	AvailabilityScore:    {"availability_score", Numeric},
	WaitDays:             {"wait_days", Numeric},
	Appointments7Days:    {"appointments_available_7days", Numeric},
	Appointments14Days:   {"appointments_available_14days", Numeric},
	Appointments30Days:   {"appointments_available_30days", Numeric},
	EveningHours:         {"evening_hours", Boolean},
	WeekendHours:         {"weekend_hours", Boolean},
	TelehealthAvailable:  {"telehealth_available", Boolean},
	AverageRating:        {"average_rating", Numeric},
	NumReviews:           {"num_reviews", Numeric},
	YearsExperience:      {"years_experience", Numeric},
	HasRating:            {"has_rating", Boolean},
	NetworkBreadth:       {"network_breadth", Numeric},
	InNetworkBCBS:        {"in_network_bcbs", Boolean},
	InNetworkUHC:         {"in_network_uhc", Boolean},
	AcceptsMedicare:      {"accepts_medicare", Boolean},
	AcceptsMedicaid:      {"accepts_medicaid", Boolean},
	SpeaksSpanish:        {"speaks_spanish", Boolean},
	SpeaksChinese:        {"speaks_chinese", Boolean},
	AcceptingNewPatients: {"accepting_new_patients", Boolean},
}

var keysByName = func() map[string]Key {
	m := make(map[string]Key, NumKeys)
	for k := Key(0); k < NumKeys; k++ {
		m[keyTable[k].name] = k
	}
	return m
}()

// String returns the wire name of the key (e.g. "distance_miles").
func (k Key) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return keyTable[k].name
}

// Kind reports whether the key is numeric or boolean.
func (k Key) Kind() Kind {
	return keyTable[k].kind
}

// Valid reports whether k is a member of the closed key set.
func (k Key) Valid() bool {
	return k >= 0 && k < NumKeys
}

// ParseKey resolves a wire name to its Key.
func ParseKey(name string) (Key, bool) {
	k, ok := keysByName[name]
	return k, ok
}

// Keys returns every feature key in declaration order.
func Keys() []Key {
	keys := make([]Key, NumKeys)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}
