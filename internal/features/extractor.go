package features

import (
	"encoding/json"
	"math"
	"strings"
)

// Default values substituted for missing source attributes.
const (
	DefaultNumeric = 0.5
	DefaultBoolean = 0.0
)

// Limits holds the caps and ceilings used by the normalization rules.
type Limits struct {
	MaxDistanceMiles   float64 // distance at or beyond this scores 0 (default: 100)
	MaxWaitDays        float64 // wait at or beyond this scores 0 (default: 30)
	MaxExperienceYears float64 // experience at or beyond this scores 1 (default: 50)
	ReviewCeiling      float64 // review count mapped to 1 on the log scale (default: 1000)
	MaxAppointments    float64 // open appointments at or beyond this score 1 (default: 100)
}

// DefaultLimits returns the standard normalization limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDistanceMiles:   100,
		MaxWaitDays:        30,
		MaxExperienceYears: 50,
		ReviewCeiling:      1000,
		MaxAppointments:    100,
	}
}

// withDefaults replaces non-positive limits with the defaults so a zero
// Limits value can never cause a division by zero.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if !(l.MaxDistanceMiles > 0) {
		l.MaxDistanceMiles = d.MaxDistanceMiles
	}
	if !(l.MaxWaitDays > 0) {
		l.MaxWaitDays = d.MaxWaitDays
	}
	if !(l.MaxExperienceYears > 0) {
		l.MaxExperienceYears = d.MaxExperienceYears
	}
	if !(l.ReviewCeiling > 0) {
		l.ReviewCeiling = d.ReviewCeiling
	}
	if !(l.MaxAppointments > 0) {
		l.MaxAppointments = d.MaxAppointments
	}
	return l
}

// Vector is a normalized feature vector indexed by Key.
// Every element lies in [0, 1].
type Vector [NumKeys]float64

// Get returns the value for key k.
func (v *Vector) Get(k Key) float64 {
	return v[k]
}

// Map renders the vector keyed by wire name, for JSON responses.
func (v *Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumKeys)
	for k := Key(0); k < NumKeys; k++ {
		m[k.String()] = v[k]
	}
	return m
}

// Extractor normalizes raw provider attributes.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	limits Limits
}

// NewExtractor creates an Extractor with the given limits.
func NewExtractor(limits Limits) *Extractor {
	return &Extractor{limits: limits.withDefaults()}
}

// Extract maps a raw attribute record to a feature vector.
// It never fails: missing, non-numeric, NaN and infinite values resolve to
// the per-kind default (0.5 numeric, 0.0 boolean).
func (e *Extractor) Extract(attrs map[string]any) Vector {
	var v Vector
	for k := Key(0); k < NumKeys; k++ {
		v[k] = clamp01(e.normalize(k, attrs[k.String()]))
	}
	return v
}

func (e *Extractor) normalize(k Key, raw any) float64 {
	if k.Kind() == Boolean {
		b, ok := toBool(raw)
		if !ok {
			return DefaultBoolean
		}
		if b {
			return 1.0
		}
		return 0.0
	}

	value, ok := toFloat(raw)
	if !ok {
		return DefaultNumeric
	}

	switch k {
	case DistanceMiles:
		return invertCapped(value, e.limits.MaxDistanceMiles)
	case WaitDays:
		return invertCapped(value, e.limits.MaxWaitDays)
	case AverageRating:
		return value / 5.0
	case NumReviews:
		if value <= 0 {
			return 0.0
		}
		return math.Log1p(value) / math.Log1p(e.limits.ReviewCeiling)
	case YearsExperience:
		return value / e.limits.MaxExperienceYears
	case Appointments7Days, Appointments14Days, Appointments30Days:
		return value / e.limits.MaxAppointments
	default:
		// availability_score and network_breadth are already fractions.
		return value
	}
}

// invertCapped maps 0 -> 1 and cap (or beyond) -> 0.
func invertCapped(value, limit float64) float64 {
	return 1.0 - math.Min(value, limit)/limit
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// toFloat converts a dynamic attribute to a finite float64.
func toFloat(raw any) (float64, bool) {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toBool converts a dynamic attribute to a boolean.
func toBool(raw any) (bool, bool) {
	switch b := raw.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "1", "on":
			return true, true
		case "false", "no", "n", "0", "off", "":
			return false, true
		}
		return false, false
	}
	if f, ok := toFloat(raw); ok {
		return f != 0, true
	}
	return false, false
}

// Truthy reports whether raw is a recognized true value under the same rules
// Extract applies to boolean features.
func Truthy(raw any) bool {
	b, ok := toBool(raw)
	return ok && b
}
