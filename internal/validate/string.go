// Package validate provides input validation for free-text search queries
// and identifiers accepted by the provider search API.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrInvalidUTF8       = errors.New("string is not valid UTF-8")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in characters (0 = no minimum)
	MaxLength      int            // Maximum length in characters (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex the whole string must match
	RejectControl  bool           // Reject control characters other than tab, CR and LF
	CollapseSpace  bool           // Replace runs of whitespace with a single space
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}

	// Optionally trim whitespace
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if constraints.CollapseSpace {
		s = strings.Join(strings.Fields(s), " ")
	}

	// Check if empty
	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Get actual character count (not byte count)
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.RejectControl {
		for _, r := range s {
			if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
				return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
			}
		}
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// MaxQueryLength bounds a search query in characters.
const MaxQueryLength = 1000

// Query validates a free-text search query:
// - required after trimming
// - at most MaxQueryLength characters
// - no control characters; whitespace runs collapse to one space
func Query(q string) (string, error) {
	return String(q, StringConstraints{
		MaxLength:     MaxQueryLength,
		RejectControl: true,
		CollapseSpace: true,
		TrimSpace:     true,
	})
}

// MaxIdentifierLength bounds persona ids.
const MaxIdentifierLength = 64

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Identifier validates a persona id: lowercase letters, digits, dash and
// underscore, starting with a letter or digit, at most 64 characters.
// Empty is allowed and means "no persona".
func Identifier(id string) (string, error) {
	return String(id, StringConstraints{
		MaxLength:      MaxIdentifierLength,
		AllowedPattern: identifierPattern,
		AllowEmpty:     true,
		TrimSpace:      true,
	})
}
