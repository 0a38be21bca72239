package strutils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrNoIdentifiers = errors.New("no identifiers")

// Accepts mnemonics like B3AT_HUMAN and accessions like P02730 or P02730-2
func IdentifierIsValid(identifier string) bool {
	if identifier == "" || len(identifier) > 64 {
		return false
	}

	for _, char := range identifier {
		if char > unicode.MaxASCII {
			return false
		}
		if unicode.IsLetter(char) || unicode.IsDigit(char) {
			continue
		}
		if strings.ContainsRune("_-.", char) {
			continue
		}
		return false
	}
	return true
}

// Trims whitespace, drops empty entries and validates the rest.
//
// The returned slice keeps the order of the input.
func NormalizeIdentifiers(identifiers []string) ([]string, error) {
	normalized := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		trimmed := strings.TrimSpace(identifier)
		if trimmed == "" {
			continue
		}
		if !IdentifierIsValid(trimmed) {
			return nil, fmt.Errorf("identifier %.70q contains invalid characters", trimmed)
		}
		normalized = append(normalized, trimmed)
	}

	if len(normalized) == 0 {
		return nil, ErrNoIdentifiers
	}

	return normalized, nil
}

// Splits a comma separated list like the one sent in the ids form field
func SplitIdentifiers(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

func JoinIdentifiers(identifiers []string) string {
	return strings.Join(identifiers, ",")
}
