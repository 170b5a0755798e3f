package util

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUUID is returned when a value is not a UUID v4.
	ErrInvalidUUID = errors.New("invalid uuid v4")
	// ErrInvalidMobile is returned when a mobile number is not 7-15 digits with
	// an optional leading '+'.
	ErrInvalidMobile = errors.New("invalid mobile number")
)

const (
	minMobileDigits = 7
	maxMobileDigits = 15
)

// ParseUUIDv4 parses a UUID string and rejects any version other than 4.
func ParseUUIDv4(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.UUID{}, fmt.Errorf("%w: value is empty", ErrInvalidUUID)
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	if u.Version() != 4 {
		return uuid.UUID{}, fmt.Errorf("%w: got version %d", ErrInvalidUUID, u.Version())
	}
	return u, nil
}

// NormalizeMobile returns the digits of a mobile number in the form the
// gateway expects: country code followed by the subscriber number, no '+'.
func NormalizeMobile(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	digits := strings.TrimPrefix(trimmed, "+")
	if digits == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidMobile)
	}

	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidMobile, trimmed)
		}
	}
	if len(digits) < minMobileDigits || len(digits) > maxMobileDigits {
		return "", fmt.Errorf("%w: %q must have %d-%d digits", ErrInvalidMobile, trimmed, minMobileDigits, maxMobileDigits)
	}
	return digits, nil
}

// NormalizeMobiles normalizes each number and enforces the count bounds. A
// bound of zero disables that check.
func NormalizeMobiles(values []string, min, max int) ([]string, error) {
	count := len(values)
	if min > 0 && count < min {
		return nil, fmt.Errorf("expected at least %d mobile number(s); got %d", min, count)
	}
	if max > 0 && count > max {
		return nil, fmt.Errorf("expected at most %d mobile number(s); got %d", max, count)
	}
	if count == 0 {
		return nil, nil
	}

	out := make([]string, 0, count)
	for idx, value := range values {
		normalized, err := NormalizeMobile(value)
		if err != nil {
			return nil, fmt.Errorf("to[%d]: %w", idx, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

// ValidateMetadata returns a trimmed copy of meta after checking entry count and
// key/value lengths.
func ValidateMetadata(meta map[string]string, maxEntries, maxKeyLen, maxValueLen int) (map[string]string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	if maxEntries > 0 && len(meta) > maxEntries {
		return nil, fmt.Errorf("metadata has %d entries, max %d", len(meta), maxEntries)
	}

	out := make(map[string]string, len(meta))
	for rawKey, rawValue := range meta {
		key := strings.TrimSpace(rawKey)
		if key == "" {
			return nil, errors.New("metadata key cannot be empty")
		}
		value := strings.TrimSpace(rawValue)
		if err := EnsureMaxRunes("metadata key "+key, key, maxKeyLen); err != nil {
			return nil, err
		}
		if err := EnsureMaxRunes("metadata value for "+key, value, maxValueLen); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

// EnsureMaxBytes checks that b is at most max bytes. Non-positive max disables
// the check.
func EnsureMaxBytes(field string, b []byte, max int) error {
	if max > 0 && len(b) > max {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", field, max)
	}
	return nil
}

// EnsureMaxRunes checks that value is at most max characters long.
func EnsureMaxRunes(field, value string, max int) error {
	if max > 0 && utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, max)
	}
	return nil
}
