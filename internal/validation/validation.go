package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultCityMaxLength is the rune limit applied when none is configured.
const DefaultCityMaxLength = 100

var (
	// ErrCityEmpty is returned when the city is empty or whitespace-only.
	ErrCityEmpty = errors.New("city is required")
	// ErrCityTooLong is returned when the city exceeds the configured rune limit.
	ErrCityTooLong = errors.New("city too long")
	// ErrCityInvalidChars is returned when the city contains control characters.
	ErrCityInvalidChars = errors.New("city contains invalid characters")
)

// ValidateCity rejects city values that cannot name a place. It does not normalize:
// the caller passes the original value on unchanged, so case and spacing reach the
// cache key and upstream as given. maxLen <= 0 means DefaultCityMaxLength.
func ValidateCity(city string, maxLen int) error {
	if strings.TrimSpace(city) == "" {
		return ErrCityEmpty
	}
	if maxLen <= 0 {
		maxLen = DefaultCityMaxLength
	}
	if utf8.RuneCountInString(city) > maxLen {
		return ErrCityTooLong
	}
	if !utf8.ValidString(city) {
		return ErrCityInvalidChars
	}
	for _, r := range city {
		if unicode.IsControl(r) {
			return ErrCityInvalidChars
		}
	}
	return nil
}
