// Package validation provides sanity checks for provider-issued device
// authorization parameters per RFC 8628
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validation settings
const (
	MinLength = 4  // Minimum user code length excluding separators
	MaxLength = 16 // Maximum user code length excluding separators
)

// User codes are groups of letters and digits joined by single hyphens
var codeRegex = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// ValidationError represents a rejected device authorization parameter
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateUserCode checks that a user code is something a person can type
func ValidateUserCode(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return &ValidationError{Field: "user_code", Message: "must not be empty"}
	}

	baseCode := NormalizeCode(code)
	if len(baseCode) < MinLength || len(baseCode) > MaxLength {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: fmt.Sprintf("length must be between %d and %d characters", MinLength, MaxLength),
		}
	}

	if !codeRegex.MatchString(code) {
		return &ValidationError{
			Field:   "user_code",
			Value:   code,
			Message: "only letters, digits and single hyphens are allowed",
		}
	}

	return nil
}

// ValidateVerificationURI checks that uri is an absolute http(s) URL
func ValidateVerificationURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return &ValidationError{Field: "verification_uri", Message: "must not be empty"}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return &ValidationError{Field: "verification_uri", Value: uri, Message: err.Error()}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Field: "verification_uri", Value: uri, Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "verification_uri", Value: uri, Message: "host is required"}
	}
	return nil
}

// NormalizeCode converts a user code to canonical format
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}

// FormatCode converts a user code to display format, splitting
// separator-less codes into two halves
func FormatCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if strings.Contains(code, "-") || len(code) < 2*MinLength {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + "-" + code[mid:]
}
