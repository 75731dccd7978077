package deviceflow

import "strings"

// Category is the classification of a single poll failure
type Category int

const (
	CategoryAuthorizationPending Category = iota
	CategorySlowDown
	CategoryAccessDenied
	CategoryExpired
	CategoryInvalidCode
	CategoryNetworkError
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryAuthorizationPending:
		return "authorization_pending"
	case CategorySlowDown:
		return "slow_down"
	case CategoryAccessDenied:
		return "access_denied"
	case CategoryExpired:
		return "expired"
	case CategoryInvalidCode:
		return "invalid_code"
	case CategoryNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Checked in order, first match wins
var categoryMarkers = []struct {
	category Category
	markers  []string
}{
	{CategoryAuthorizationPending, []string{"authorization_pending"}},
	{CategorySlowDown, []string{"slow_down"}},
	{CategoryAccessDenied, []string{"access_denied"}},
	{CategoryExpired, []string{"expired_token", "expired_device_code", "token_expired"}},
	{CategoryInvalidCode, []string{"bad_verification_code", "incorrect_device_code"}},
	{CategoryNetworkError, []string{
		"unable to resolve",
		"no address",
		"failed to connect",
		"connection refused",
		"network is unreachable",
		"timeout",
		"timed out",
		"connection reset",
		"broken pipe",
		"host unreachable",
		"network error",
	}},
}

// Classify maps a raw provider or transport error message to a Category
func Classify(message string) Category {
	msg := strings.ToLower(message)
	for _, entry := range categoryMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(msg, marker) {
				return entry.category
			}
		}
	}
	return CategoryUnknown
}
