package provider

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error taxonomy keys consumed uniformly by every adapter's failure path.
const (
	ErrKindTransport = "transport"
	ErrKindAuth      = "auth"
	ErrKindRateLimit = "rate_limit"
	ErrKindMalformed = "malformed"
	ErrKindUnknown   = "unknown"
)

// Classification pairs a stable taxonomy key with a suppression hint.
// Suppressed failures are expected states (a provider's natural signed-out
// condition, a cancelled call) that orchestrators should not surface as
// user-facing errors.
type Classification struct {
	Type       string
	Suppressed bool
}

// Classify maps a raw failure from any provider kind into the shared
// taxonomy. Pure function, no I/O.
func Classify(providerKind string, err error) Classification {
	if err == nil {
		return Classification{Type: ErrKindUnknown}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{Type: ErrKindTransport, Suppressed: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{Type: ErrKindTransport}
	}
	return classifyMessage(providerKind, err.Error())
}

// ClassifyHTTP maps a non-2xx status plus response body to the taxonomy.
// Ambiguous statuses fall back to message hints, the same refinement order
// adapters apply elsewhere.
func ClassifyHTTP(providerKind string, status int, message string) Classification {
	switch {
	case status == 401 || status == 403:
		cls := Classification{Type: ErrKindAuth}
		cls.Suppressed = signedOutHint(message)
		return cls
	case status == 429:
		return Classification{Type: ErrKindRateLimit}
	case status == 408 || status >= 500:
		return Classification{Type: ErrKindTransport}
	case status == 400 || status == 422:
		return Classification{Type: ErrKindMalformed}
	default:
		return classifyMessage(providerKind, message)
	}
}

func classifyMessage(providerKind, message string) Classification {
	_ = providerKind // taxonomy values are shared; kind is kept for future per-kind hints
	lower := strings.ToLower(message)
	switch {
	case signedOutHint(lower):
		return Classification{Type: ErrKindAuth, Suppressed: true}
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid key") || strings.Contains(lower, "api key"):
		return Classification{Type: ErrKindAuth}
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "overloaded"):
		return Classification{Type: ErrKindRateLimit}
	case strings.Contains(lower, "unexpected end of json") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "malformed"):
		return Classification{Type: ErrKindMalformed}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connection") || strings.Contains(lower, "refused") || strings.Contains(lower, "reset"):
		return Classification{Type: ErrKindTransport}
	default:
		return Classification{Type: ErrKindUnknown}
	}
}

func signedOutHint(lower string) bool {
	lower = strings.ToLower(lower)
	return strings.Contains(lower, "not logged in") ||
		strings.Contains(lower, "not signed in") ||
		strings.Contains(lower, "session expired") ||
		strings.Contains(lower, "login required")
}
