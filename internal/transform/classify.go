package transform

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// Kind labels a transformation failure for logs and metrics. It is never
// shown to the user and never drives a retry.
type Kind string

const (
	KindInvalidKey Kind = "invalid_key"
	KindBadRequest Kind = "bad_request"
	KindQuota      Kind = "quota"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindCanceled   Kind = "canceled"
	KindBlocked    Kind = "blocked"
	KindNoImage    Kind = "no_image"
	KindUnknown    Kind = "unknown"
)

// Transient reports whether the failure is likely to clear on its own.
func (k Kind) Transient() bool {
	switch k {
	case KindQuota, KindServer, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// Classify analyzes an error returned by a Service.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrNoImage):
		return KindNoImage
	}

	// The SDK returns APIError by value; accept a pointer too.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyCode(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyCode(apiErrPtr.Code)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return KindInvalidKey

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		return KindQuota

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return KindNetwork
	}

	return KindUnknown
}

func classifyCode(code int) Kind {
	switch {
	case code == 400:
		return KindBadRequest
	case code == 401 || code == 403:
		return KindInvalidKey
	case code == 429:
		return KindQuota
	case code >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
