package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse indicates the provider answered with no usable text.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	// ErrExtractionFailed indicates no JSON object could be located in, or
	// parsed from, a provider response.
	ErrExtractionFailed = errors.New("no JSON object could be extracted from response")
)

// ErrRateLimit indicates the provider returned a rate limit or quota error (429).
type ErrRateLimit struct {
	Err error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable or
// rejected the request.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// statusLabel classifies a Generate error for metrics.
func statusLabel(err error) string {
	var rl *ErrRateLimit
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
