// Package ai defines the text-generation provider contract used by the
// drafting workflow, plus the structured-extraction helpers that turn
// loosely-formatted provider output into usable context data.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TextGenerator is the capability consumed by the workflow engine.
//
// Implementations:
// - gemini.Provider: Google Gemini generateContent over HTTP
// - mock.Provider: configurable fake for tests and development
type TextGenerator interface {
	// Generate sends a prompt to the provider and returns the raw text of
	// its response. No retry policy is promised beyond what the
	// implementation itself performs; callers decide whether to retry
	// based on IsRetryable.
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderConfig contains common configuration for text generation providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for provider operations
var (
	// ERateLimit indicates the API rate limit has been exceeded
	ERateLimit = errors.New("generation provider rate limit exceeded")

	// ETimeout indicates the request timed out
	ETimeout = errors.New("generation request timed out")

	// EUnavailable indicates the provider is temporarily unavailable
	EUnavailable = errors.New("generation provider temporarily unavailable")

	// EUnauthorized indicates invalid API credentials
	EUnauthorized = errors.New("generation provider authentication failed")

	// ERejected indicates the provider refused the prompt outright
	ERejected = errors.New("generation request rejected by provider")
)

// IsRetryable returns true if the error is transient and the same request
// may be retried without side effects.
func IsRetryable(err error) bool {
	return errors.Is(err, ERateLimit) ||
		errors.Is(err, ETimeout) ||
		errors.Is(err, EUnavailable)
}

// WrapError wraps an error with context about the generation operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// =============================================================================
// Structured extraction
// =============================================================================

// ContextPayload is the JSON object the context prompt asks the provider to
// return. The schema is advisory; malformed responses fall back to derived
// values rather than failing.
type ContextPayload struct {
	Purpose           string   `json:"purpose"`
	SubjectSuggestion string   `json:"subject_suggestion"`
	Constraints       []string `json:"constraints"`
}

const (
	// fallbackSubjectPrefix prefixes the derived subject used when the
	// provider response carries no parseable JSON.
	fallbackSubjectPrefix = "Regarding: "

	// fallbackSubjectLimit is how much of the purpose the derived subject keeps.
	fallbackSubjectLimit = 50
)

// FallbackSubject derives a deterministic subject line from the purpose.
// Truncation counts runes so a multibyte purpose never yields invalid UTF-8.
func FallbackSubject(purpose string) string {
	truncated := purpose
	if runes := []rune(truncated); len(runes) > fallbackSubjectLimit {
		truncated = string(runes[:fallbackSubjectLimit])
	}
	return fallbackSubjectPrefix + truncated + "..."
}

// ExtractContext parses a provider response expected to contain a JSON
// object, possibly fenced in a code block or surrounded by prose.
//
// Extraction order:
//  1. content strictly between the first ```json fence and the next ```
//  2. the span from the first '{' to the last '}'
//  3. the entire response
//
// On parse failure it never returns an error: the workflow must not block on
// a malformed generation response. Instead it returns a payload carrying the
// raw purpose and a derived subject.
func ExtractContext(response, purpose string) ContextPayload {
	payload := extractJSONPayload(response)

	var parsed ContextPayload
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil && !parsed.empty() {
		if parsed.SubjectSuggestion == "" {
			parsed.SubjectSuggestion = FallbackSubject(purpose)
		}
		if parsed.Purpose == "" {
			parsed.Purpose = purpose
		}
		return parsed
	}

	return ContextPayload{
		Purpose:           purpose,
		SubjectSuggestion: FallbackSubject(purpose),
	}
}

// extractJSONPayload applies the fence/brace/whole-response ladder.
func extractJSONPayload(response string) string {
	if idx := strings.Index(response, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(response[start:], "```"); end >= 0 {
			return strings.TrimSpace(response[start : start+end])
		}
	} else if idx := strings.Index(response, "```"); idx >= 0 {
		start := idx + len("```")
		if end := strings.Index(response[start:], "```"); end >= 0 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first >= 0 && last > first {
		return response[first : last+1]
	}

	return response
}

// empty reports whether no field of the payload was populated by the parse.
func (p ContextPayload) empty() bool {
	return p.Purpose == "" && p.SubjectSuggestion == "" && len(p.Constraints) == 0
}
