package mock

import (
	"context"
	"log/slog"

	"github.com/inkwell-hq/inkwell/internal/ai"
)

// Provider is a mock text generator for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing. Responses are consumed in order;
	// when exhausted the last one repeats.
	Responses []string
	Err       error

	// Call tracking for testing
	GenerateCalls int
	Prompts       []string
}

// New creates a new mock text generation provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Generate returns the next configured response, or a canned one.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	p.GenerateCalls++
	p.Prompts = append(p.Prompts, prompt)

	if p.Err != nil {
		return "", p.Err
	}

	if len(p.Responses) > 0 {
		idx := p.GenerateCalls - 1
		if idx >= len(p.Responses) {
			idx = len(p.Responses) - 1
		}
		return p.Responses[idx], nil
	}

	// Default canned response: a valid context payload so the happy path
	// works out of the box in development.
	return `{
  "purpose": "Follow up with the team about next steps.",
  "subject_suggestion": "Next steps for the project",
  "constraints": ["keep it short"]
}`, nil
}

// Reset clears call counters and configured responses for testing
func (p *Provider) Reset() {
	p.GenerateCalls = 0
	p.Prompts = nil
	p.Responses = nil
	p.Err = nil
}

// Compile-time interface check
var _ ai.TextGenerator = (*Provider)(nil)
