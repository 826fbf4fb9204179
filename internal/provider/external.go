package provider

import (
	"context"
	"strings"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
)

// ExternalProvider wraps analysis text produced out of band, for the
// two-phase protocol: the caller runs the prompt in their own AI session
// and hands the answer back. Invoke just parses the supplied text.
type ExternalProvider struct {
	name     string
	analysis string
}

// NewExternalProvider creates a provider around externally supplied
// analysis text.
func NewExternalProvider(name, analysis string) *ExternalProvider {
	if name == "" {
		name = "external"
	}
	return &ExternalProvider{name: name, analysis: analysis}
}

// Identity returns the provider name.
func (p *ExternalProvider) Identity() string {
	return p.name
}

// IsAvailable reports whether analysis text was supplied.
func (p *ExternalProvider) IsAvailable() bool {
	return strings.TrimSpace(p.analysis) != ""
}

// Invoke parses the externally supplied analysis into a perspective.
func (p *ExternalProvider) Invoke(ctx context.Context, req debate.Request, role Role) (debate.Perspective, error) {
	if !p.IsAvailable() {
		return debate.Perspective{}, perrors.NewProviderError(
			"no analysis supplied", perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role)).WithRetryable(false)
	}
	return ParsePerspective(p.name, p.analysis, 0), nil
}

var _ Provider = (*ExternalProvider)(nil)
var _ Provider = (*CLIProvider)(nil)
var _ Provider = (*BridgeProvider)(nil)
