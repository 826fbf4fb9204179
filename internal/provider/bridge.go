package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
)

// DefaultBridgeTimeout bounds a single bridge invocation.
const DefaultBridgeTimeout = 90 * time.Second

// healthProbeTimeout bounds the availability check.
const healthProbeTimeout = 2 * time.Second

// BridgeProvider talks to a local editor bridge over HTTP. The bridge
// exposes GET /health for availability and POST /invoke for completions.
type BridgeProvider struct {
	name     string
	endpoint string
	model    string
	client   *http.Client
}

type bridgeRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type bridgeResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewBridgeProvider creates a bridge provider against the given endpoint,
// e.g. http://127.0.0.1:8765.
func NewBridgeProvider(name, endpoint, model string, timeout time.Duration) *BridgeProvider {
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	return &BridgeProvider{
		name:     name,
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// Identity returns the provider name.
func (p *BridgeProvider) Identity() string {
	return p.name
}

// IsAvailable probes the bridge health endpoint.
func (p *BridgeProvider) IsAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Invoke posts the prompt to the bridge and parses the response text.
func (p *BridgeProvider) Invoke(ctx context.Context, req debate.Request, role Role) (debate.Perspective, error) {
	prompt := BuildPrompt(req, role)
	start := time.Now()

	body, err := json.Marshal(bridgeRequest{Prompt: prompt, Model: p.model})
	if err != nil {
		return debate.Perspective{}, perrors.NewProviderError(
			"failed to encode request", err).WithProvider(p.name).WithRole(string(role)).
			WithRetryable(false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/invoke", bytes.NewReader(body))
	if err != nil {
		return debate.Perspective{}, perrors.NewProviderError(
			"failed to build request", err).WithProvider(p.name).WithRole(string(role)).
			WithRetryable(false)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return debate.Perspective{}, perrors.NewProviderError(
			"bridge not responding", perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return debate.Perspective{}, perrors.NewProviderError(
			"bridge returned "+resp.Status, perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}

	var out bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return debate.Perspective{}, perrors.NewProviderError(
			"unreadable bridge response", perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}
	if out.Error != "" {
		return debate.Perspective{}, perrors.NewProviderError(
			"bridge error: "+out.Error, perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}
	if out.Response == "" {
		return debate.Perspective{}, perrors.NewProviderError(
			"empty response", perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}

	return ParsePerspective(p.name, out.Response, time.Since(start)), nil
}
