package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// Compile-time interface check.
var _ port.RemoteRiskProvider = (*HTTPClient)(nil)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// HTTPClient implements port.RemoteRiskProvider against a JSON risk API.
type HTTPClient struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTLSConfig sets the TLS configuration for outbound calls.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		c.client.Transport = &http.Transport{
			TLSClientConfig:     cfg,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// WithName sets the provider name reported in assessments.
func WithName(name string) Option {
	return func(c *HTTPClient) { c.name = name }
}

// NewHTTPClient creates a remote risk provider client.
func NewHTTPClient(baseURL, apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		name:    "remote",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type assessRequest struct {
	Device  model.DeviceInfo  `json:"device"`
	Context model.RiskContext `json:"context"`
}

type assessResponse struct {
	RiskScore  *float64 `json:"risk_score"`
	RiskLevel  string   `json:"risk_level"`
	Confidence *float64 `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Assess posts the device and context to the provider. timeout bounds the
// whole exchange in addition to ctx.
func (c *HTTPClient) Assess(ctx context.Context, device model.DeviceInfo, rc model.RiskContext, timeout time.Duration) (model.RemoteAssessment, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := json.Marshal(assessRequest{Device: device, Context: rc})
	if err != nil {
		return model.RemoteAssessment{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assess", bytes.NewReader(body))
	if err != nil {
		return model.RemoteAssessment{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.RemoteAssessment{}, fmt.Errorf("%s provider request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.RemoteAssessment{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.RemoteAssessment{}, fmt.Errorf("%s provider error (status %d): %s", c.name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out assessResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.RemoteAssessment{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.RiskScore == nil {
		return model.RemoteAssessment{}, fmt.Errorf("%s provider response has no risk_score", c.name)
	}

	ra := model.RemoteAssessment{
		Provider:  c.name,
		RiskScore: *out.RiskScore,
		RiskLevel: out.RiskLevel,
		Reasons:   out.Reasons,
	}
	// An absent confidence is treated as zero so the answer is untrusted.
	if out.Confidence != nil {
		ra.Confidence = *out.Confidence
	}
	return ra, nil
}
