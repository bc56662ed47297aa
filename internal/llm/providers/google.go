package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mkarasu/go-pacer/internal/llm/business"
	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

const googleDefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// GoogleAdapter speaks the generateContent API.
type GoogleAdapter struct {
	cfg   configuration.ProviderConfig
	usage business.UsageMapper
}

// NewGoogleAdapter builds an adapter, defaulting to the production endpoint.
func NewGoogleAdapter(cfg configuration.ProviderConfig) *GoogleAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = googleDefaultEndpoint
	}
	mapper, _ := business.NewUsageMapper(ProviderGoogle)
	return &GoogleAdapter{cfg: cfg, usage: mapper}
}

// Name implements Adapter.
func (a *GoogleAdapter) Name() string { return ProviderGoogle }

// Build implements Adapter.
func (a *GoogleAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": req.Payload}}},
		},
	}
	if req.MaxTokens > 0 {
		body["generationConfig"] = map[string]any{"maxOutputTokens": req.MaxTokens}
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.cfg.Endpoint, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse implements Adapter.
func (a *GoogleAdapter) Parse(resp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(ProviderGoogle, resp, body)
	}

	var wire struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata json.RawMessage `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Candidates) == 0 || len(wire.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("google response contained no candidates")
	}

	usage, err := a.usage.MapUsage(wire.UsageMetadata)
	if err != nil {
		return nil, fmt.Errorf("map usage: %w", err)
	}

	return &transport.Response{
		Content:      wire.Candidates[0].Content.Parts[0].Text,
		FinishReason: wire.Candidates[0].FinishReason,
		Usage:        *usage,
	}, nil
}
