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

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion         = "2023-06-01"

	// The messages API requires max_tokens; used when the caller sets none.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicAdapter speaks the messages API.
type AnthropicAdapter struct {
	cfg   configuration.ProviderConfig
	usage business.UsageMapper
}

// NewAnthropicAdapter builds an adapter, defaulting to the production endpoint.
func NewAnthropicAdapter(cfg configuration.ProviderConfig) *AnthropicAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = anthropicDefaultEndpoint
	}
	mapper, _ := business.NewUsageMapper(ProviderAnthropic)
	return &AnthropicAdapter{cfg: cfg, usage: mapper}
}

// Name implements Adapter.
func (a *AnthropicAdapter) Name() string { return ProviderAnthropic }

// Build implements Adapter.
func (a *AnthropicAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	body := map[string]any{
		"model":      req.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": req.Payload},
		},
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.Endpoint+"/messages", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	for k, v := range a.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse implements Adapter.
func (a *AnthropicAdapter) Parse(resp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(ProviderAnthropic, resp, body)
	}

	var wire struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string          `json:"stop_reason"`
		Usage      json.RawMessage `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content string
	for _, block := range wire.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	if content == "" {
		return nil, fmt.Errorf("anthropic response contained no text block")
	}

	usage, err := a.usage.MapUsage(wire.Usage)
	if err != nil {
		return nil, fmt.Errorf("map usage: %w", err)
	}

	return &transport.Response{
		Content:      content,
		FinishReason: wire.StopReason,
		Usage:        *usage,
	}, nil
}
