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

const openAIDefaultEndpoint = "https://api.openai.com/v1"

// OpenAIAdapter speaks the chat/completions API.
type OpenAIAdapter struct {
	cfg   configuration.ProviderConfig
	usage business.UsageMapper
}

// NewOpenAIAdapter builds an adapter, defaulting to the production endpoint.
func NewOpenAIAdapter(cfg configuration.ProviderConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = openAIDefaultEndpoint
	}
	mapper, _ := business.NewUsageMapper(ProviderOpenAI)
	return &OpenAIAdapter{cfg: cfg, usage: mapper}
}

// Name implements Adapter.
func (a *OpenAIAdapter) Name() string { return ProviderOpenAI }

// Build implements Adapter.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	body := map[string]any{
		"model": req.Model,
		"messages": []map[string]any{
			{"role": "user", "content": req.Payload},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.Endpoint+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	for k, v := range a.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse implements Adapter.
func (a *OpenAIAdapter) Parse(resp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(ProviderOpenAI, resp, body)
	}

	var wire struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage json.RawMessage `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("openai response contained no choices")
	}

	usage, err := a.usage.MapUsage(wire.Usage)
	if err != nil {
		return nil, fmt.Errorf("map usage: %w", err)
	}

	return &transport.Response{
		Content:      wire.Choices[0].Message.Content,
		FinishReason: wire.Choices[0].FinishReason,
		Usage:        *usage,
	}, nil
}
