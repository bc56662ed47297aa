package business

import (
	"encoding/json"
	"fmt"

	"github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

// UsageMapper converts one provider's raw usage payload into the unified
// shape the recorder and pricing registry consume. Providers disagree on
// field names and on whether a total is reported; mappers reconcile both.
type UsageMapper interface {
	MapUsage(raw any) (*transport.NormalizedUsage, error)
}

// OpenAIUsage mirrors OpenAI's usage object.
type OpenAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// AnthropicUsage mirrors Anthropic's usage object, which reports no total.
type AnthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// GoogleUsage mirrors Vertex AI's usageMetadata object.
type GoogleUsage struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// NewUsageMapper returns the mapper for a provider name, or an error for
// providers without a known usage format.
func NewUsageMapper(provider string) (UsageMapper, error) {
	switch provider {
	case "openai":
		return usageMapperFunc(mapOpenAIUsage), nil
	case "anthropic":
		return usageMapperFunc(mapAnthropicUsage), nil
	case "google":
		return usageMapperFunc(mapGoogleUsage), nil
	default:
		return nil, fmt.Errorf("no usage mapper for provider %q", provider)
	}
}

type usageMapperFunc func(raw any) (*transport.NormalizedUsage, error)

func (f usageMapperFunc) MapUsage(raw any) (*transport.NormalizedUsage, error) {
	return f(raw)
}

func mapOpenAIUsage(raw any) (*transport.NormalizedUsage, error) {
	var u OpenAIUsage
	if err := decodeUsage(raw, &u); err != nil {
		return nil, err
	}
	return NormalizeUsage(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
}

func mapAnthropicUsage(raw any) (*transport.NormalizedUsage, error) {
	var u AnthropicUsage
	if err := decodeUsage(raw, &u); err != nil {
		return nil, err
	}
	return NormalizeUsage(u.InputTokens, u.OutputTokens, 0)
}

func mapGoogleUsage(raw any) (*transport.NormalizedUsage, error) {
	var u GoogleUsage
	if err := decodeUsage(raw, &u); err != nil {
		return nil, err
	}
	return NormalizeUsage(u.PromptTokenCount, u.CandidatesTokenCount, u.TotalTokenCount)
}

// decodeUsage accepts the shapes SDKs hand back: a typed struct, a pointer
// to one, a decoded map, or raw JSON bytes.
func decodeUsage(raw, dst any) error {
	switch v := raw.(type) {
	case nil:
		return fmt.Errorf("usage payload is nil")
	case json.RawMessage:
		return json.Unmarshal(v, dst)
	case []byte:
		return json.Unmarshal(v, dst)
	default:
		// Round-trip through JSON covers typed structs, pointers, and maps
		// without per-provider reflection.
		buf, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("unsupported usage payload %T: %w", raw, err)
		}
		return json.Unmarshal(buf, dst)
	}
}

// NormalizeUsage validates raw token counts and fills a missing total.
// A reported total must cover prompt+completion; providers that count
// internal reasoning tokens may exceed the sum, never undercut it.
func NormalizeUsage(prompt, completion, total int64) (*transport.NormalizedUsage, error) {
	if prompt < 0 {
		return nil, fmt.Errorf("%w: %d", errors.ErrNegativePromptTokens, prompt)
	}
	if completion < 0 {
		return nil, fmt.Errorf("%w: %d", errors.ErrNegativeCompletionTokens, completion)
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: %d", errors.ErrNegativeTotalTokens, total)
	}

	if total == 0 {
		total = prompt + completion
	} else if total < prompt+completion {
		return nil, fmt.Errorf("%w: total %d < prompt %d + completion %d",
			errors.ErrInconsistentTokenCounts, total, prompt, completion)
	}

	return &transport.NormalizedUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}, nil
}
