package transport

import (
	"time"

	"github.com/google/uuid"
)

// RequestID uniquely identifies one logical invocation. Uniqueness is a
// caller contract: the sliding-window recorder resolves compensating
// rollbacks by ID, not by position.
type RequestID string

// NewRequestID returns a fresh unique request identifier.
func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

// Request describes one logical LLM invocation. The same Request value is
// passed to every retry attempt; handlers must not mutate it.
type Request struct {
	// ID identifies the invocation across gates, accounting, and rollback.
	// The coordinator assigns one when the caller leaves it empty.
	ID RequestID `json:"id"`

	// Provider and Model select the remote target.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Operation names the caller-level operation for logs and traces.
	Operation string `json:"operation,omitempty"`

	// Payload is the prompt or serialized request body. Opaque to this core.
	Payload string `json:"payload,omitempty"`

	// MaxTokens bounds the completion size, when the provider supports it.
	MaxTokens int64 `json:"max_tokens,omitempty"`

	// Timeout is the per-attempt deadline enforced by the injected handler.
	Timeout time.Duration `json:"timeout,omitempty"`

	// TraceID correlates logs across middleware and the remote call.
	TraceID string `json:"trace_id,omitempty"`

	// Metadata carries caller tags through the pipeline untouched.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NormalizedUsage is the provider-independent usage report for one response.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the normalized output of a successful invocation attempt.
type Response struct {
	// Content is the model output.
	Content string `json:"content"`

	// FinishReason reports why generation stopped ("stop", "length", ...).
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage carries normalized token counts and latency.
	Usage NormalizedUsage `json:"usage"`

	// EstimatedCostMilliCents is attached by the coordinator after pricing.
	EstimatedCostMilliCents int64 `json:"estimated_cost_milli_cents"`

	// ProviderRequestIDs are the provider-side identifiers of the attempts
	// that produced this response.
	ProviderRequestIDs []string `json:"provider_request_ids,omitempty"`
}
