package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

func newTestRouter(t *testing.T, provider string, handler http.HandlerFunc) *Router {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewRouter(map[string]configuration.ProviderConfig{
		provider: {Endpoint: srv.URL, APIKey: "test-key"},
	}, srv.Client())
	require.NoError(t, err)
	return r
}

func TestNewRouterValidation(t *testing.T) {
	_, err := NewRouter(nil, nil)
	assert.ErrorIs(t, err, ErrNoProviders)

	_, err = NewRouter(map[string]configuration.ProviderConfig{"cohere": {}}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRouterOpenAISuccess(t *testing.T) {
	r := newTestRouter(t, ProviderOpenAI, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/chat/completions", req.URL.Path)
		assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
		w.Write([]byte(`{
			"choices":[{"message":{"content":"hello"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":9,"completion_tokens":12,"total_tokens":21}
		}`))
	})

	resp, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o",
		Payload:  "say hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, int64(21), resp.Usage.TotalTokens)
	assert.GreaterOrEqual(t, resp.Usage.LatencyMs, int64(0))
}

func TestRouterAnthropicSuccess(t *testing.T) {
	r := newTestRouter(t, ProviderAnthropic, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/messages", req.URL.Path)
		assert.Equal(t, "test-key", req.Header.Get("x-api-key"))
		assert.NotEmpty(t, req.Header.Get("anthropic-version"))
		w.Write([]byte(`{
			"content":[{"type":"text","text":"hi there"}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":5,"output_tokens":7}
		}`))
	})

	resp, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderAnthropic,
		Model:    "claude-3-5-sonnet",
		Payload:  "say hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, int64(12), resp.Usage.TotalTokens, "anthropic totals are derived")
}

func TestRouterGoogleSuccess(t *testing.T) {
	r := newTestRouter(t, ProviderGoogle, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", req.URL.Path)
		assert.Equal(t, "test-key", req.Header.Get("x-goog-api-key"))
		w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"hey"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}
		}`))
	})

	resp, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderGoogle,
		Model:    "gemini-1.5-flash",
		Payload:  "say hey",
	})
	require.NoError(t, err)
	assert.Equal(t, "hey", resp.Content)
	assert.Equal(t, int64(5), resp.Usage.TotalTokens)
}

func TestRouterUnknownProvider(t *testing.T) {
	r := newTestRouter(t, ProviderOpenAI, func(w http.ResponseWriter, req *http.Request) {})

	_, err := r.Handle(context.Background(), &transport.Request{Provider: "cohere", Model: "x"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRouterRateLimitResponse(t *testing.T) {
	r := newTestRouter(t, ProviderOpenAI, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit reached","type":"rate_limit_error"}}`))
	})

	_, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o",
		Payload:  "x",
	})
	require.Error(t, err)

	var perr *llmerrors.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, llmerrors.KindRateLimited, perr.ErrorKind())
	assert.Equal(t, 30*time.Second, perr.GetRetryAfter())
	assert.Equal(t, "rate limit reached", perr.Message)
}

func TestRouterServerErrorIsRetryable(t *testing.T) {
	r := newTestRouter(t, ProviderAnthropic, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"overloaded_error"}}`))
	})

	_, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderAnthropic,
		Model:    "claude-3-5-haiku",
		Payload:  "x",
	})
	require.Error(t, err)
	assert.True(t, llmerrors.IsRetryable(err))
}

func TestRouterRequestTimeout(t *testing.T) {
	r := newTestRouter(t, ProviderOpenAI, func(w http.ResponseWriter, req *http.Request) {
		// Drain the body so the server starts its background read;
		// otherwise the client disconnect is never observed and the
		// request context is never canceled, hanging srv.Close.
		io.Copy(io.Discard, req.Body)
		<-req.Context().Done()
	})

	_, err := r.Handle(context.Background(), &transport.Request{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o",
		Payload:  "x",
		Timeout:  50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, llmerrors.KindTimeout, llmerrors.Classify(err))
}
