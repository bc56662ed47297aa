// Package providers supplies the innermost transport.Handler: HTTP adapters
// for the supported LLM providers and a router that dispatches on the
// request's provider name. The admission core above this package is adapter
// agnostic; callers with their own SDK integration can skip it entirely.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

var (
	// ErrUnknownProvider indicates a request named a provider the router
	// has no adapter for.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoProviders indicates the router was built with no configuration.
	ErrNoProviders = errors.New("at least one provider must be configured")
)

const defaultHTTPTimeout = 120 * time.Second

// Adapter translates between the normalized request/response shapes and one
// provider's wire format.
type Adapter interface {
	// Name returns the provider name this adapter serves.
	Name() string

	// Build constructs the provider HTTP request.
	Build(ctx context.Context, req *transport.Request) (*http.Request, error)

	// Parse converts the provider HTTP response, returning a classified
	// error for non-success statuses.
	Parse(resp *http.Response) (*transport.Response, error)
}

// Router is a transport.Handler that dispatches each request to the adapter
// for its provider and executes it on a shared HTTP client.
type Router struct {
	adapters map[string]Adapter
	client   *http.Client
}

// NewRouter builds adapters for every configured provider. A nil httpClient
// selects a client with a generous default timeout; per-request deadlines
// come from Request.Timeout.
func NewRouter(cfgs map[string]configuration.ProviderConfig, httpClient *http.Client) (*Router, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoProviders
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	adapters := make(map[string]Adapter, len(cfgs))
	for name, cfg := range cfgs {
		switch name {
		case ProviderOpenAI:
			adapters[name] = NewOpenAIAdapter(cfg)
		case ProviderAnthropic:
			adapters[name] = NewAnthropicAdapter(cfg)
		case ProviderGoogle:
			adapters[name] = NewGoogleAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}

	return &Router{adapters: adapters, client: httpClient}, nil
}

// Handle implements transport.Handler.
func (r *Router) Handle(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	adapter, ok := r.adapters[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", adapter.Name(), err)
	}

	start := time.Now()
	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", adapter.Name(), err)
	}
	defer httpResp.Body.Close()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}
