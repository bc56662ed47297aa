// Command pacer drives rate-limited LLM invocations from the command line.
// It wires the built-in provider adapters into the admission core and runs
// a batch of prompts under the configured RPM/TPM budget, printing each
// response and a final accounting snapshot.
//
// The API key comes from the provider's conventional environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, or GEMINI_API_KEY).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mkarasu/go-pacer/internal/llm"
	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/providers"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

func main() {
	var (
		provider    = flag.String("provider", providers.ProviderOpenAI, "provider: openai, anthropic, or google")
		model       = flag.String("model", "gpt-4o-mini", "model name")
		prompt      = flag.String("prompt", "Reply with one short sentence.", "prompt to send")
		count       = flag.Int("n", 3, "number of invocations")
		maxRPM      = flag.Float64("rpm", configuration.DefaultMaxRPM, "requests-per-minute ceiling (0 = unlimited)")
		maxTPM      = flag.Float64("tpm", 0, "tokens-per-minute ceiling (0 = unlimited)")
		concurrency = flag.Int64("concurrency", configuration.DefaultMaxConcurrency, "max in-flight invocations")
		timeout     = flag.Duration("timeout", 60*time.Second, "per-attempt deadline")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *provider, *model, *prompt, *count, *maxRPM, *maxTPM, *concurrency, *timeout); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(
	logger *slog.Logger,
	provider, model, prompt string,
	count int,
	maxRPM, maxTPM float64,
	concurrency int64,
	timeout time.Duration,
) error {
	apiKey, err := apiKeyFor(provider)
	if err != nil {
		return err
	}

	router, err := providers.NewRouter(map[string]configuration.ProviderConfig{
		provider: {APIKey: apiKey},
	}, nil)
	if err != nil {
		return err
	}

	cfg := configuration.DefaultConfig()
	cfg.Limits.MaxRPM = maxRPM
	cfg.Limits.MaxTPM = maxTPM
	cfg.MaxConcurrency = concurrency
	cfg.Retry.UseJitter = true

	client, err := llm.New(cfg, router, llm.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Do(ctx, &transport.Request{
				Provider:  provider,
				Model:     model,
				Operation: "generate",
				Payload:   prompt,
				Timeout:   timeout,
			})
			if err != nil {
				logger.Error("invocation failed",
					"n", i,
					"attempts", len(res.Attempts),
					"error", err)
				return
			}
			fmt.Printf("[%d] %s\n", i, strings.TrimSpace(res.Response.Content))
		}(i)
	}
	wg.Wait()

	snap := client.Snapshot()
	logger.Info("accounting snapshot",
		"rpm", snap.RPM,
		"repm", snap.RePM,
		"tpm", snap.TPM,
		"total_sent", snap.TotalSent,
		"total_received", snap.TotalReceived,
		"total_cost_usd", snap.TotalCost)
	return ctx.Err()
}

func apiKeyFor(provider string) (string, error) {
	envs := map[string]string{
		providers.ProviderOpenAI:    "OPENAI_API_KEY",
		providers.ProviderAnthropic: "ANTHROPIC_API_KEY",
		providers.ProviderGoogle:    "GEMINI_API_KEY",
	}
	env, ok := envs[provider]
	if !ok {
		return "", fmt.Errorf("unsupported provider %q", provider)
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s is not set", env)
	}
	return key, nil
}
