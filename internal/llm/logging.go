package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

const redactedPlaceholder = "[redacted]"

// requestLogging returns middleware that logs each attempt's dispatch and
// outcome. It sits inside the retry orchestrator, so one logical invocation
// produces one line per attempt.
func requestLogging(logger *slog.Logger, cfg configuration.ObservabilityConfig) transport.Middleware {
	logger = logger.With("component", "transport")

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			start := time.Now()

			logger.Debug("dispatching request",
				"request_id", req.ID,
				"provider", req.Provider,
				"model", req.Model,
				"operation", req.Operation,
				"trace_id", req.TraceID,
				"payload", payloadForLog(cfg, req.Payload))

			resp, err := next.Handle(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				logger.Error("request failed",
					"request_id", req.ID,
					"provider", req.Provider,
					"model", req.Model,
					"kind", llmerrors.Classify(err),
					"elapsed", elapsed,
					"error", err)
				return nil, err
			}

			logger.Info("request completed",
				"request_id", req.ID,
				"provider", req.Provider,
				"model", req.Model,
				"finish_reason", resp.FinishReason,
				"total_tokens", resp.Usage.TotalTokens,
				"elapsed", elapsed)
			return resp, nil
		})
	}
}

func payloadForLog(cfg configuration.ObservabilityConfig, payload string) string {
	if cfg.RedactPayloads {
		return redactedPlaceholder
	}
	return payload
}
