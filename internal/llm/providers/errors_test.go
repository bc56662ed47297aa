package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
)

func errResponse(status int, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: status, Header: h}
}

func TestParseErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantCode string
		wantKind llmerrors.ErrorKind
	}{
		{
			name:     "openai envelope with string code",
			status:   401,
			body:     `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantMsg:  "bad key",
			wantCode: "invalid_api_key",
			wantKind: llmerrors.KindAuthFailure,
		},
		{
			name:     "google envelope with numeric code",
			status:   429,
			body:     `{"error":{"message":"quota exceeded for quota metric","code":429,"status":"RESOURCE_EXHAUSTED"}}`,
			wantMsg:  "quota exceeded for quota metric",
			wantCode: "429",
			wantKind: llmerrors.KindRateLimited,
		},
		{
			name:     "quota exhaustion under 429 is terminal",
			status:   429,
			body:     `{"error":{"message":"You exceeded your current quota, please check your plan and billing details.","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantMsg:  "You exceeded your current quota, please check your plan and billing details.",
			wantCode: "insufficient_quota",
			wantKind: llmerrors.KindQuotaExhausted,
		},
		{
			name:     "type used when code missing",
			status:   529,
			body:     `{"error":{"message":"overloaded","type":"overloaded_error"}}`,
			wantMsg:  "overloaded",
			wantCode: "overloaded_error",
			wantKind: llmerrors.KindServerError,
		},
		{
			name:     "non-json body kept verbatim",
			status:   502,
			body:     "upstream connect error",
			wantMsg:  "upstream connect error",
			wantKind: llmerrors.KindServerError,
		},
		{
			name:     "empty body falls back to status text",
			status:   503,
			wantMsg:  http.StatusText(503),
			wantKind: llmerrors.KindServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseErrorResponse("openai", errResponse(tt.status, nil), []byte(tt.body))

			var perr *llmerrors.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantMsg, perr.Message)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, tt.wantKind, perr.ErrorKind())
		})
	}
}

func TestParseErrorResponseRetryAfter(t *testing.T) {
	err := parseErrorResponse("openai",
		errResponse(429, map[string]string{"Retry-After": "12"}), nil)

	var perr *llmerrors.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 12, perr.RetryAfter)

	// Non-numeric Retry-After (HTTP-date form) is ignored rather than guessed.
	err = parseErrorResponse("openai",
		errResponse(429, map[string]string{"Retry-After": "Wed, 21 Oct 2026 07:28:00 GMT"}), nil)
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, perr.RetryAfter)
}

func TestParseErrorResponseTruncatesLongBodies(t *testing.T) {
	long := strings.Repeat("x", 4096)
	err := parseErrorResponse("openai", errResponse(500, nil), []byte(long))

	var perr *llmerrors.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, perr.Message, maxErrorBodyLen)
}
