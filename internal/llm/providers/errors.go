package providers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/mkarasu/go-pacer/internal/llm/errors"
)

const maxErrorBodyLen = 512

// wireError covers the error envelope shapes the supported providers emit.
// OpenAI and Google nest under "error"; Anthropic adds a top-level "type".
type wireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"` // string for OpenAI, number for Google
		Status  string `json:"status"`
	} `json:"error"`
}

// parseErrorResponse turns a non-success provider response into a
// *llmerrors.ProviderError carrying status classification and any explicit
// Retry-After guidance.
func parseErrorResponse(provider string, resp *http.Response, body []byte) error {
	perr := &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
	}

	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && we.Error.Message != "" {
		perr.Message = we.Error.Message
		switch c := we.Error.Code.(type) {
		case string:
			perr.Code = c
		case float64:
			perr.Code = strconv.Itoa(int(c))
		}
		if perr.Code == "" {
			perr.Code = we.Error.Type
		}
	} else {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBodyLen {
			msg = msg[:maxErrorBodyLen]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		perr.Message = msg
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			perr.RetryAfter = secs
		}
	}

	return perr
}
