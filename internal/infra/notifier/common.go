package notifier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/utils/text"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

// maxErrorBodyRunes bounds how much of a webhook error body ends up in fault
// messages and logs.
const maxErrorBodyRunes = 200

// webhookErrorBody represents the error fields webhook services return.
// Discord reports retry_after in seconds as a float.
type webhookErrorBody struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"`
}

// classifyWebhookResponse maps a webhook response to a fault. Returns nil for
// 2xx. 429 carries the service's retry_after hint as the fault's reset time.
func classifyWebhookResponse(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := extractRetryAfter(resp, body)
		return fault.FromHTTPStatus(service, resp.StatusCode, "webhook rate limit exceeded", retryAfter)
	}

	message := fmt.Sprintf("webhook error: %s", text.TruncateRunes(string(body), maxErrorBodyRunes, "..."))
	return fault.FromHTTPStatus(service, resp.StatusCode, message, 0)
}

// extractRetryAfter extracts the retry_after duration from a 429 response.
// It tries the JSON body first, then the Retry-After header.
// Defaults to 5s when neither is present.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var webhookErr webhookErrorBody
	if err := json.Unmarshal(body, &webhookErr); err == nil && webhookErr.RetryAfter > 0 {
		return time.Duration(webhookErr.RetryAfter * float64(time.Second))
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}
