package translator

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"catchup-relay/internal/resilience/fault"
)

// quotaKeywords mark provider error messages that mean the account is out of
// money or monthly quota rather than temporarily throttled. Both providers
// report this condition with different status codes, so the message is the
// only reliable signal.
var quotaKeywords = []string{
	"quota",
	"credit balance",
	"billing",
	"insufficient",
}

func looksLikeQuota(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range quotaKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// retryAfterFrom parses the Retry-After header from an HTTP response.
// Only the delta-seconds form is handled; HTTP-date values return zero.
func retryAfterFrom(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// classifyAnthropicError converts an Anthropic SDK error into a classified
// fault. Quota exhaustion is detected from the message body because Anthropic
// reports it as a plain 400.
func classifyAnthropicError(err error) *fault.Error {
	var apierr *anthropic.Error
	if !errors.As(err, &apierr) {
		return fault.Classify(err)
	}

	if looksLikeQuota(err.Error()) {
		return fault.QuotaExceeded("anthropic quota exhausted", "api_credits", 0, 0).
			WithContext("service", "anthropic").
			WithContext("status_code", apierr.StatusCode).
			Wrap(err)
	}

	return fault.FromHTTPStatus("anthropic", apierr.StatusCode, "claude api error",
		retryAfterFrom(apierr.Response)).Wrap(err)
}

// classifyOpenAIError converts an OpenAI SDK error into a classified fault.
// The SDK surfaces HTTP failures as APIError (parsed body) or RequestError
// (unparseable body); anything else is a transport-level failure.
func classifyOpenAIError(err error) *fault.Error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		if apierr.Type == "insufficient_quota" || looksLikeQuota(apierr.Message) {
			return fault.QuotaExceeded("openai quota exhausted", "api_credits", 0, 0).
				WithContext("service", "openai").
				WithContext("status_code", apierr.HTTPStatusCode).
				Wrap(err)
		}
		return fault.FromHTTPStatus("openai", apierr.HTTPStatusCode, apierr.Message, 0).
			Wrap(err)
	}

	var reqerr *openai.RequestError
	if errors.As(err, &reqerr) {
		return fault.FromHTTPStatus("openai", reqerr.HTTPStatusCode, "openai request failed", 0).
			Wrap(err)
	}

	return fault.Classify(err)
}
