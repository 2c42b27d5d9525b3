// Package translator provides AI-powered translation and summarization of feed
// updates. It includes adapters for Claude (Anthropic) and OpenAI APIs with
// configurable character limits and comprehensive observability through
// structured logging and Prometheus metrics.
//
// The adapters are plain clients: resilience (retries, circuit breaking,
// fallback between providers) is applied by the delivery pipeline, which needs
// classified faults to pick a recovery plan. Every API failure is therefore
// returned as a fault with its kind already decided.
package translator

import "context"

// Translator renders a digest of text in the target language.
type Translator interface {
	// Translate returns a summary of text written in the given language.
	// language is a channel-level tag such as "ja" or "en".
	Translate(ctx context.Context, text, language string) (string, error)

	// Name identifies the provider for circuit breaker naming and logs.
	Name() string
}

// languageNames maps channel language tags to the names used in prompts.
var languageNames = map[string]string{
	"ja":       "日本語",
	"japanese": "日本語",
	"en":       "英語",
	"english":  "英語",
}

// languageName resolves a language tag for prompt building. Unknown tags pass
// through unchanged so new languages work without a code change.
func languageName(tag string) string {
	if name, ok := languageNames[tag]; ok {
		return name
	}
	return tag
}
