package translator

import (
	"fmt"
	"time"

	pkgconfig "catchup-relay/internal/pkg/config"
)

const (
	// minCharLimit is the minimum allowed character limit for digests.
	minCharLimit = 100

	// maxCharLimit is the maximum allowed character limit for digests.
	maxCharLimit = 5000

	// maxInputRunes caps the text sent to a provider. Keeps prompts well under
	// every provider's token limit and bounds the cost of a single call.
	maxInputRunes = 10000

	defaultCharLimit = 900
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024
)

// Config holds the shared configuration for a translation provider.
// Provider constructors load it from environment variables with fallback to
// defaults; warnings are logged, not fatal.
type Config struct {
	// CharacterLimit is the maximum number of characters requested for a
	// digest. Loaded from TRANSLATOR_CHAR_LIMIT. Valid range: 100-5000.
	CharacterLimit int

	// Model is the provider-specific model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single translation API call.
	// Loaded from TRANSLATOR_TIMEOUT.
	Timeout time.Duration
}

// Validate checks the configuration and returns an error if invalid.
func (c Config) Validate() error {
	if err := ValidateCharacterLimit(c.CharacterLimit); err != nil {
		return fmt.Errorf("invalid character limit: %w", err)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// ValidateCharacterLimit validates that the character limit is within the
// valid range (100-5000). Returns a descriptive error when out of range.
func ValidateCharacterLimit(limit int) error {
	if limit < minCharLimit {
		return fmt.Errorf("character limit %d is below minimum %d", limit, minCharLimit)
	}
	if limit > maxCharLimit {
		return fmt.Errorf("character limit %d exceeds maximum %d", limit, maxCharLimit)
	}
	return nil
}

// loadConfig loads the shared translator settings from the environment,
// using modelEnvKey/defaultModel for the provider's model identifier.
// It never fails: invalid values fall back to defaults with warnings.
func loadConfig(modelEnvKey, defaultModel string) (Config, []string) {
	var warnings []string

	limitRes := pkgconfig.LoadEnvInt("TRANSLATOR_CHAR_LIMIT", defaultCharLimit, ValidateCharacterLimit)
	warnings = append(warnings, limitRes.Warnings...)

	timeoutRes := pkgconfig.LoadEnvDuration("TRANSLATOR_TIMEOUT", defaultTimeout, pkgconfig.ValidatePositiveDuration)
	warnings = append(warnings, timeoutRes.Warnings...)

	cfg := Config{
		CharacterLimit: limitRes.Value,
		Model:          pkgconfig.LoadEnvString(modelEnvKey, defaultModel),
		MaxTokens:      defaultMaxTokens,
		Timeout:        timeoutRes.Value,
	}
	return cfg, warnings
}

// buildPrompt constructs the translation prompt for the target language and
// character limit.
//
// Example output:
//
//	"以下のテキストを日本語で900文字以内に要約・翻訳してください：\n{text}"
func buildPrompt(text, language string, charLimit int) string {
	return fmt.Sprintf("以下のテキストを%sで%d文字以内に要約・翻訳してください：\n%s",
		languageName(language), charLimit, text)
}
