package translator

import (
	"context"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/utils/text"
)

// LoadClaudeConfig loads Claude translator configuration from environment
// variables with fallback to defaults.
//
// Environment variables:
//   - TRANSLATOR_CHAR_LIMIT: Digest character limit (default: 900, range: 100-5000)
//   - TRANSLATOR_TIMEOUT: Per-call timeout (default: 60s)
//   - TRANSLATOR_CLAUDE_MODEL: Model identifier
//
// Returns the config and any warnings produced by fallback handling.
func LoadClaudeConfig() (Config, []string) {
	return loadConfig("TRANSLATOR_CLAUDE_MODEL", string(anthropic.ModelClaudeSonnet4_5_20250929))
}

// Claude implements the Translator interface using Anthropic's Claude API.
// It is a plain client: failures come back as classified faults, and the
// delivery pipeline decides how to retry, break or fall back.
type Claude struct {
	client          anthropic.Client
	config          Config
	metricsRecorder TranslationMetricsRecorder
}

// NewClaude creates a new Claude translator with the given API key.
func NewClaude(apiKey string) *Claude {
	config, warnings := LoadClaudeConfig()
	for _, w := range warnings {
		slog.Warn("claude translator config fallback", slog.String("warning", w))
	}

	slog.Info("Initialized Claude translator with configuration",
		slog.Int("character_limit", config.CharacterLimit),
		slog.String("model", config.Model),
		slog.Duration("timeout", config.Timeout))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		config:          config,
		metricsRecorder: NewPrometheusTranslationMetrics(),
	}
}

// Name identifies this provider in circuit breaker and recovery records.
func (c *Claude) Name() string {
	return "anthropic"
}

// Translate produces a digest of the given text in the target language using
// Claude. It includes structured logging and metrics recording for
// observability. Errors are returned as classified faults.
func (c *Claude) Translate(ctx context.Context, input, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// Generate unique request ID for tracing
	requestID := uuid.New().String()

	// Truncate text to avoid token limit (safety measure, even though Claude supports 200k tokens)
	// Safe limit: ~10,000 chars to maintain consistency with the OpenAI implementation
	truncatedText := text.TruncateRunes(input, maxInputRunes, "...\n(内容が長いため切り詰めました)")
	if truncatedText != input {
		slog.Warn("text truncated for claude api",
			slog.String("request_id", requestID),
			slog.Int("original_length", text.CountRunes(input)),
			slog.Int("truncated_length", text.CountRunes(truncatedText)))
	}

	prompt := buildPrompt(truncatedText, language, c.config.CharacterLimit)
	inputLength := text.CountRunes(truncatedText)

	slog.InfoContext(ctx, "Starting translation",
		slog.String("request_id", requestID),
		slog.String("provider", c.Name()),
		slog.String("language", language),
		slog.Int("input_length", inputLength),
		slog.Int("character_limit", c.config.CharacterLimit))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		fe := classifyAnthropicError(err)
		slog.ErrorContext(ctx, "Translation failed",
			slog.String("request_id", requestID),
			slog.String("provider", c.Name()),
			slog.String("kind", fe.Kind.String()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fe
	}

	// Validate response structure
	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "Claude API returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fault.ServiceAPI("anthropic", 0, "claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "Claude API returned unexpected response type",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fault.ServiceAPI("anthropic", 0, "claude api returned unexpected response type")
	}

	digest := textBlock.Text
	digestLength := text.CountRunes(digest)
	withinLimit := digestLength <= c.config.CharacterLimit

	slog.InfoContext(ctx, "Translation completed",
		slog.String("request_id", requestID),
		slog.String("provider", c.Name()),
		slog.Int("digest_length", digestLength),
		slog.Int("character_limit", c.config.CharacterLimit),
		slog.Bool("within_limit", withinLimit),
		slog.Duration("duration", duration))

	// Log warning if limit exceeded (should be rare)
	if !withinLimit {
		excess := digestLength - c.config.CharacterLimit
		slog.WarnContext(ctx, "Digest exceeds character limit",
			slog.String("request_id", requestID),
			slog.Int("digest_length", digestLength),
			slog.Int("limit", c.config.CharacterLimit),
			slog.Int("excess", excess))
	}

	c.metricsRecorder.RecordLength(digestLength)
	c.metricsRecorder.RecordDuration(duration)
	c.metricsRecorder.RecordCompliance(withinLimit)
	if !withinLimit {
		c.metricsRecorder.RecordLimitExceeded()
	}

	return digest, nil
}
