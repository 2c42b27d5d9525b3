package translator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/utils/text"
)

// LoadOpenAIConfig loads OpenAI translator configuration from environment
// variables with fallback to defaults.
//
// Environment variables:
//   - TRANSLATOR_CHAR_LIMIT: Digest character limit (default: 900, range: 100-5000)
//   - TRANSLATOR_TIMEOUT: Per-call timeout (default: 60s)
//   - TRANSLATOR_OPENAI_MODEL: Model identifier (default: gpt-3.5-turbo)
//
// Returns the config and any warnings produced by fallback handling.
func LoadOpenAIConfig() (Config, []string) {
	return loadConfig("TRANSLATOR_OPENAI_MODEL", openai.GPT3Dot5Turbo)
}

// OpenAI implements the Translator interface using OpenAI's chat completion
// API. Like the Claude adapter it is a plain client; resilience policy lives
// in the delivery pipeline.
type OpenAI struct {
	client          *openai.Client
	config          Config
	metricsRecorder TranslationMetricsRecorder
}

// NewOpenAI creates a new OpenAI translator with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	config, warnings := LoadOpenAIConfig()
	for _, w := range warnings {
		slog.Warn("openai translator config fallback", slog.String("warning", w))
	}

	slog.Info("Initialized OpenAI translator with configuration",
		slog.Int("character_limit", config.CharacterLimit),
		slog.String("model", config.Model),
		slog.Duration("timeout", config.Timeout))

	return &OpenAI{
		client:          openai.NewClient(apiKey),
		config:          config,
		metricsRecorder: NewPrometheusTranslationMetrics(),
	}
}

// Name identifies this provider in circuit breaker and recovery records.
func (o *OpenAI) Name() string {
	return "openai"
}

// Translate produces a digest of the given text in the target language using
// OpenAI's GPT API. Errors are returned as classified faults.
func (o *OpenAI) Translate(ctx context.Context, input, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	requestID := uuid.New().String()

	// Truncate text to avoid token limit (gpt-3.5-turbo max: 16,385 tokens)
	// Safe limit: ~10,000 chars (~2,500 tokens) to account for the prompt and response
	truncatedText := text.TruncateRunes(input, maxInputRunes, "...\n(内容が長いため切り詰めました)")
	if truncatedText != input {
		slog.Warn("text truncated for openai api",
			slog.String("request_id", requestID),
			slog.Int("original_length", text.CountRunes(input)),
			slog.Int("truncated_length", text.CountRunes(truncatedText)))
	}

	prompt := buildPrompt(truncatedText, language, o.config.CharacterLimit)
	inputLength := text.CountRunes(truncatedText)

	slog.InfoContext(ctx, "Starting translation",
		slog.String("request_id", requestID),
		slog.String("provider", o.Name()),
		slog.String("language", language),
		slog.Int("input_length", inputLength),
		slog.Int("character_limit", o.config.CharacterLimit))

	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		}},
	})

	duration := time.Since(start)

	if err != nil {
		fe := classifyOpenAIError(err)
		slog.ErrorContext(ctx, "Translation failed",
			slog.String("request_id", requestID),
			slog.String("provider", o.Name()),
			slog.String("kind", fe.Kind.String()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fe
	}

	// Validate response structure (safety check to prevent panic on array access)
	if len(resp.Choices) == 0 {
		slog.ErrorContext(ctx, "OpenAI API returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fault.ServiceAPI("openai", 0, "openai api returned empty response")
	}

	digest := resp.Choices[0].Message.Content
	digestLength := text.CountRunes(digest)
	withinLimit := digestLength <= o.config.CharacterLimit

	slog.InfoContext(ctx, "Translation completed",
		slog.String("request_id", requestID),
		slog.String("provider", o.Name()),
		slog.Int("digest_length", digestLength),
		slog.Int("character_limit", o.config.CharacterLimit),
		slog.Bool("within_limit", withinLimit),
		slog.Duration("duration", duration))

	if !withinLimit {
		excess := digestLength - o.config.CharacterLimit
		slog.WarnContext(ctx, "Digest exceeds character limit",
			slog.String("request_id", requestID),
			slog.Int("digest_length", digestLength),
			slog.Int("limit", o.config.CharacterLimit),
			slog.Int("excess", excess))
	}

	o.metricsRecorder.RecordLength(digestLength)
	o.metricsRecorder.RecordDuration(duration)
	o.metricsRecorder.RecordCompliance(withinLimit)
	if !withinLimit {
		o.metricsRecorder.RecordLimitExceeded()
	}

	return digest, nil
}
