package notifier

import (
	"fmt"
	"net/http"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/utils/text"
)

// SlackConfig contains configuration for Slack webhook delivery.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL (includes the auth token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls.
	Timeout time.Duration
}

// SlackNotifier delivers updates to a Slack channel via Incoming Webhook.
type SlackNotifier struct {
	webhookChannel
}

// NewSlackNotifier creates a SlackNotifier paced at 1 request per second
// with a burst of 1 (Slack webhook limit: 1 message/second).
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{webhookChannel{
		name:    "slack",
		url:     config.WebhookURL,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: NewRateLimiter(1.0, 1),
		build:   func(u *entity.Update) any { return slackBlockKitPayload(u) },
	}}
}

// SlackWebhookPayload represents the JSON payload sent to a Slack webhook
// using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// slackBlockKitPayload renders one update as a section block (linked title
// plus digest) and a context block (feed name and publication time). The
// digest prefers the translated Summary over the sanitized Content, and
// text is truncated by runes so the suffix stays inside Block Kit limits.
func slackBlockKitPayload(update *entity.Update) SlackWebhookPayload {
	body := update.Summary
	if body == "" {
		body = update.Content
	}

	fallback := text.TruncateRunes(
		fmt.Sprintf("%s - %s", update.Title, update.FeedName),
		maxFallbackLength-len(slackTruncationSuffix), slackTruncationSuffix)

	section := text.TruncateRunes(
		fmt.Sprintf("*<%s|%s>*\n\n%s", update.Link, update.Title, body),
		maxSectionTextLength-len(slackTruncationSuffix), slackTruncationSuffix)

	footer := fmt.Sprintf("%s • %s", update.FeedName, update.PublishedAt.Format(time.RFC3339))

	return SlackWebhookPayload{
		Text: fallback,
		Blocks: []SlackBlock{
			{
				Type: "section",
				Text: &SlackTextObject{Type: "mrkdwn", Text: section},
			},
			{
				Type:     "context",
				Elements: []SlackTextObject{{Type: "mrkdwn", Text: footer}},
			},
		},
	}
}
