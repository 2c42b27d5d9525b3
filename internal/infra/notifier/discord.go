package notifier

import (
	"net/http"
	"time"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/utils/text"
)

// DiscordConfig contains configuration for Discord webhook delivery.
type DiscordConfig struct {
	// WebhookURL is the Discord webhook URL (includes the auth token).
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls.
	Timeout time.Duration
}

// DiscordNotifier delivers updates to a Discord channel via webhook.
type DiscordNotifier struct {
	webhookChannel
}

// NewDiscordNotifier creates a DiscordNotifier paced at 0.5 requests per
// second with a burst of 3 (Discord webhook limit: 30 requests/minute).
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{webhookChannel{
		name:    "discord",
		url:     config.WebhookURL,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: NewRateLimiter(0.5, 3),
		build:   func(u *entity.Update) any { return discordEmbedPayload(u) },
	}}
}

// DiscordWebhookPayload represents the JSON payload sent to a Discord webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents one Discord embed message.
type DiscordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url"`
	Color       int                `json:"color"`
	Footer      DiscordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	// Discord embed limits
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	// Discord blue (#5865F2)
	discordBlueColor = 5793266
)

// discordEmbedPayload renders one update as a single embed. The digest
// prefers the translated Summary and falls back to the sanitized Content;
// title and description are truncated by runes so the suffix still fits
// inside Discord's embed limits.
func discordEmbedPayload(update *entity.Update) DiscordWebhookPayload {
	body := update.Summary
	if body == "" {
		body = update.Content
	}

	return DiscordWebhookPayload{Embeds: []DiscordEmbed{{
		Title:       text.TruncateRunes(update.Title, maxTitleLength-len(truncationSuffix), truncationSuffix),
		Description: text.TruncateRunes(body, maxDescriptionLength-len(truncationSuffix), truncationSuffix),
		URL:         update.Link,
		Color:       discordBlueColor,
		Footer:      DiscordEmbedFooter{Text: update.FeedName},
		Timestamp:   update.PublishedAt.Format(time.RFC3339),
	}}}
}
