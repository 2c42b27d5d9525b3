package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"catchup-relay/internal/domain/entity"
	"catchup-relay/internal/resilience/fault"
)

// webhookChannel is the delivery engine shared by every webhook-backed
// notifier: one rate-limited POST per update, with outcomes classified
// into faults. Channels differ only in name, credentials, pacing and
// payload shape.
type webhookChannel struct {
	name    string
	url     string
	client  *http.Client
	limiter *RateLimiter
	build   func(*entity.Update) any
}

// Name identifies this channel for logs and breaker names.
func (c *webhookChannel) Name() string {
	return c.name
}

// Publish delivers one update through the webhook. Failures come back as
// classified faults; the caller decides whether to retry or park the
// update as a draft. Only the token-bucket wait blocks here, so a healthy
// channel is never pushed past the service's documented limit.
func (c *webhookChannel) Publish(ctx context.Context, update *entity.Update) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	log := slog.With(
		slog.String("request_id", requestID),
		slog.String("channel", c.name))

	log.Info("Starting webhook delivery",
		slog.String("feed", update.FeedName),
		slog.String("link", update.Link))

	if err := c.limiter.Allow(ctx); err != nil {
		log.Error("Rate limiter wait aborted", slog.Any("error", err))
		return fault.Classify(err).WithContext("channel", c.name)
	}

	if err := c.post(ctx, update); err != nil {
		log.Error("Webhook delivery failed",
			slog.String("link", update.Link),
			slog.String("kind", fault.KindOf(err).String()),
			slog.Any("error", err))
		return err
	}

	log.Info("Webhook delivery successful", slog.String("link", update.Link))
	return nil
}

// post marshals, sends and classifies one request.
func (c *webhookChannel) post(ctx context.Context, update *entity.Update) error {
	jsonData, err := json.Marshal(c.build(update))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.Classify(err).WithContext("channel", c.name)
	}
	defer func() { _ = resp.Body.Close() }()

	// エラーメッセージのためにレスポンスボディを読む
	body, _ := io.ReadAll(resp.Body)

	return classifyWebhookResponse("notifier-"+c.name, resp, body)
}
