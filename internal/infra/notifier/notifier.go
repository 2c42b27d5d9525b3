// Package notifier delivers updates to chat channels over webhooks. It
// provides Discord and Slack publishers plus a no-op publisher for disabled
// channels.
//
// Publishers are plain clients: each failure comes back as a classified fault
// and the delivery pipeline decides whether to retry, park a draft, or trip
// the channel's breaker. The only policy a publisher owns is client-side
// token-bucket throttling, which keeps the relay inside each service's
// documented webhook rate limit.
package notifier

import (
	"context"

	"catchup-relay/internal/domain/entity"
)

// Notifier publishes one update to a single channel.
type Notifier interface {
	// Publish delivers the update. The update's Summary holds the channel's
	// translated digest; implementations fall back to Content when empty.
	Publish(ctx context.Context, update *entity.Update) error

	// Name identifies the channel in logs, breaker names and health output.
	Name() string
}
