// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics for the ops server (duration, count)
//   - Relay business metrics (feed polls, deliveries, parked drafts)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "catchup-relay/internal/observability/metrics"
//
//	func pollFeed(feed string) {
//	    start := time.Now()
//	    // ... poll and process the feed ...
//	    entries := int64(10)
//
//	    metrics.RecordFeedPoll(feed, time.Since(start), entries)
//	}
package metrics
