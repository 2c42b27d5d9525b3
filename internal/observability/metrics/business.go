package metrics

import "time"

// RecordFeedPoll records metrics for one feed poll: how long it took and how
// many entries the feed carried.
func RecordFeedPoll(feed string, duration time.Duration, entries int64) {
	FeedPollDuration.WithLabelValues(feed).Observe(duration.Seconds())
	if entries > 0 {
		EntriesSeenTotal.WithLabelValues(feed).Add(float64(entries))
	}
}

// RecordFeedPollError records an error while polling a feed.
// errorType is a short stable tag such as "fetch_failed" or "dedupe_failed".
func RecordFeedPollError(feed string, errorType string) {
	FeedPollErrors.WithLabelValues(feed, errorType).Inc()
}

// RecordDelivery records the outcome of one per-channel delivery attempt.
// Status should be one of "delivered", "queued", "failed", "skipped".
func RecordDelivery(channel, status string) {
	DeliveriesTotal.WithLabelValues(channel, status).Inc()
}

// UpdateDraftsParked updates the parked-drafts gauge for a channel.
// The gauge should be refreshed periodically from the draft store.
func UpdateDraftsParked(channel string, count int64) {
	DraftsParked.WithLabelValues(channel).Set(float64(count))
}

// RecordContentFetchSuccess records a successful content fetch operation.
// This tracks both the duration and size of fetched content.
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped content fetch operation.
// This occurs when the feed body is already long enough and fetching is
// unnecessary.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "save_draft", "recent_keys").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
