package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordFeedPoll(t *testing.T) {
	tests := []struct {
		name     string
		feed     string
		duration time.Duration
		entries  int64
	}{
		{
			name:     "feed with entries",
			feed:     "go-blog",
			duration: 800 * time.Millisecond,
			entries:  25,
		},
		{
			name:     "empty feed",
			feed:     "quiet-feed",
			duration: 120 * time.Millisecond,
			entries:  0,
		},
		{
			name:     "empty feed name",
			feed:     "",
			duration: time.Second,
			entries:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedPoll(tt.feed, tt.duration, tt.entries)
			})
		})
	}
}

func TestRecordFeedPollError(t *testing.T) {
	tests := []struct {
		name      string
		feed      string
		errorType string
	}{
		{
			name:      "fetch failure",
			feed:      "go-blog",
			errorType: "fetch_failed",
		},
		{
			name:      "dedupe lookup failure",
			feed:      "kubernetes-blog",
			errorType: "dedupe_failed",
		},
		{
			name:      "empty error type",
			feed:      "go-blog",
			errorType: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedPollError(tt.feed, tt.errorType)
			})
		})
	}
}

func TestRecordDelivery(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		status  string
	}{
		{
			name:    "delivered",
			channel: "discord-ja",
			status:  "delivered",
		},
		{
			name:    "queued",
			channel: "discord-ja",
			status:  "queued",
		},
		{
			name:    "failed",
			channel: "slack-en",
			status:  "failed",
		},
		{
			name:    "skipped",
			channel: "slack-en",
			status:  "skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDelivery(tt.channel, tt.status)
			})
		})
	}
}

func TestUpdateDraftsParked(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		count   int64
	}{
		{
			name:    "some drafts",
			channel: "discord-ja",
			count:   4,
		},
		{
			name:    "cleared",
			channel: "discord-ja",
			count:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDraftsParked(tt.channel, tt.count)
			})
		})
	}
}

func TestRecordContentFetch(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordContentFetchSuccess(600*time.Millisecond, 14000)
		RecordContentFetchFailed(2 * time.Second)
		RecordContentFetchSkipped()
	})
}

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		duration  time.Duration
	}{
		{
			name:      "save draft",
			operation: "save_draft",
			duration:  5 * time.Millisecond,
		},
		{
			name:      "recent keys lookup",
			operation: "recent_keys",
			duration:  12 * time.Millisecond,
		},
		{
			name:      "slow query",
			operation: "prune_deliveries",
			duration:  2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordDBQuery(tt.operation, tt.duration)
			})
		})
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	tests := []struct {
		name   string
		active int
		idle   int
	}{
		{
			name:   "normal load",
			active: 5,
			idle:   10,
		},
		{
			name:   "no connections",
			active: 0,
			idle:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateDBConnectionStats(tt.active, tt.idle)
			})
		})
	}
}

// TestMetricsFunctions_AllCallable exercises every recording helper once so a
// broken label set panics here instead of in production.
func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordFeedPoll("go-blog", time.Second, 10)
		RecordFeedPollError("go-blog", "fetch_failed")
		RecordDelivery("discord-ja", "delivered")
		UpdateDraftsParked("discord-ja", 2)
		RecordContentFetchSuccess(time.Second, 1000)
		RecordContentFetchFailed(time.Second)
		RecordContentFetchSkipped()
		RecordDBQuery("save_draft", time.Millisecond)
		UpdateDBConnectionStats(3, 7)
		RecordHTTPRequest("GET", "GET /health", "200", time.Millisecond)
	})
}
