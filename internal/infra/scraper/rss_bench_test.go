package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"catchup-relay/internal/infra/scraper"
)

// buildRSSBody は指定件数のitemを持つRSS 2.0フィードを組み立てる
func buildRSSBody(items int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>`)

	for i := 0; i < items; i++ {
		n := strconv.Itoa(i)
		sb.WriteString(`
    <item>
      <title>Entry ` + n + `</title>
      <link>https://example.com/entry` + n + `</link>
      <guid>entry-` + n + `</guid>
      <description>Description ` + n + `</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
    </item>`)
	}

	sb.WriteString(`
  </channel>
</rss>`)
	return sb.String()
}

// buildAtomBody は指定件数のentryを持つAtomフィードを組み立てる
func buildAtomBody(entries int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2024-01-01T00:00:00Z</updated>`)

	for i := 0; i < entries; i++ {
		n := strconv.Itoa(i)
		sb.WriteString(`
  <entry>
    <title>Atom Entry ` + n + `</title>
    <link href="https://example.com/atom` + n + `"/>
    <id>atom-` + n + `</id>
    <updated>2024-01-01T00:00:00Z</updated>
    <summary>Atom Summary ` + n + `</summary>
  </entry>`)
	}

	sb.WriteString(`
</feed>`)
	return sb.String()
}

func newFeedServer(body, contentType string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		if _, err := w.Write([]byte(body)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
}

// BenchmarkRSSFetcher_SmallFeed は小規模フィード（10件）のパース性能を測定
func BenchmarkRSSFetcher_SmallFeed(b *testing.B) {
	server := newFeedServer(buildRSSBody(10), "application/rss+xml")
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := scraper.NewRSSFetcher(client)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fetcher.Fetch(context.Background(), "bench-feed", server.URL)
	}
}

// BenchmarkRSSFetcher_MediumFeed は中規模フィード（50件）のパース性能を測定
func BenchmarkRSSFetcher_MediumFeed(b *testing.B) {
	server := newFeedServer(buildRSSBody(50), "application/rss+xml")
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := scraper.NewRSSFetcher(client)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fetcher.Fetch(context.Background(), "bench-feed", server.URL)
	}
}

// BenchmarkRSSFetcher_AtomFeed はAtomフィードのパース性能を測定
func BenchmarkRSSFetcher_AtomFeed(b *testing.B) {
	server := newFeedServer(buildAtomBody(20), "application/atom+xml")
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := scraper.NewRSSFetcher(client)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fetcher.Fetch(context.Background(), "bench-feed", server.URL)
	}
}

// BenchmarkRSSFetcher_Parallel は並行フェッチの性能を測定
func BenchmarkRSSFetcher_Parallel(b *testing.B) {
	server := newFeedServer(buildRSSBody(1), "application/rss+xml")
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := scraper.NewRSSFetcher(client)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = fetcher.Fetch(context.Background(), "bench-feed", server.URL)
		}
	})
}
