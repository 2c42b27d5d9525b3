// Feed doctor: checks every feed in the relay topology and reports which
// ones are reachable, parseable, and fresh. Run it when deliveries dry up
// to tell a broken feed from a broken relay.
//
// Usage:
//
//	RELAY_TOPOLOGY=config/relay.yaml go run scripts/diagnose_feeds.go
//
// Outputs feed_diagnostic_report.txt, feed_diagnostic_report.json and
// topology_fixes.yaml in the working directory.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"catchup-relay/internal/config"
)

type feedStatus string

const (
	statusOK        feedStatus = "OK"
	statusRedirect  feedStatus = "REDIRECT"
	statusStale     feedStatus = "STALE"
	statusEmpty     feedStatus = "EMPTY"
	statusTimeout   feedStatus = "TIMEOUT"
	statusHTTPError feedStatus = "HTTP_ERROR"
	statusParseErr  feedStatus = "PARSE_ERROR"
	statusReadErr   feedStatus = "READ_ERROR"
	statusReqErr    feedStatus = "REQUEST_ERROR"
)

// staleAfter is how old the newest entry may be before a reachable feed is
// flagged as stale. Stale feeds parse fine but explain dried-up deliveries.
const staleAfter = 60 * 24 * time.Hour

// FeedDiagnostic is the per-feed result, also emitted as the JSON report.
type FeedDiagnostic struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Status       feedStatus `json:"status"`
	HTTPCode     int        `json:"http_code,omitempty"`
	FeedType     string     `json:"feed_type,omitempty"`
	ItemCount    int        `json:"item_count"`
	LatestDate   string     `json:"latest_date,omitempty"`
	RedirectURL  string     `json:"redirect_url,omitempty"`
	ResponseTime int64      `json:"response_time_ms"`
	Error        string     `json:"error,omitempty"`
}

func main() {
	path := os.Getenv("RELAY_TOPOLOGY")
	if path == "" {
		path = "config/relay.yaml"
		log.Println("RELAY_TOPOLOGY not set, using config/relay.yaml")
	}

	topo, err := config.LoadTopology(path)
	if err != nil {
		log.Fatalf("Failed to load relay topology: %v", err)
	}

	log.Printf("Diagnosing %d feeds from %s...\n", len(topo.Feeds), path)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	diags := make([]FeedDiagnostic, 0, len(topo.Feeds))
	for i, feed := range topo.Feeds {
		log.Printf("[%d/%d] %s", i+1, len(topo.Feeds), feed.Name)
		diags = append(diags, diagnoseFeed(client, feed.Name, feed.URL, 30*time.Second))

		// フィード元への連続アクセスを空ける
		time.Sleep(500 * time.Millisecond)
	}

	writeTextReport(diags)
	writeJSONReport(diags)
	writeTopologySuggestions(diags)
}

func diagnoseFeed(client *http.Client, name, feedURL string, timeout time.Duration) FeedDiagnostic {
	diag := FeedDiagnostic{Name: name, URL: feedURL}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		diag.Status, diag.Error = statusReqErr, err.Error()
		return diag
	}
	req.Header.Set("User-Agent", "CatchupRelay-Diagnostic/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	start := time.Now()
	resp, err := client.Do(req)
	diag.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			diag.Status, diag.Error = statusTimeout, fmt.Sprintf("no response within %v", timeout)
		} else {
			diag.Status, diag.Error = statusHTTPError, err.Error()
		}
		return diag
	}
	defer func() { _ = resp.Body.Close() }()

	diag.HTTPCode = resp.StatusCode
	if final := resp.Request.URL.String(); final != feedURL {
		diag.Status = statusRedirect
		diag.RedirectURL = final
	}
	if resp.StatusCode != http.StatusOK {
		diag.Status, diag.Error = statusHTTPError, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)
		return diag
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		diag.Status, diag.Error = statusReadErr, err.Error()
		return diag
	}

	// ワーカーと同じパーサーで検査する（doctorで読めればワーカーでも読める）
	if err := inspectFeed(body, &diag); err != nil {
		diag.Status, diag.Error = statusParseErr, err.Error()
		return diag
	}

	switch {
	case diag.ItemCount == 0:
		diag.Status, diag.Error = statusEmpty, "feed has no items"
	case diag.Status != statusRedirect && isStale(diag.LatestDate):
		diag.Status = statusStale
		diag.Error = fmt.Sprintf("latest entry older than %d days", int(staleAfter.Hours()/24))
	case diag.Status != statusRedirect:
		diag.Status = statusOK
	}
	return diag
}

// inspectFeed fills in the feed type, item count, and latest entry date.
func inspectFeed(body []byte, diag *FeedDiagnostic) error {
	diag.FeedType = feedTypeName(gofeed.DetectFeedType(bytes.NewReader(body)))

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return fmt.Errorf("failed to parse feed: %v. Content preview: %s", err, preview)
	}

	diag.ItemCount = len(feed.Items)
	if len(feed.Items) == 0 {
		return nil
	}

	latest := feed.Items[0]
	switch {
	case latest.PublishedParsed != nil:
		diag.LatestDate = latest.PublishedParsed.Format(time.RFC3339)
	case latest.UpdatedParsed != nil:
		diag.LatestDate = latest.UpdatedParsed.Format(time.RFC3339)
	default:
		diag.LatestDate = latest.Published
	}
	return nil
}

func isStale(latest string) bool {
	ts, err := time.Parse(time.RFC3339, latest)
	if err != nil {
		// 日付が読めないフィードは鮮度判定の対象にしない
		return false
	}
	return time.Since(ts) > staleAfter
}

func feedTypeName(ft gofeed.FeedType) string {
	switch ft {
	case gofeed.FeedTypeRSS:
		return "RSS"
	case gofeed.FeedTypeAtom:
		return "ATOM"
	case gofeed.FeedTypeJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// partition splits results into still-delivering, stale, and broken feeds.
func partition(diags []FeedDiagnostic) (working, stale, broken []FeedDiagnostic) {
	for _, d := range diags {
		switch d.Status {
		case statusOK, statusRedirect:
			working = append(working, d)
		case statusStale:
			stale = append(stale, d)
		default:
			broken = append(broken, d)
		}
	}
	return working, stale, broken
}

func printFeed(w io.Writer, d FeedDiagnostic) {
	fmt.Fprintf(w, "Name: %s\n  URL: %s\n", d.Name, d.URL)
	fmt.Fprintf(w, "  Status: %s | HTTP: %d | Response: %dms\n", d.Status, d.HTTPCode, d.ResponseTime)
	if d.FeedType != "" {
		fmt.Fprintf(w, "  Type: %s | Items: %d | Latest: %s\n", d.FeedType, d.ItemCount, d.LatestDate)
	}
	if d.RedirectURL != "" {
		fmt.Fprintf(w, "  ⚠️  Redirected to: %s\n", d.RedirectURL)
	}
	if d.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", d.Error)
	}
	fmt.Fprintln(w)
}

func writeTextReport(diags []FeedDiagnostic) {
	f, err := os.Create("feed_diagnostic_report.txt")
	if err != nil {
		log.Printf("Failed to create report file: %v", err)
		return
	}
	defer closeFile(f)

	w := bufio.NewWriter(f)
	rule := strings.Repeat("=", 47)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Relay Feed Diagnostic Report")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Total Feeds: %d\n", len(diags))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	working, stale, broken := partition(diags)
	counts := make(map[feedStatus]int)
	for _, d := range diags {
		counts[d.Status]++
	}

	total := float64(len(diags))
	fmt.Fprintln(w, "SUMMARY:")
	fmt.Fprintf(w, "  ✅ Working: %d (%.1f%%)\n", len(working), float64(len(working))/total*100)
	fmt.Fprintf(w, "  💤 Stale: %d (%.1f%%)\n", len(stale), float64(len(stale))/total*100)
	fmt.Fprintf(w, "  ❌ Broken: %d (%.1f%%)\n", len(broken), float64(len(broken))/total*100)
	fmt.Fprintln(w, "\nSTATUS BREAKDOWN:")
	for status, count := range counts {
		fmt.Fprintf(w, "  %s: %d\n", status, count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "✅ WORKING FEEDS (%d):\n%s\n", len(working), strings.Repeat("-", 43))
	for _, d := range working {
		printFeed(w, d)
	}

	fmt.Fprintf(w, "\n💤 STALE FEEDS (%d):\n%s\n", len(stale), strings.Repeat("-", 43))
	for _, d := range stale {
		printFeed(w, d)
	}

	fmt.Fprintf(w, "\n❌ BROKEN FEEDS (%d):\n%s\n", len(broken), strings.Repeat("-", 43))
	for _, d := range broken {
		printFeed(w, d)
	}

	if err := w.Flush(); err != nil {
		log.Printf("Failed to write report: %v", err)
		return
	}
	log.Println("✅ Text report generated: feed_diagnostic_report.txt")
}

func writeJSONReport(diags []FeedDiagnostic) {
	f, err := os.Create("feed_diagnostic_report.json")
	if err != nil {
		log.Printf("Failed to create JSON report: %v", err)
		return
	}
	defer closeFile(f)

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diags); err != nil {
		log.Printf("Failed to write JSON report: %v", err)
		return
	}

	log.Println("✅ JSON report generated: feed_diagnostic_report.json")
}

// writeTopologySuggestions writes suggested edits to the feeds section of
// the relay topology: new URLs for feeds that redirect, and a commented
// list of stale and broken feeds to fix or drop.
func writeTopologySuggestions(diags []FeedDiagnostic) {
	f, err := os.Create("topology_fixes.yaml")
	if err != nil {
		log.Printf("Failed to create topology fixes file: %v", err)
		return
	}
	defer closeFile(f)

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# Suggested topology updates")
	fmt.Fprintf(w, "# Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintln(w, "# Review, then fold into the feeds section of the relay topology.")
	fmt.Fprintln(w)

	var moved []config.FeedConfig
	for _, d := range diags {
		if d.RedirectURL != "" && d.RedirectURL != d.URL {
			moved = append(moved, config.FeedConfig{Name: d.Name, URL: d.RedirectURL})
		}
	}
	if len(moved) > 0 {
		fmt.Fprintln(w, "# Feeds that redirect; point the topology at the new URL:")
		out, err := yaml.Marshal(map[string][]config.FeedConfig{"feeds": moved})
		if err != nil {
			log.Printf("Failed to marshal suggested feeds: %v", err)
		} else {
			_, _ = w.Write(out)
		}
		fmt.Fprintln(w)
	}

	_, stale, broken := partition(diags)
	if len(stale) > 0 {
		fmt.Fprintln(w, "# Stale feeds; the source may have moved or shut down:")
		for _, d := range stale {
			fmt.Fprintf(w, "#   %s (%s): latest entry %s\n", d.Name, d.URL, d.LatestDate)
		}
		fmt.Fprintln(w)
	}
	if len(broken) > 0 {
		fmt.Fprintln(w, "# Broken feeds; fix the URL or drop the entry:")
		for _, d := range broken {
			fmt.Fprintf(w, "#   %s (%s): %s %s\n", d.Name, d.URL, d.Status, strings.TrimSpace(d.Error))
		}
	}

	if err := w.Flush(); err != nil {
		log.Printf("Failed to write topology fixes: %v", err)
		return
	}
	log.Println("✅ Topology fixes generated: topology_fixes.yaml")
}

func closeFile(f *os.File) {
	if err := f.Close(); err != nil {
		log.Printf("Failed to close %s: %v", f.Name(), err)
	}
}
