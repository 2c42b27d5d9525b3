package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"catchup-relay/internal/resilience/fault"
	"catchup-relay/internal/utils/text"

	"github.com/go-shiori/go-readability"
)

// ReadabilityFetcher fetches article pages and extracts clean text using the
// Mozilla Readability algorithm. It is a plain client: transport failures come
// back as classified faults, policy failures as this package's sentinels, and
// the delivery pipeline decides what to do with either.
//
// Enhancement is always best-effort for callers; a failed fetch means the
// feed-provided body is used instead.
//
// Thread safety: ReadabilityFetcher is safe for concurrent use.
type ReadabilityFetcher struct {
	client *http.Client
	config ContentFetchConfig
}

// NewReadabilityFetcher creates a ReadabilityFetcher with the given
// configuration. The HTTP client enforces TLS 1.2+, an overall request
// timeout, and revalidates every redirect target against the SSRF rules.
func NewReadabilityFetcher(config ContentFetchConfig) *ReadabilityFetcher {
	fetcher := &ReadabilityFetcher{config: config}

	fetcher.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= fetcher.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}

			// リダイレクト先も同じSSRFルールで検証する
			if err := validateURL(req.URL.String(), fetcher.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}

			return nil
		},
	}

	return fetcher
}

// ShouldFetch reports whether the feed-provided content is thin enough to
// warrant fetching the full article. Length is counted in runes so Japanese
// content is not penalized by its UTF-8 byte width.
func (f *ReadabilityFetcher) ShouldFetch(content string) bool {
	if !f.config.Enabled {
		return false
	}
	return text.CountRunes(content) < f.config.Threshold
}

// FetchContent fetches the page at urlStr and extracts readable article text.
//
// The fetch process:
//  1. Validate the URL (SSRF prevention)
//  2. Execute the HTTP request with the per-request timeout
//  3. Read the body under the size limit
//  4. Extract article text with Readability
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "CatchupRelayBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		// Redirect policy failures surface wrapped in *url.Error; unwrap so
		// callers can match the sentinel.
		var urlErr *url.Error
		if errors.As(err, &urlErr) &&
			(errors.Is(urlErr.Err, ErrTooManyRedirects) ||
				errors.Is(urlErr.Err, ErrInvalidURL) ||
				errors.Is(urlErr.Err, ErrPrivateIP)) {
			return "", urlErr.Err
		}
		return "", fault.Classify(err).WithContext("url", urlStr)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fault.FromHTTPStatus("content-fetch", resp.StatusCode, "content fetch failed", 0).
			WithContext("url", urlStr)
	}

	// Content-Lengthは信用せず、読みながらサイズ制限を適用する
	limitedReader := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	htmlBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return "", fault.Classify(err).WithContext("url", urlStr)
	}

	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: response exceeds %d bytes", ErrBodyTooLarge, f.config.MaxBodySize)
	}

	// Readability resolves relative links against the final URL, which may
	// differ from urlStr after redirects.
	finalURL, err := url.Parse(urlStr)
	if err != nil {
		finalURL = nil
	}
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), finalURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractFailed, err)
	}

	if article.TextContent == "" {
		if article.Content == "" {
			return "", fmt.Errorf("%w: no readable content found", ErrExtractFailed)
		}
		slog.Debug("using article Content instead of TextContent",
			slog.String("url", urlStr),
			slog.Int("content_length", len(article.Content)))
		return article.Content, nil
	}

	return article.TextContent, nil
}
