package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxURLLength caps URL length before parsing.
const maxURLLength = 2048

// ValidateURL checks that a feed or entry URL is well-formed, uses an
// http(s) scheme, and does not point into a private network. Feed URLs
// come from an operator-edited topology file, so the SSRF check matters.
func ValidateURL(rawURL string) error {
	_, err := checkURL(rawURL)
	return err
}

// ValidateWebhookURL applies the ValidateURL checks and additionally
// requires https, because webhook secrets ride in the URL path.
func ValidateWebhookURL(rawURL string) error {
	u, err := checkURL(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "webhook URL must use https"}
	}
	return nil
}

func checkURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, &ValidationError{Field: "url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return nil, &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}
	if u.Host == "" {
		return nil, &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	// SSRF対策: プライベートネットワークに向くURLを拒否する
	if ips, err := net.LookupIP(u.Hostname()); err == nil {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return nil, &ValidationError{Field: "url", Message: "url cannot point to private network"}
			}
		}
	}

	return u, nil
}

// isPrivateIP reports whether ip falls in a loopback, link-local, private,
// or unspecified range. Link-local covers the cloud metadata endpoint.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}
