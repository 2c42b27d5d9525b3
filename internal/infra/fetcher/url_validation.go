// Package fetcher retrieves full article content for feed entries whose
// feed-provided body is a stub.
package fetcher

import (
	"fmt"
	"net"
	"net/url"
)

// validateURL guards every outbound content fetch, including each redirect
// hop, against SSRF through attacker-controlled entry links. Only http and
// https are allowed, and with denyPrivateIPs set the hostname must not
// resolve to a loopback, private, link-local or unspecified address.
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme '%s' not allowed (only http/https)", ErrInvalidURL, u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrInvalidURL)
	}
	if !denyPrivateIPs {
		return nil
	}

	// DNS解決して内部ネットワークへのアクセスを防ぐ
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", ErrInvalidURL, hostname, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname '%s' resolves to private IP %s", ErrPrivateIP, hostname, ip)
		}
	}
	return nil
}

// isPrivateIP reports whether connecting to ip would leave the public
// internet: loopback, RFC1918/ULA private, link-local (the v4 metadata
// endpoint lives there) or the unspecified address, v4 and v6 alike.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
