package fetcher

import "errors"

// Sentinel errors for fetch policy failures. Transport-level failures are
// classified into faults instead; these cover the fetcher's own limits.
var (
	// ErrInvalidURL indicates the URL is malformed or uses an unsupported
	// scheme. Only http and https are fetchable.
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the hostname resolves to a private, loopback or
	// link-local address. Blocking these prevents SSRF through feed content.
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrExtractFailed indicates the readability pass produced no usable text.
	ErrExtractFailed = errors.New("content extraction failed")
)
