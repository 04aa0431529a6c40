// Package probe implements the protocol checks: HTTP(S) artifact
// availability and download, OCSP responder status, and LDAP directory
// reachability. Every check returns a domain.Record and never an error —
// a target that cannot be reached is a finding, not a fault.
package probe

import (
	"context"
	"net/http"
	"time"
)

// Headers sent on every HTTP probe. Some repository front-ends answer
// differently to unknown clients, so the probes present themselves the way
// the original curl-based checks did.
const (
	userAgent    = "curl/8.7.1"
	acceptHeader = "*/*"
)

// Status codes that make a server "reachable" for the availability probes.
// 206 covers the ranged-GET fallback path.
func reachableCode(code int) bool { return code == http.StatusOK || code == http.StatusPartialContent }

// fallbackResult is the outcome of one probeWithFallback call. code is 0
// only when err is set; contentType is "unknown" when the header is absent.
type fallbackResult struct {
	code        int
	contentType string
	elapsed     time.Duration
}

// probeWithFallback issues a HEAD request and, when the server rejects the
// method with 403 or 405, retries once with a GET restricted to the first
// byte. Both checkers that probe HTTP endpoints go through here so the
// fallback-trigger codes stay identical. Any other failure is not retried.
func probeWithFallback(ctx context.Context, client *http.Client, rawURL string) (fallbackResult, error) {
	start := time.Now()

	resp, err := doProbe(ctx, client, http.MethodHead, rawURL, "")
	if err != nil {
		return fallbackResult{elapsed: time.Since(start)}, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = doProbe(ctx, client, http.MethodGet, rawURL, "bytes=0-0")
		if err != nil {
			return fallbackResult{elapsed: time.Since(start)}, err
		}
		resp.Body.Close()
	}

	return fallbackResult{
		code:        resp.StatusCode,
		contentType: contentTypeOf(resp),
		elapsed:     time.Since(start),
	}, nil
}

func doProbe(ctx context.Context, client *http.Client, method, rawURL, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Close = true
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	return client.Do(req)
}

func contentTypeOf(resp *http.Response) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "unknown"
}
