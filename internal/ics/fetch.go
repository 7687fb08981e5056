package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "mealcal/internal/log"
)

// ErrNetwork marks a failed feed retrieval: transport error or non-2xx.
var ErrNetwork = errors.New("network error")

const (
	defaultFetchTimeout = 15 * time.Second
	userAgent           = "mealcal/1.0 (+ics)"

	// maxFeedBytes caps how much of a response body is read.
	maxFeedBytes = 32 << 20
)

// Fetcher retrieves a single ICS feed over HTTP. It performs exactly one
// GET per call: no retries and no caching.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a new ICS Fetcher with the given request timeout.
// A non-positive timeout falls back to 15 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewFetcherWithClient is NewFetcher with a caller-supplied client.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		return NewFetcher(0)
	}
	return &Fetcher{client: client}
}

// Fetch performs the GET and returns the raw body. Every failure wraps
// ErrNetwork.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: source URL is empty", ErrNetwork)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "url", redactURL(url))
	started := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	appLog.Info("ics fetch success",
		"url", redactURL(url),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://calendar.google.com/calendar/ical/x/private-abcd/basic.ics
//	-> https://calendar.google.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	// Find next slash (or query) after host.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
