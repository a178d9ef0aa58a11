package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	appLog "gglcd/internal/log"
)

// DefaultFetchTimeout bounds a single feed download.
const DefaultFetchTimeout = 15 * time.Second

// maxFeedSize guards against a misconfigured URL streaming something huge.
const maxFeedSize = 8 << 20

type cached struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads ICS feeds with conditional requests. The last good body
// per URL is kept in memory and served on 304, network errors and non-OK
// answers.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]cached
}

// NewFetcher returns a Fetcher. A nil client gets a 15s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Fetcher{
		client: client,
		cache:  make(map[string]cached),
	}
}

// Fetch returns the feed body at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("ics: feed URL is empty")
	}

	f.mu.Lock()
	prev, hasPrev := f.cache[rawURL]
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: build request: %w", err)
	}
	if prev.etag != "" {
		req.Header.Set("If-None-Match", prev.etag)
	}
	if prev.lastModified != "" {
		req.Header.Set("If-Modified-Since", prev.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if hasPrev {
			appLog.Error("ics fetch failed, using cached feed", err, "url", redactURL(rawURL))
			return prev.body, nil
		}
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && hasPrev:
		appLog.Debug("ics feed not modified", "url", redactURL(rawURL))
		return prev.body, nil

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
		if err != nil {
			return nil, fmt.Errorf("ics: read %s: %w", redactURL(rawURL), err)
		}
		f.mu.Lock()
		f.cache[rawURL] = cached{
			etag:         resp.Header.Get("ETag"),
			lastModified: resp.Header.Get("Last-Modified"),
			body:         body,
		}
		f.mu.Unlock()
		appLog.Info("ics feed fetched", "url", redactURL(rawURL), "bytes", len(body))
		return body, nil

	default:
		if hasPrev {
			appLog.Error("ics fetch non-OK, using cached feed", errors.New(resp.Status), "url", redactURL(rawURL))
			return prev.body, nil
		}
		return nil, fmt.Errorf("ics: fetch %s: %s", redactURL(rawURL), resp.Status)
	}
}

// redactURL keeps scheme and host only; private feed URLs carry tokens in
// the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
