// Package resolve enriches surviving records with their final URLs and
// extracted article text. It sits between the keyword and quality stages
// so network work is only spent on records that already passed the cheap
// gates. Resolution is best-effort and never drops a record.
package resolve

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/news"
	"github.com/Guqie/news-workflow/internal/workerpool"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultWorkers       = 10
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "news-workflow/1.0 (+https://github.com/Guqie/news-workflow)"
)

// Options configures a Resolver. Zero values fall back to the defaults
// above.
type Options struct {
	FetchTimeout  time.Duration
	PerHostDelay  time.Duration
	Workers       int
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Stats summarizes one resolution pass.
type Stats struct {
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
}

// Resolver follows redirects to the canonical article URL and extracts
// readable text for records that arrived without content.
type Resolver struct {
	httpClient    *http.Client
	limiter       *HostLimiter
	fetchTimeout  time.Duration
	workers       int
	bodyByteLimit int64
	userAgent     string
	logger        zerolog.Logger
}

func NewResolver(opts Options, logger zerolog.Logger) *Resolver {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	workers := opts.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	delay := opts.PerHostDelay
	if delay <= 0 {
		delay = DefaultPerHostDelay
	}

	return &Resolver{
		httpClient:    client,
		limiter:       NewHostLimiter(delay),
		fetchTimeout:  timeout,
		workers:       workers,
		bodyByteLimit: bodyLimit,
		userAgent:     userAgent,
		logger:        logger,
	}
}

// ResolveAll enriches every live record concurrently and blocks until
// all lookups finish. Failures are logged and counted; the record keeps
// its original URL and empty content.
func (r *Resolver) ResolveAll(ctx context.Context, records []*news.Record) Stats {
	var stats Stats

	live := make([]*news.Record, 0, len(records))
	for _, record := range records {
		if !record.Dropped() {
			live = append(live, record)
		}
	}
	if len(live) == 0 {
		return stats
	}

	results := make([]struct {
		resolved  bool
		extracted bool
		failed    bool
	}, len(live))

	tasks := make([]workerpool.Task, 0, len(live))
	for i, record := range live {
		i, record := i, record
		tasks = append(tasks, func(ctx context.Context) {
			resolved, extracted, err := r.resolveOne(ctx, record)
			if err != nil {
				r.logger.Debug().
					Err(err).
					Str("record_id", record.ID).
					Str("url", record.URL).
					Msg("resolution failed; keeping record as-is")
				results[i].failed = true
				return
			}
			results[i].resolved = resolved
			results[i].extracted = extracted
		})
	}

	if err := workerpool.Run(ctx, r.workers, tasks); err != nil {
		r.logger.Warn().Err(err).Msg("resolution pass interrupted")
	}

	stats.Attempted = len(live)
	for _, result := range results {
		if result.failed {
			stats.Failed++
			continue
		}
		if result.resolved {
			stats.Resolved++
		}
		if result.extracted {
			stats.Extracted++
		}
	}
	return stats
}

func (r *Resolver) resolveOne(ctx context.Context, record *news.Record) (resolved, extracted bool, err error) {
	parsed, err := url.Parse(record.URL)
	if err != nil {
		return false, false, fmt.Errorf("parse url: %w", err)
	}

	if err := r.limiter.Wait(ctx, parsed.Host); err != nil {
		return false, false, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, record.URL, nil)
	if err != nil {
		return false, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, false, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, false, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	// The client follows redirects; the request URL on the response is
	// the final landing URL.
	finalURL := resp.Request.URL.String()
	if finalURL != "" && finalURL != record.URL {
		record.ResolvedURL = finalURL
		resolved = true
	}

	if record.Content != "" {
		return resolved, false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.bodyByteLimit))
	if err != nil {
		return resolved, false, fmt.Errorf("read body: %w", err)
	}

	text, err := extractText(body, resp.Request.URL, resp.Header.Get("Content-Type"))
	if err != nil {
		return resolved, false, err
	}
	if text == "" {
		return resolved, false, nil
	}

	record.Content = text
	return resolved, true, nil
}

func extractText(body []byte, pageURL *url.URL, contentType string) (string, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/plain") {
		return cleanText(string(body)), nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := cleanText(rendered.String())
	if text == "" {
		text = cleanText(article.Excerpt())
	}
	return text, nil
}

// cleanText normalizes line endings and collapses in-line whitespace.
func cleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
