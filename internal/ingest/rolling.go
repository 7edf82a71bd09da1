package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the item list and its fields on a rolling-news page.
// Title and Link are evaluated relative to each Item match; Time is
// optional.
type Selectors struct {
	Item  string
	Title string
	Link  string
	Time  string
}

// RollingSource scrapes a rolling-news listing page. One source covers
// one page and column; the selectors absorb per-site markup differences.
type RollingSource struct {
	name      string
	column    string
	pageURL   string
	selectors Selectors
	client    *http.Client
}

func NewRollingSource(name, column, pageURL string, selectors Selectors, client *http.Client) *RollingSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RollingSource{
		name:      name,
		column:    column,
		pageURL:   pageURL,
		selectors: selectors,
		client:    client,
	}
}

func (s *RollingSource) Name() string { return s.name }

func (s *RollingSource) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base, err := url.Parse(s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var payloads []json.RawMessage
	var marshalErr error

	doc.Find(s.selectors.Item).Each(func(_ int, item *goquery.Selection) {
		if marshalErr != nil {
			return
		}

		title := strings.TrimSpace(item.Find(s.selectors.Title).First().Text())
		href, _ := item.Find(s.selectors.Link).First().Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || href == "" {
			return
		}

		link := href
		if parsed, err := url.Parse(href); err == nil {
			link = base.ResolveReference(parsed).String()
		}

		payload := map[string]string{
			"title":  title,
			"url":    link,
			"source": s.name,
			"column": s.column,
		}
		if s.selectors.Time != "" {
			if when := strings.TrimSpace(item.Find(s.selectors.Time).First().Text()); when != "" {
				payload["publish_time"] = when
			}
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			marshalErr = fmt.Errorf("marshal page item: %w", err)
			return
		}
		payloads = append(payloads, raw)
	})

	if marshalErr != nil {
		return nil, marshalErr
	}
	return payloads, nil
}
