package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
)

// GoogleNewsSearchURL builds a Google News RSS search feed for a query.
// windowHours > 0 restricts results with a when: operator. Result links
// are redirect URLs; the resolve stage unwraps them.
func GoogleNewsSearchURL(query string, windowHours int) string {
	if windowHours > 0 {
		query = fmt.Sprintf("%s when:%dh", query, windowHours)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "zh-CN")
	params.Set("gl", "CN")
	params.Set("ceid", "CN:zh-Hans")
	return "https://news.google.com/rss/search?" + params.Encode()
}

// RSSSource reads one or more RSS/Atom feeds and emits their entries as
// raw payloads tagged with a column.
type RSSSource struct {
	name   string
	column string
	urls   []string
	parser *gofeed.Parser
}

func NewRSSSource(name, column string, urls []string) *RSSSource {
	return &RSSSource{
		name:   name,
		column: column,
		urls:   urls,
		parser: gofeed.NewParser(),
	}
}

// NewGoogleNewsSource builds an RSS source over Google News search
// feeds, one feed per query term.
func NewGoogleNewsSource(column string, queries []string, windowHours int) *RSSSource {
	urls := make([]string, 0, len(queries))
	for _, query := range queries {
		urls = append(urls, GoogleNewsSearchURL(query, windowHours))
	}
	return NewRSSSource("google-news", column, urls)
}

func (s *RSSSource) Name() string { return s.name }

// Fetch parses every configured feed. A single unreachable feed fails
// the whole source; the caller decides whether to continue.
func (s *RSSSource) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	var payloads []json.RawMessage

	for _, feedURL := range s.urls {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
		}

		for _, item := range feed.Items {
			payload := map[string]string{
				"title":  item.Title,
				"url":    item.Link,
				"source": itemSource(feed, item),
				"column": s.column,
			}
			if item.PublishedParsed != nil {
				payload["published_at"] = item.PublishedParsed.UTC().Format(time.RFC3339)
			} else if item.Published != "" {
				payload["published_at"] = item.Published
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal feed item: %w", err)
			}
			payloads = append(payloads, raw)
		}
	}

	return payloads, nil
}

// itemSource prefers the per-item source element Google News feeds
// carry, falling back to the feed title.
func itemSource(feed *gofeed.Feed, item *gofeed.Item) string {
	if item.Custom != nil {
		if source := item.Custom["source"]; source != "" {
			return source
		}
	}
	return feed.Title
}
