package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Guqie/news-workflow/internal/ingest"
)

// sourcesConfig is the on-disk source catalogue.
type sourcesConfig struct {
	GoogleNews []googleNewsEntry `json:"google_news"`
	RSS        []rssEntry        `json:"rss"`
	Rolling    []rollingEntry    `json:"rolling"`
}

type googleNewsEntry struct {
	Column      string   `json:"column"`
	Queries     []string `json:"queries"`
	WindowHours int      `json:"window_hours"`
}

type rssEntry struct {
	Name   string   `json:"name"`
	Column string   `json:"column"`
	URLs   []string `json:"urls"`
}

type rollingEntry struct {
	Name      string `json:"name"`
	Column    string `json:"column"`
	URL       string `json:"url"`
	Selectors struct {
		Item  string `json:"item"`
		Title string `json:"title"`
		Link  string `json:"link"`
		Time  string `json:"time"`
	} `json:"selectors"`
}

// loadSources reads the source catalogue and builds the adapters.
func loadSources(path string) ([]ingest.Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", path, err)
	}

	var cfg sourcesConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}

	var sources []ingest.Source

	for i, entry := range cfg.GoogleNews {
		if len(entry.Queries) == 0 {
			return nil, fmt.Errorf("google_news[%d]: queries must not be empty", i)
		}
		sources = append(sources, ingest.NewGoogleNewsSource(entry.Column, entry.Queries, entry.WindowHours))
	}

	for i, entry := range cfg.RSS {
		if len(entry.URLs) == 0 {
			return nil, fmt.Errorf("rss[%d]: urls must not be empty", i)
		}
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("rss-%d", i)
		}
		sources = append(sources, ingest.NewRSSSource(name, entry.Column, entry.URLs))
	}

	for i, entry := range cfg.Rolling {
		if strings.TrimSpace(entry.URL) == "" {
			return nil, fmt.Errorf("rolling[%d]: url is required", i)
		}
		if entry.Selectors.Item == "" || entry.Selectors.Title == "" || entry.Selectors.Link == "" {
			return nil, fmt.Errorf("rolling[%d]: selectors item, title, and link are required", i)
		}
		name := entry.Name
		if name == "" {
			name = fmt.Sprintf("rolling-%d", i)
		}
		sources = append(sources, ingest.NewRollingSource(name, entry.Column, entry.URL, ingest.Selectors{
			Item:  entry.Selectors.Item,
			Title: entry.Selectors.Title,
			Link:  entry.Selectors.Link,
			Time:  entry.Selectors.Time,
		}, nil))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("sources %s: no sources configured", path)
	}
	return sources, nil
}
