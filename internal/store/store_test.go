package store

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/Guqie/news-workflow/internal/news"
)

func TestNewsItemFromRecord(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC)
	record := &news.Record{
		ID:          "0c7f9be2-58a4-4b1c-9d7e-5a3f1c2d4e6f",
		Title:       "央行宣布降准",
		URL:         "https://news.google.com/articles/abc",
		ResolvedURL: "https://example.com/news/1",
		Source:      "新华社",
		Column:      "金融",
		PublishedAt: &published,
		Content:     "正文",
		Language:    "zh",
	}

	item := newsItemFromRecord(record, 7)

	if item.ID != record.ID {
		t.Fatalf("id = %q", item.ID)
	}
	if item.SourceURL != "https://example.com/news/1" {
		t.Fatalf("source url must prefer the resolved url, got %q", item.SourceURL)
	}
	if item.Status != StatusPending {
		t.Fatalf("status = %q, want %q", item.Status, StatusPending)
	}
	if item.RunID != 7 {
		t.Fatalf("run id = %d", item.RunID)
	}
	if item.ColumnName != "金融" || item.Language != "zh" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestResolveGormLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level, env string
		want       logger.LogLevel
	}{
		{"debug", "local", logger.Info},
		{"debug", "production", logger.Warn},
		{"info", "local", logger.Warn},
		{"warn", "production", logger.Warn},
		{"error", "production", logger.Error},
		{"", "", logger.Warn},
	}
	for _, tc := range cases {
		if got := resolveGormLogLevel(tc.level, tc.env); got != tc.want {
			t.Fatalf("resolveGormLogLevel(%q, %q) = %v, want %v", tc.level, tc.env, got, tc.want)
		}
	}
}

func TestStore_NilReceiverGuards(t *testing.T) {
	t.Parallel()

	var s *Store
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
	if err := s.Ping(ctx); err == nil {
		t.Fatalf("Ping on nil store must fail")
	}
	if _, _, err := s.ListNews(ctx, ListFilter{}); err == nil {
		t.Fatalf("ListNews on nil store must fail")
	}
	if _, err := s.GetNews(ctx, "x"); err == nil {
		t.Fatalf("GetNews on nil store must fail")
	}
	if _, err := s.LatestRun(ctx); err == nil {
		t.Fatalf("LatestRun on nil store must fail")
	}
	if _, err := s.SaveOutcome(ctx, nil, time.Now()); err == nil {
		t.Fatalf("SaveOutcome on nil store must fail")
	}
}
