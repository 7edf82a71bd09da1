package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRun_UnknownCommand(t *testing.T) {
	if code := Run([]string{"bogus"}); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRun_NoArgs(t *testing.T) {
	if code := Run(nil); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRun_Help(t *testing.T) {
	if code := Run([]string{"help"}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	if err := os.WriteFile(valid, []byte(`{"title": "央行宣布降准", "url": "https://example.com/1"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	batch := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(batch, []byte(`[
		{"title": "第一条", "url": "https://example.com/1"},
		{"title": "第二条", "url": "https://example.com/2"}
	]`), 0o600); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.json")
	if err := os.WriteFile(invalid, []byte(`[{"title": "缺少链接"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := validateFile(valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := validateFile(batch); err != nil {
		t.Fatalf("valid batch rejected: %v", err)
	}
	if err := validateFile(invalid); err == nil {
		t.Fatalf("payload without url must fail validation")
	}
}

func TestRunValidate_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	if err := os.WriteFile(valid, []byte(`{"title": "央行宣布降准", "url": "https://example.com/1"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if code := runValidate([]string{valid}); code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if code := runValidate(nil); code != 2 {
		t.Fatalf("no-args exit code = %d, want 2", code)
	}
	if code := runValidate([]string{filepath.Join(dir, "missing.json")}); code != 1 {
		t.Fatalf("missing-file exit code = %d, want 1", code)
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "sources.json")
	if err := os.WriteFile(path, []byte(`{
		"google_news": [{"column": "金融", "queries": ["央行", "ETF"]}],
		"rolling": [{
			"name": "finance-roll",
			"column": "产经",
			"url": "https://example.com/roll",
			"selectors": {"item": "li.news-item", "title": "a", "link": "a", "time": "span.time"}
		}]
	}`), 0o600); err != nil {
		t.Fatal(err)
	}

	sources, err := loadSources(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name() != "google-news" || sources[1].Name() != "finance-roll" {
		t.Fatalf("sources = %s, %s", sources[0].Name(), sources[1].Name())
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSources(empty); err == nil {
		t.Fatalf("empty catalogue must be rejected")
	}
}
