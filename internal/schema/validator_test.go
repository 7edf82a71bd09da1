package payloadschema

import (
	"encoding/json"
	"testing"
)

func TestValidateRawItem(t *testing.T) {
	t.Parallel()

	item, err := ValidateRawItem(json.RawMessage(`{
		"title": "央行宣布降准",
		"url": "https://example.com/news/1",
		"source": "新华社",
		"published_at": "2026-08-27 09:30:00",
		"unknown_field": 42
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Title != "央行宣布降准" || item.URL != "https://example.com/news/1" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestValidateRawItem_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing title":    `{"url": "https://example.com/1"}`,
		"missing url":      `{"title": "标题"}`,
		"blank title":      `{"title": "  ", "url": "https://example.com/1"}`,
		"title not string": `{"title": 42, "url": "https://example.com/1"}`,
		"empty payload":    ``,
		"not json":         `<item/>`,
		"trailing content": `{"title": "标题", "url": "https://example.com/1"} extra`,
		"array payload":    `[{"title": "标题", "url": "https://example.com/1"}]`,
	}

	for name, payload := range cases {
		if _, err := ValidateRawItem(json.RawMessage(payload)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
