package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func textResponse(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return body
}

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:       endpoint,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
	}, zerolog.Nop())
}

func TestClient_Judge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req struct {
			Model    string `json:"model"`
			System   string `json:"system"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System == "" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request shape: %+v", req)
		}
		// Item ids go over the wire as JSON numbers.
		if !strings.Contains(req.Messages[0].Content, `"id":0`) {
			t.Errorf("items not serialized with integer ids: %s", req.Messages[0].Content)
		}

		w.Write(textResponse(t, `[
			{"id": 0, "keep": true, "reason": "实质性财经新闻"},
			{"id": 1, "keep": false, "reason": "营销软文"}
		]`))
	}))
	defer server.Close()

	verdicts, err := newTestClient(server.URL).Judge(context.Background(), []Item{
		{ID: 0, Title: "央行宣布降准", Source: "新华社"},
		{ID: 1, Title: "点击领取理财大礼包"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if !verdicts[0].Keep || verdicts[1].Keep {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}
}

func TestClient_Judge_StripsCodeFence(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(textResponse(t, "```json\n[{\"id\": 0, \"keep\": true}]\n```"))
	}))
	defer server.Close()

	verdicts, err := newTestClient(server.URL).Judge(context.Background(), []Item{{ID: 0, Title: "标题"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 1 || !verdicts[0].Keep {
		t.Fatalf("unexpected verdicts: %+v", verdicts)
	}
}

func TestClient_Judge_IncompleteCoverage(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing item":  `[{"id": 0, "keep": true}]`,
		"duplicate id":  `[{"id": 0, "keep": true}, {"id": 0, "keep": false}]`,
		"unknown id":    `[{"id": 0, "keep": true}, {"id": 7, "keep": false}]`,
		"extra verdict": `[{"id": 0, "keep": true}, {"id": 1, "keep": true}, {"id": 2, "keep": true}]`,
	}

	for name, response := range cases {
		response := response
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(textResponse(t, response))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Judge(context.Background(), []Item{
				{ID: 0, Title: "标题一"},
				{ID: 1, Title: "标题二"},
			})
			if !errors.Is(err, ErrIncompleteCoverage) {
				t.Fatalf("expected ErrIncompleteCoverage, got %v", err)
			}
		})
	}
}

func TestClient_Judge_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Judge(context.Background(), []Item{{ID: 0, Title: "标题"}})
	if err == nil {
		t.Fatalf("expected error for 503 response")
	}
}

func TestClient_Judge_Timeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(Config{
		Endpoint:       server.URL,
		APIKey:         "test-key",
		RequestTimeout: 50 * time.Millisecond,
	}, zerolog.Nop())

	_, err := client.Judge(context.Background(), []Item{{ID: 0, Title: "标题"}})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestClient_Judge_EmptyBatch(t *testing.T) {
	t.Parallel()

	verdicts, err := newTestClient("http://127.0.0.1:0").Judge(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdicts != nil {
		t.Fatalf("expected nil verdicts for empty batch")
	}
}
