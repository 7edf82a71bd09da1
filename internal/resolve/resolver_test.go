package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/news"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>央行宣布降准</title></head>
<body>
<article>
<h1>央行宣布降准</h1>
<p>中国人民银行今日宣布，下调金融机构存款准备金率0.5个百分点。
此次降准预计释放长期资金约一万亿元，用于支持实体经济发展。
分析人士认为，此举有助于保持流动性合理充裕，降低社会综合融资成本。</p>
<p>业内专家表示，降准释放的资金将重点流向小微企业和制造业，
对于稳定市场预期、提振经营主体信心具有积极意义。</p>
</article>
</body>
</html>`

func testResolver(client *http.Client) *Resolver {
	return NewResolver(Options{
		FetchTimeout: 5 * time.Second,
		PerHostDelay: time.Millisecond,
		Workers:      2,
		HTTPClient:   client,
	}, zerolog.Nop())
}

func TestResolver_FollowsRedirectsAndExtractsContent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/article", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	record := &news.Record{ID: "a", Title: "央行宣布降准", URL: server.URL + "/redirect"}
	stats := testResolver(server.Client()).ResolveAll(context.Background(), []*news.Record{record})

	if stats.Attempted != 1 || stats.Resolved != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if record.ResolvedURL != server.URL+"/article" {
		t.Fatalf("resolved url = %q, want %q", record.ResolvedURL, server.URL+"/article")
	}
	if record.EffectiveURL() != server.URL+"/article" {
		t.Fatalf("effective url = %q", record.EffectiveURL())
	}
	if !strings.Contains(record.Content, "存款准备金率") {
		t.Fatalf("content not extracted: %q", record.Content)
	}
}

func TestResolver_FailureLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	record := &news.Record{ID: "a", Title: "标题", URL: server.URL + "/missing"}
	stats := testResolver(server.Client()).ResolveAll(context.Background(), []*news.Record{record})

	if stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if record.ResolvedURL != "" || record.Content != "" {
		t.Fatalf("failed resolution must not modify the record: %+v", record)
	}
	if record.Dropped() {
		t.Fatalf("resolution never drops records")
	}
	if record.EffectiveURL() != record.URL {
		t.Fatalf("effective url must fall back to the original")
	}
}

func TestResolver_ExistingContentIsPreserved(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	record := &news.Record{
		ID:      "a",
		Title:   "标题",
		URL:     server.URL + "/article",
		Content: "来源已提供的正文",
	}
	testResolver(server.Client()).ResolveAll(context.Background(), []*news.Record{record})

	if record.Content != "来源已提供的正文" {
		t.Fatalf("source-provided content must not be overwritten: %q", record.Content)
	}
}

func TestResolver_SkipsDroppedRecords(t *testing.T) {
	t.Parallel()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	record := &news.Record{ID: "a", Title: "标题", URL: server.URL}
	record.MarkDropped(news.StageKeyword, "no_keyword_match")

	stats := testResolver(server.Client()).ResolveAll(context.Background(), []*news.Record{record})

	if requests != 0 {
		t.Fatalf("dropped records must not be fetched, saw %d requests", requests)
	}
	if stats.Attempted != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHostLimiter_SpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	const delay = 30 * time.Millisecond
	limiter := NewHostLimiter(delay)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background(), "news.example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 2*delay {
		t.Fatalf("three same-host requests finished in %v, want >= %v", elapsed, 2*delay)
	}
}

func TestHostLimiter_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := NewHostLimiter(200 * time.Millisecond)

	if err := limiter.Wait(context.Background(), "a.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(context.Background(), "b.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("different host waited %v on another host's slot", elapsed)
	}
}

func TestHostLimiter_CancelledWait(t *testing.T) {
	t.Parallel()

	limiter := NewHostLimiter(time.Minute)
	if err := limiter.Wait(context.Background(), "slow.example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "slow.example.com"); err == nil {
		t.Fatalf("expected context error while waiting for the slot")
	}
}
