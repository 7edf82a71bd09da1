// Package judge talks to the LLM endpoint that renders keep/drop
// verdicts for the semantic filter stage. The client is transport only;
// fail-open policy lives with the caller.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultModel          = "claude-3-5-haiku-20241022"
	DefaultRequestTimeout = 180 * time.Second
	defaultMaxTokens      = 4096

	apiVersion = "2023-06-01"
)

// ErrIncompleteCoverage indicates the model response did not cover every
// submitted item exactly once. Callers treat it like any transport
// failure and keep the whole sub-batch.
var ErrIncompleteCoverage = errors.New("verdicts do not cover all submitted items")

// systemInstruction frames the judgment task. Verdicts must come back as
// a bare JSON array so the response survives strict decoding.
const systemInstruction = `你是一名财经新闻编辑，负责判断新闻是否值得收录。
对每条新闻，根据标题和来源判断它是否是有实质内容的财经/产经新闻。
营销软文、八卦、与财经无关的内容应当排除。
只输出一个JSON数组，格式为 [{"id": 0, "keep": true, "reason": "..."}]，
每条输入新闻恰好对应一个元素，不要输出任何其他文字。`

// Item is one headline submitted for judgment. ID is a caller-assigned
// integer echoed back in the verdict.
type Item struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
}

// Verdict is the model's decision for one item.
type Verdict struct {
	ID     int    `json:"id"`
	Keep   bool   `json:"keep"`
	Reason string `json:"reason,omitempty"`
}

// Config carries the endpoint settings. APIKey is read from the
// environment; it is never logged.
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// Client submits judgment batches over the messages API.
type Client struct {
	endpoint       string
	apiKey         string
	model          string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		endpoint:       cfg.Endpoint,
		apiKey:         cfg.APIKey,
		model:          model,
		requestTimeout: timeout,
		httpClient:     &http.Client{},
		logger:         logger,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Judge submits one sub-batch and returns a verdict per item. The error
// is non-nil whenever the verdicts cannot be trusted for every item:
// transport failure, non-2xx status, malformed response, or incomplete
// coverage.
func (c *Client) Judge(ctx context.Context, items []Item) ([]Verdict, error) {
	if c == nil {
		return nil, fmt.Errorf("judge client is not initialized")
	}
	if len(items) == 0 {
		return nil, nil
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("judge endpoint is not configured")
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal judgment items: %w", err)
	}

	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System:    systemInstruction,
		Messages: []message{
			{Role: "user", Content: string(itemsJSON)},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal judgment request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build judgment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judgment request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read judgment response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("judge service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode judgment response: %w", err)
	}

	text := ""
	for _, block := range parsed.Content {
		if block.Type == "" || block.Type == "text" {
			text += block.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("judgment response carries no text content")
	}

	verdicts, err := parseVerdicts(text)
	if err != nil {
		return nil, err
	}
	if err := checkCoverage(items, verdicts); err != nil {
		return nil, err
	}
	return verdicts, nil
}

func parseVerdicts(text string) ([]Verdict, error) {
	cleaned := stripCodeFence(text)

	var verdicts []Verdict
	if err := json.Unmarshal([]byte(cleaned), &verdicts); err != nil {
		return nil, fmt.Errorf("parse verdicts: %w", err)
	}
	return verdicts, nil
}

// stripCodeFence removes a surrounding markdown fence. Models sometimes
// wrap the array in ```json blocks despite the instruction.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func checkCoverage(items []Item, verdicts []Verdict) error {
	if len(verdicts) != len(items) {
		return fmt.Errorf("%w: submitted=%d returned=%d", ErrIncompleteCoverage, len(items), len(verdicts))
	}

	seen := make(map[int]bool, len(verdicts))
	for _, verdict := range verdicts {
		if seen[verdict.ID] {
			return fmt.Errorf("%w: duplicate verdict for id %d", ErrIncompleteCoverage, verdict.ID)
		}
		seen[verdict.ID] = true
	}
	for _, item := range items {
		if !seen[item.ID] {
			return fmt.Errorf("%w: missing verdict for id %d", ErrIncompleteCoverage, item.ID)
		}
	}
	return nil
}
