package pipeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/langdetect"
	"github.com/Guqie/news-workflow/internal/news"
	payloadschema "github.com/Guqie/news-workflow/internal/schema"
)

// ReasonMissingRequiredField marks payloads rejected before stage 1.
const ReasonMissingRequiredField = "missing_required_field"

// DefaultTimeFormats are the accepted publish-time layouts, tried in
// order. Sources mix RFC formats with bare dates and CJK layouts.
var DefaultTimeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006年01月02日 15:04",
	"2006年01月02日",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizerOptions configures payload normalization.
type NormalizerOptions struct {
	// TimeFormats overrides DefaultTimeFormats when non-empty.
	TimeFormats []string
	// DetectLanguage enables best-effort title language tagging.
	DetectLanguage bool
}

// Normalizer canonicalizes heterogeneous source payloads into Records.
// It is a pure transformation: unknown fields are ignored, unparseable
// timestamps are stored as absent, and nothing aborts the run.
type Normalizer struct {
	timeFormats    []string
	detectLanguage bool
	logger         zerolog.Logger
}

func NewNormalizer(opts NormalizerOptions, logger zerolog.Logger) *Normalizer {
	formats := opts.TimeFormats
	if len(formats) == 0 {
		formats = DefaultTimeFormats
	}
	return &Normalizer{
		timeFormats:    formats,
		detectLanguage: opts.DetectLanguage,
		logger:         logger,
	}
}

// Normalize converts one raw payload into a Record. Payloads missing a
// title or URL come back marked dropped with ReasonMissingRequiredField;
// they never reach stage 1.
func (n *Normalizer) Normalize(payload json.RawMessage) *news.Record {
	record := &news.Record{ID: uuid.NewString()}

	item, err := payloadschema.ValidateRawItem(payload)
	if err != nil {
		n.logger.Warn().
			Err(err).
			Str("record_id", record.ID).
			Msg("payload schema validation failed; falling back to lenient extraction")
		item = lenientExtract(payload)
	}

	record.Title = strings.TrimSpace(item.Title)
	record.URL = strings.TrimSpace(item.URL)
	record.Source = strings.TrimSpace(item.Source)
	record.Column = strings.TrimSpace(item.Column)
	record.Content = strings.TrimSpace(item.Content)

	if record.Title == "" || record.URL == "" {
		record.MarkDropped(news.StageNormalize, ReasonMissingRequiredField)
		return record
	}

	record.PublishedAt = n.parseTimestamp(item.PublishedAt, item.PublishTime)
	if n.detectLanguage {
		record.Language = langdetect.DetectISO6391(record.Title)
	}

	record.MarkKept(news.StageNormalize, "normalized")
	return record
}

// NormalizeAll converts a batch of raw payloads, preserving input order.
func (n *Normalizer) NormalizeAll(payloads []json.RawMessage) []*news.Record {
	records := make([]*news.Record, 0, len(payloads))
	for _, payload := range payloads {
		records = append(records, n.Normalize(payload))
	}
	return records
}

func (n *Normalizer) parseTimestamp(candidates ...string) *time.Time {
	for _, raw := range candidates {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		for _, layout := range n.timeFormats {
			if parsed, err := time.Parse(layout, value); err == nil {
				utc := parsed.UTC()
				return &utc
			}
		}
		n.logger.Debug().Str("value", value).Msg("publish time did not match any accepted format")
	}
	return nil
}

// lenientExtract pulls the recognized fields out of a payload that
// failed schema validation. Missing fields stay empty and are handled by
// the required-field check.
func lenientExtract(payload json.RawMessage) *payloadschema.RawItem {
	var loose map[string]any
	if err := json.Unmarshal(payload, &loose); err != nil {
		return &payloadschema.RawItem{}
	}

	str := func(key string) string {
		if v, ok := loose[key].(string); ok {
			return v
		}
		return ""
	}

	return &payloadschema.RawItem{
		Title:       str("title"),
		URL:         str("url"),
		Source:      str("source"),
		Column:      str("column"),
		PublishedAt: str("published_at"),
		PublishTime: str("publish_time"),
		Content:     str("content"),
	}
}
