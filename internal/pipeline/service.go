// Package pipeline implements the cascading filter pipeline: normalize,
// dedup, keyword filter, quality filter, semantic filter. Stages run in
// a fixed order and a record dropped by one stage is invisible to the
// next.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/news"
	"github.com/Guqie/news-workflow/internal/resolve"
)

// ContentResolver enriches records with final URLs and article text
// between the keyword and quality stages. It is optional; a nil resolver
// skips enrichment entirely.
type ContentResolver interface {
	ResolveAll(ctx context.Context, records []*news.Record) resolve.Stats
}

// StageStats is the per-stage count ledger. Input = Kept + Dropped holds
// for every stage.
type StageStats struct {
	Stage   string `json:"stage"`
	Input   int    `json:"input"`
	Kept    int    `json:"kept"`
	Dropped int    `json:"dropped"`
}

// Outcome is the result of one pipeline run. Curated and Rejected
// together account for every input payload.
type Outcome struct {
	Curated  []*news.Record `json:"curated"`
	Rejected []*news.Record `json:"rejected"`

	Stages       []StageStats   `json:"stages"`
	Resolve      resolve.Stats  `json:"resolve"`
	Semantic     SemanticStats  `json:"semantic"`
	CategoryHits map[string]int `json:"category_hits,omitempty"`
}

// Service runs the full cascade over a batch of raw payloads.
type Service struct {
	normalizer *Normalizer
	dedup      *Deduplicator
	keyword    *KeywordFilter
	resolver   ContentResolver
	quality    *QualityFilter
	semantic   *SemanticFilter
	logger     zerolog.Logger
}

func NewService(
	normalizer *Normalizer,
	dedup *Deduplicator,
	keyword *KeywordFilter,
	resolver ContentResolver,
	quality *QualityFilter,
	semantic *SemanticFilter,
	logger zerolog.Logger,
) *Service {
	return &Service{
		normalizer: normalizer,
		dedup:      dedup,
		keyword:    keyword,
		resolver:   resolver,
		quality:    quality,
		semantic:   semantic,
		logger:     logger,
	}
}

// Process runs every stage over the batch and returns the outcome. The
// error is reserved for invalid service wiring; per-record problems are
// expressed as rejections, and semantic outages degrade to fail-open.
func (s *Service) Process(ctx context.Context, payloads []json.RawMessage) (*Outcome, error) {
	if s == nil || s.normalizer == nil || s.dedup == nil || s.keyword == nil || s.quality == nil || s.semantic == nil {
		return nil, fmt.Errorf("pipeline service is not initialized")
	}

	outcome := &Outcome{}

	records := s.normalizer.NormalizeAll(payloads)
	live := countLive(records)
	outcome.Stages = append(outcome.Stages, StageStats{
		Stage:   news.StageNormalize,
		Input:   len(records),
		Kept:    live,
		Dropped: len(records) - live,
	})

	live = s.runStage(news.StageDedup, records, live, outcome, func() {
		s.dedup.Apply(records)
	})

	live = s.runStage(news.StageKeyword, records, live, outcome, func() {
		s.keyword.Apply(records)
	})
	outcome.CategoryHits = s.keyword.CategoryHits()

	// Resolution is enrichment, not filtering: it runs after the cheap
	// gates so network work is only spent on survivors, and it never
	// changes the live count.
	if s.resolver != nil {
		outcome.Resolve = s.resolver.ResolveAll(ctx, records)
	}

	live = s.runStage(news.StageQuality, records, live, outcome, func() {
		s.quality.Apply(records)
	})

	s.runStage(news.StageSemantic, records, live, outcome, func() {
		outcome.Semantic = s.semantic.Apply(ctx, records)
	})

	for _, record := range records {
		if record.Dropped() {
			outcome.Rejected = append(outcome.Rejected, record)
		} else {
			outcome.Curated = append(outcome.Curated, record)
		}
	}

	s.logger.Info().
		Int("input", len(payloads)).
		Int("curated", len(outcome.Curated)).
		Int("rejected", len(outcome.Rejected)).
		Int("semantic_fail_open", outcome.Semantic.FailOpen).
		Msg("pipeline run complete")

	return outcome, nil
}

func (s *Service) runStage(stage string, records []*news.Record, input int, outcome *Outcome, apply func()) int {
	apply()

	kept := countLive(records)
	outcome.Stages = append(outcome.Stages, StageStats{
		Stage:   stage,
		Input:   input,
		Kept:    kept,
		Dropped: input - kept,
	})

	s.logger.Debug().
		Str("stage", stage).
		Int("input", input).
		Int("kept", kept).
		Int("dropped", input-kept).
		Msg("stage complete")

	return kept
}

func countLive(records []*news.Record) int {
	live := 0
	for _, record := range records {
		if !record.Dropped() {
			live++
		}
	}
	return live
}
