package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/judge"
	"github.com/Guqie/news-workflow/internal/news"
	"github.com/Guqie/news-workflow/internal/workerpool"
)

// Semantic stage defaults.
const (
	DefaultSemanticBatchSize = 50
	DefaultSemanticWorkers   = 4
)

// Semantic stage trace reasons.
const (
	ReasonSemanticApproved    = "semantic_approved"
	ReasonSemanticRejected    = "semantic_rejected"
	ReasonSemanticUnavailable = "semantic_filter_unavailable"
)

// Judger renders keep/drop verdicts for a batch of items.
type Judger interface {
	Judge(ctx context.Context, items []judge.Item) ([]judge.Verdict, error)
}

// SemanticStats summarizes one semantic stage execution. FailOpen counts
// records kept because their sub-batch could not be judged.
type SemanticStats struct {
	Kept        int            `json:"kept"`
	Dropped     int            `json:"dropped"`
	FailOpen    int            `json:"fail_open"`
	DropReasons map[string]int `json:"drop_reasons,omitempty"`
}

// SemanticFilter is the last pipeline stage. Surviving records are
// split into sub-batches judged concurrently; any sub-batch whose
// verdicts cannot be trusted is kept wholesale. The stage degrades, it
// never aborts the run.
type SemanticFilter struct {
	judger    Judger
	batchSize int
	workers   int
	logger    zerolog.Logger
}

func NewSemanticFilter(judger Judger, batchSize, workers int, logger zerolog.Logger) *SemanticFilter {
	if batchSize < 1 {
		batchSize = DefaultSemanticBatchSize
	}
	if workers < 1 {
		workers = DefaultSemanticWorkers
	}
	return &SemanticFilter{
		judger:    judger,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
	}
}

// Apply judges every live record and returns the stage statistics.
func (f *SemanticFilter) Apply(ctx context.Context, records []*news.Record) SemanticStats {
	stats := SemanticStats{DropReasons: make(map[string]int)}

	live := make([]*news.Record, 0, len(records))
	for _, record := range records {
		if !record.Dropped() {
			live = append(live, record)
		}
	}
	if len(live) == 0 {
		return stats
	}

	var mu sync.Mutex

	tasks := make([]workerpool.Task, 0, (len(live)+f.batchSize-1)/f.batchSize)
	for start := 0; start < len(live); start += f.batchSize {
		end := start + f.batchSize
		if end > len(live) {
			end = len(live)
		}
		batch := live[start:end]

		tasks = append(tasks, func(ctx context.Context) {
			batchStats := f.judgeBatch(ctx, batch)
			mu.Lock()
			stats.Kept += batchStats.Kept
			stats.Dropped += batchStats.Dropped
			stats.FailOpen += batchStats.FailOpen
			for reason, count := range batchStats.DropReasons {
				stats.DropReasons[reason] += count
			}
			mu.Unlock()
		})
	}

	if err := workerpool.Run(ctx, f.workers, tasks); err != nil {
		f.logger.Warn().Err(err).Msg("semantic stage interrupted; keeping unjudged records")
	}

	// Sub-batches abandoned by cancellation never ran; their records get
	// the fail-open treatment so every record leaves with a decision.
	for _, record := range live {
		if !hasStageEntry(record, news.StageSemantic) {
			record.MarkKept(news.StageSemantic, ReasonSemanticUnavailable)
			stats.Kept++
			stats.FailOpen++
		}
	}

	return stats
}

// judgeBatch judges one sub-batch. Items are keyed by their position in
// the batch so verdicts reassemble regardless of response order.
func (f *SemanticFilter) judgeBatch(ctx context.Context, batch []*news.Record) SemanticStats {
	stats := SemanticStats{DropReasons: make(map[string]int)}

	items := make([]judge.Item, 0, len(batch))
	for i, record := range batch {
		items = append(items, judge.Item{
			ID:     i,
			Title:  record.Title,
			Source: record.Source,
		})
	}

	verdicts, err := f.judger.Judge(ctx, items)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Int("batch_size", len(batch)).
			Msg("semantic judgment failed; keeping whole sub-batch")
		for _, record := range batch {
			record.MarkKept(news.StageSemantic, ReasonSemanticUnavailable)
		}
		stats.Kept = len(batch)
		stats.FailOpen = len(batch)
		return stats
	}

	for _, verdict := range verdicts {
		if verdict.ID < 0 || verdict.ID >= len(batch) {
			continue
		}
		record := batch[verdict.ID]

		if verdict.Keep {
			record.MarkKept(news.StageSemantic, ReasonSemanticApproved)
			stats.Kept++
			continue
		}

		reason := verdict.Reason
		if reason == "" {
			reason = ReasonSemanticRejected
		}
		record.MarkDropped(news.StageSemantic, reason)
		stats.Dropped++
		stats.DropReasons[reason]++
	}

	return stats
}

func hasStageEntry(record *news.Record, stage string) bool {
	for _, entry := range record.StageTrace {
		if entry.Stage == stage {
			return true
		}
	}
	return false
}
