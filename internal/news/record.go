// Package news defines the record type that travels through the
// aggregation and filtering pipeline, together with its append-only
// stage trace.
package news

import (
	"time"
)

// Stage decision values recorded in a trace entry.
const (
	DecisionKept    = "kept"
	DecisionDropped = "dropped"
)

// Pipeline stage names, in execution order.
const (
	StageNormalize = "normalize"
	StageDedup     = "dedup"
	StageKeyword   = "keyword_filter"
	StageQuality   = "quality_filter"
	StageSemantic  = "semantic_filter"
)

// TraceEntry records one stage decision for a record. Entries are
// append-only; a stage never rewrites an earlier entry.
type TraceEntry struct {
	Stage    string    `json:"stage"`
	Decision string    `json:"decision"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// Record is the unit of work throughout the pipeline. Title and URL are
// required for a record to enter stage processing; everything else is
// best-effort and may stay empty.
type Record struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	ResolvedURL string     `json:"resolved_url,omitempty"`
	Source      string     `json:"source,omitempty"`
	Column      string     `json:"column,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Content     string     `json:"content,omitempty"`
	Language    string     `json:"language,omitempty"`

	StageTrace []TraceEntry `json:"stage_trace"`
}

// MarkKept appends a kept decision for the given stage.
func (r *Record) MarkKept(stage, reason string) {
	r.appendTrace(stage, DecisionKept, reason)
}

// MarkDropped appends a dropped decision for the given stage. Once a
// record carries a dropped entry, no later stage executes on it.
func (r *Record) MarkDropped(stage, reason string) {
	r.appendTrace(stage, DecisionDropped, reason)
}

func (r *Record) appendTrace(stage, decision, reason string) {
	r.StageTrace = append(r.StageTrace, TraceEntry{
		Stage:    stage,
		Decision: decision,
		Reason:   reason,
		At:       time.Now().UTC(),
	})
}

// Dropped reports whether any stage has dropped the record.
func (r *Record) Dropped() bool {
	for _, entry := range r.StageTrace {
		if entry.Decision == DecisionDropped {
			return true
		}
	}
	return false
}

// DropReason returns the reason of the dropping stage, or "" when the
// record has not been dropped.
func (r *Record) DropReason() string {
	for _, entry := range r.StageTrace {
		if entry.Decision == DecisionDropped {
			return entry.Reason
		}
	}
	return ""
}

// DropStage returns the stage that dropped the record, or "".
func (r *Record) DropStage() string {
	for _, entry := range r.StageTrace {
		if entry.Decision == DecisionDropped {
			return entry.Stage
		}
	}
	return ""
}

// EffectiveURL returns the resolved URL when redirect resolution
// succeeded and the original URL otherwise.
func (r *Record) EffectiveURL() string {
	if r.ResolvedURL != "" {
		return r.ResolvedURL
	}
	return r.URL
}
