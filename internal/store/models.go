package store

import (
	"encoding/json"
	"time"
)

// News item review states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// NewsItem is a curated record persisted for editorial review.
type NewsItem struct {
	ID          string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"column:title;type:text;not null" json:"title"`
	EditedTitle string     `gorm:"column:edited_title;type:text" json:"edited_title,omitempty"`
	Content     string     `gorm:"column:content;type:text" json:"content,omitempty"`
	Source      string     `gorm:"column:source;type:text" json:"source,omitempty"`
	SourceURL   string     `gorm:"column:source_url;type:text;not null" json:"source_url"`
	PublishDate *time.Time `gorm:"column:publish_date;type:timestamptz" json:"publish_date,omitempty"`
	ColumnName  string     `gorm:"column:column_name;type:text;index" json:"column_name,omitempty"`
	Language    string     `gorm:"column:language;type:text" json:"language,omitempty"`
	Status      string     `gorm:"column:status;type:text;not null;default:pending;index" json:"status"`
	RunID       int64      `gorm:"column:run_id;type:bigint;index" json:"run_id"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz;not null" json:"updated_at"`
}

func (NewsItem) TableName() string { return "news_items" }

// Rejection is one ledger entry explaining why a record was filtered.
type Rejection struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RecordID  string    `gorm:"column:record_id;type:uuid;not null;index" json:"record_id"`
	Title     string    `gorm:"column:title;type:text" json:"title"`
	URL       string    `gorm:"column:url;type:text" json:"url"`
	Stage     string    `gorm:"column:stage;type:text;not null;index" json:"stage"`
	Reason    string    `gorm:"column:reason;type:text;not null" json:"reason"`
	RunID     int64     `gorm:"column:run_id;type:bigint;index" json:"run_id"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null" json:"created_at"`
}

func (Rejection) TableName() string { return "rejections" }

// PipelineRun records the aggregate statistics of one pipeline
// execution. StageStats holds the serialized per-stage ledger.
type PipelineRun struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StartedAt     time.Time       `gorm:"column:started_at;type:timestamptz;not null" json:"started_at"`
	FinishedAt    *time.Time      `gorm:"column:finished_at;type:timestamptz" json:"finished_at,omitempty"`
	InputCount    int             `gorm:"column:input_count;type:integer;not null" json:"input_count"`
	CuratedCount  int             `gorm:"column:curated_count;type:integer;not null" json:"curated_count"`
	RejectedCount int             `gorm:"column:rejected_count;type:integer;not null" json:"rejected_count"`
	FailOpenCount int             `gorm:"column:fail_open_count;type:integer;not null" json:"fail_open_count"`
	StageStats    json.RawMessage `gorm:"column:stage_stats;type:jsonb" json:"stage_stats,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:timestamptz;not null" json:"created_at"`
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

func autoMigrateModels() []any {
	return []any{
		&NewsItem{},
		&Rejection{},
		&PipelineRun{},
	}
}
