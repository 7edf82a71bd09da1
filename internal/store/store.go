// Package store persists pipeline outcomes to Postgres for editorial
// review. Curated records become pending news items; rejected records
// land in the rejection ledger with their stage and reason.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Guqie/news-workflow/internal/config"
	"github.com/Guqie/news-workflow/internal/news"
	"github.com/Guqie/news-workflow/internal/pipeline"
)

// ErrNotFound is returned by lookups for absent rows.
var ErrNotFound = errors.New("not found")

// Store wraps the gorm connection pool.
type Store struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

// Open connects, tunes the pool, and migrates the schema.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}

	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}

	return &Store{gdb: gdb, sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("store is not initialized")
	}
	return s.sqlDB.PingContext(ctx)
}

// SaveOutcome persists one pipeline run atomically: the run row, the
// curated items, and the rejection ledger.
func (s *Store) SaveOutcome(ctx context.Context, outcome *pipeline.Outcome, startedAt time.Time) (*PipelineRun, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if outcome == nil {
		return nil, fmt.Errorf("outcome is nil")
	}

	stageStats, err := json.Marshal(outcome.Stages)
	if err != nil {
		return nil, fmt.Errorf("marshal stage stats: %w", err)
	}

	finishedAt := time.Now().UTC()
	run := &PipelineRun{
		StartedAt:     startedAt.UTC(),
		FinishedAt:    &finishedAt,
		InputCount:    len(outcome.Curated) + len(outcome.Rejected),
		CuratedCount:  len(outcome.Curated),
		RejectedCount: len(outcome.Rejected),
		FailOpenCount: outcome.Semantic.FailOpen,
		StageStats:    stageStats,
	}

	err = s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("insert pipeline run: %w", err)
		}

		if len(outcome.Curated) > 0 {
			items := make([]NewsItem, 0, len(outcome.Curated))
			for _, record := range outcome.Curated {
				items = append(items, newsItemFromRecord(record, run.ID))
			}
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("insert news items: %w", err)
			}
		}

		if len(outcome.Rejected) > 0 {
			rejections := make([]Rejection, 0, len(outcome.Rejected))
			for _, record := range outcome.Rejected {
				rejections = append(rejections, Rejection{
					RecordID: record.ID,
					Title:    record.Title,
					URL:      record.EffectiveURL(),
					Stage:    record.DropStage(),
					Reason:   record.DropReason(),
					RunID:    run.ID,
				})
			}
			if err := tx.Create(&rejections).Error; err != nil {
				return fmt.Errorf("insert rejections: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

func newsItemFromRecord(record *news.Record, runID int64) NewsItem {
	return NewsItem{
		ID:          record.ID,
		Title:       record.Title,
		Content:     record.Content,
		Source:      record.Source,
		SourceURL:   record.EffectiveURL(),
		PublishDate: record.PublishedAt,
		ColumnName:  record.Column,
		Language:    record.Language,
		Status:      StatusPending,
		RunID:       runID,
	}
}

// ListFilter narrows ListNews results. Zero values mean no constraint;
// Page is 1-based.
type ListFilter struct {
	Column   string
	Status   string
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListNews returns one page of news items, newest first, plus the total
// count for the filter.
func (s *Store) ListNews(ctx context.Context, filter ListFilter) ([]NewsItem, int64, error) {
	if s == nil || s.gdb == nil {
		return nil, 0, fmt.Errorf("store is not initialized")
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := s.gdb.WithContext(ctx).Model(&NewsItem{})
	if filter.Column != "" {
		query = query.Where("column_name = ?", filter.Column)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count news items: %w", err)
	}

	var items []NewsItem
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list news items: %w", err)
	}

	return items, total, nil
}

// GetNews returns one item by id, or ErrNotFound.
func (s *Store) GetNews(ctx context.Context, id string) (*NewsItem, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("store is not initialized")
	}

	var item NewsItem
	err := s.gdb.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news item: %w", err)
	}
	return &item, nil
}

// UpdateNewsStatus moves an item through the review workflow and
// optionally records an edited title.
func (s *Store) UpdateNewsStatus(ctx context.Context, id, status, editedTitle string) (*NewsItem, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if status != StatusPending && status != StatusApproved && status != StatusRejected {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	updates := map[string]any{"status": status}
	if strings.TrimSpace(editedTitle) != "" {
		updates["edited_title"] = strings.TrimSpace(editedTitle)
	}

	result := s.gdb.WithContext(ctx).Model(&NewsItem{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("update news item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetNews(ctx, id)
}

// LatestRun returns the most recent pipeline run, or ErrNotFound when
// nothing has run yet.
func (s *Store) LatestRun(ctx context.Context) (*PipelineRun, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("store is not initialized")
	}

	var run PipelineRun
	err := s.gdb.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return &run, nil
}

// ListRejections returns the rejection ledger for a run, newest first.
func (s *Store) ListRejections(ctx context.Context, runID int64, limit int) ([]Rejection, error) {
	if s == nil || s.gdb == nil {
		return nil, fmt.Errorf("store is not initialized")
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	var rejections []Rejection
	err := s.gdb.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id DESC").
		Limit(limit).
		Find(&rejections).Error
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	return rejections, nil
}

func resolveGormLogLevel(logLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug", "trace":
		if strings.ToLower(strings.TrimSpace(environment)) == "local" {
			return logger.Info
		}
		return logger.Warn
	case "warn", "warning":
		return logger.Warn
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}
