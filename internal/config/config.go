package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries every runtime knob for a pipeline run. It is built once
// at startup and passed into stage constructors; no component reads
// ambient state after that.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMaxConns  int32  `envconfig:"NW_DB_MAX_CONNS" default:"8"`
	DBMinConns  int32  `envconfig:"NW_DB_MIN_CONNS" default:"1"`

	KeywordRulesPath string `envconfig:"KEYWORD_RULES_PATH" default:"config/keyword_rules.json"`
	QualityRulesPath string `envconfig:"QUALITY_RULES_PATH" default:"config/quality_rules.json"`

	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.8"`

	SemanticBatchSize int           `envconfig:"SEMANTIC_BATCH_SIZE" default:"50"`
	SemanticWorkers   int           `envconfig:"SEMANTIC_WORKERS" default:"4"`
	JudgeEndpoint     string        `envconfig:"JUDGE_ENDPOINT" default:""`
	JudgeAPIKey       string        `envconfig:"JUDGE_API_KEY" default:""`
	JudgeModel        string        `envconfig:"JUDGE_MODEL" default:""`
	JudgeTimeout      time.Duration `envconfig:"JUDGE_TIMEOUT" default:"180s"`

	ResolveWorkers  int           `envconfig:"RESOLVE_WORKERS" default:"10"`
	PerHostDelay    time.Duration `envconfig:"PER_HOST_DELAY" default:"500ms"`
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"12s"`
	RunDeadline     time.Duration `envconfig:"RUN_DEADLINE" default:"30m"`
	DetectLanguages bool          `envconfig:"DETECT_LANGUAGES" default:"false"`

	HTTPHost            string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort            int           `envconfig:"HTTP_PORT" default:"8090"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations a run must not start with. It runs
// before any record is processed.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KeywordRulesPath) == "" {
		return fmt.Errorf("KEYWORD_RULES_PATH is required")
	}
	if strings.TrimSpace(c.QualityRulesPath) == "" {
		return fmt.Errorf("QUALITY_RULES_PATH is required")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	if c.SemanticBatchSize < 1 {
		return fmt.Errorf("SEMANTIC_BATCH_SIZE must be >= 1")
	}
	if c.SemanticWorkers < 1 {
		return fmt.Errorf("SEMANTIC_WORKERS must be >= 1")
	}
	if c.ResolveWorkers < 1 {
		return fmt.Errorf("RESOLVE_WORKERS must be >= 1")
	}
	if c.JudgeTimeout <= 0 {
		return fmt.Errorf("JUDGE_TIMEOUT must be > 0")
	}
	if c.PerHostDelay < 0 {
		return fmt.Errorf("PER_HOST_DELAY must be >= 0")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NW_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NW_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NW_DB_MIN_CONNS (%d) cannot exceed NW_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// RequireDatabase rejects configurations without a database URL. Only
// commands that persist or serve results call this; a plain pipeline run
// can operate without a database.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
