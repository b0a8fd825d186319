package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Heuristics HeuristicsConfig `yaml:"heuristics" mapstructure:"heuristics"`
	Funding    FundingConfig    `yaml:"funding" mapstructure:"funding"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Dossier    DossierConfig    `yaml:"dossier" mapstructure:"dossier"`
	ICP        ICPConfig        `yaml:"icp" mapstructure:"icp"`
	AutoPark   AutoParkConfig   `yaml:"autopark" mapstructure:"autopark"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// ModelConfig selects the model provider and per-stage model settings.
type ModelConfig struct {
	Provider            string  `yaml:"provider" mapstructure:"provider"`
	ClassifyModel       string  `yaml:"classify_model" mapstructure:"classify_model"`
	DossierModel        string  `yaml:"dossier_model" mapstructure:"dossier_model"`
	MaxTokens           int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TemperatureClassify float64 `yaml:"temperature_classify" mapstructure:"temperature_classify"`
	TemperatureDossier  float64 `yaml:"temperature_dossier" mapstructure:"temperature_dossier"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	PromptsPath         string  `yaml:"prompts_path" mapstructure:"prompts_path"`
}

// ScoringConfig holds per-axis weights and score thresholds.
type ScoringConfig struct {
	WeightFit         float64 `yaml:"weight_fit" mapstructure:"weight_fit" json:"weight_fit"`
	WeightPain        float64 `yaml:"weight_pain" mapstructure:"weight_pain" json:"weight_pain"`
	WeightQuality     float64 `yaml:"weight_quality" mapstructure:"weight_quality" json:"weight_quality"`
	DossierThreshold  float64 `yaml:"dossier_threshold" mapstructure:"dossier_threshold" json:"dossier_threshold"`
	PrefilterMinScore float64 `yaml:"prefilter_min_score" mapstructure:"prefilter_min_score" json:"prefilter_min_score"`
}

// HeuristicsConfig toggles individual detectors.
type HeuristicsConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	Disabled        []string `yaml:"disabled" mapstructure:"disabled"`
	GhostJobAgeDays int      `yaml:"ghost_job_age_days" mapstructure:"ghost_job_age_days"`
	LogThreshold    float64  `yaml:"log_threshold" mapstructure:"log_threshold"`
}

// FundingConfig configures the funding-event boost.
type FundingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	WindowDays int     `yaml:"window_days" mapstructure:"window_days"`
	Bonus      float64 `yaml:"bonus" mapstructure:"bonus"`
}

// CacheConfig configures the classification fingerprint cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend  string `yaml:"backend" mapstructure:"backend"`
	Capacity int    `yaml:"capacity" mapstructure:"capacity"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DossierConfig configures stage-2 dossier generation.
type DossierConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	Async       bool `yaml:"async" mapstructure:"async"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ICPConfig points at the ideal customer profile definition.
type ICPConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AutoParkConfig configures the stale-lead sweeper.
type AutoParkConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	AgeDays       int    `yaml:"age_days" mapstructure:"age_days"`
	IntervalHours int    `yaml:"interval_hours" mapstructure:"interval_hours"`
	Cron          string `yaml:"cron" mapstructure:"cron"`
}

// SchedulerConfig configures the asynq task queue.
type SchedulerConfig struct {
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	Queue       string `yaml:"queue" mapstructure:"queue"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// MonitoringConfig configures metric alerts.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD      float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	BacklogThreshold      int     `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
}

// RetryConfig configures retries of model calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the model circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the LEADS_* environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path looks for
// config.yaml in the working directory, which may be absent; a named file
// must exist.
func LoadFile(path string) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("icp.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("model.provider", "anthropic")
	v.SetDefault("model.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("model.dossier_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("model.max_tokens", 2048)
	v.SetDefault("model.temperature_classify", 0.1)
	v.SetDefault("model.temperature_dossier", 0.3)
	v.SetDefault("model.timeout_secs", 60)
	v.SetDefault("model.requests_per_second", 5.0)
	v.SetDefault("model.prompts_path", "")

	v.SetDefault("scoring.weight_fit", 1.0)
	v.SetDefault("scoring.weight_pain", 1.0)
	v.SetDefault("scoring.weight_quality", 1.0)
	v.SetDefault("scoring.dossier_threshold", 70.0)
	v.SetDefault("scoring.prefilter_min_score", 40.0)

	v.SetDefault("heuristics.enabled", true)
	v.SetDefault("heuristics.disabled", []string{})
	v.SetDefault("heuristics.ghost_job_age_days", 30)
	v.SetDefault("heuristics.log_threshold", 5.0)

	v.SetDefault("funding.enabled", true)
	v.SetDefault("funding.window_days", 90)
	v.SetDefault("funding.bonus", 10.0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 1000)
	v.SetDefault("cache.ttl_hours", 720)
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	v.SetDefault("batch.max_concurrency", 4)
	v.SetDefault("batch.timeout_secs", 600)

	v.SetDefault("dossier.enabled", true)
	v.SetDefault("dossier.async", false)
	v.SetDefault("dossier.timeout_secs", 120)

	v.SetDefault("autopark.enabled", true)
	v.SetDefault("autopark.age_days", 30)
	v.SetDefault("autopark.interval_hours", 24)
	v.SetDefault("autopark.cron", "0 2 * * *")

	v.SetDefault("scheduler.redis_url", "redis://localhost:6379/1")
	v.SetDefault("scheduler.queue", "default")
	v.SetDefault("scheduler.concurrency", 2)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)
	v.SetDefault("monitoring.backlog_threshold", 0)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
