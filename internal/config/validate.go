package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for the given command mode. Modes:
// "classify" (model + scoring + cache), "sweep", "worker" and "store".
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	errs = append(errs, c.storeProblems()...)

	switch mode {
	case "classify":
		errs = append(errs, c.modelProblems()...)
		errs = append(errs, c.Scoring.problems()...)
		errs = append(errs, c.cacheProblems()...)
		if c.Batch.MaxConcurrency < 1 || c.Batch.MaxConcurrency > 64 {
			errs = append(errs, "batch.max_concurrency must be between 1 and 64")
		}
		if c.Funding.WindowDays < 0 {
			errs = append(errs, "funding.window_days must be >= 0")
		}
		if c.Funding.Bonus < 0 || c.Funding.Bonus > 100 {
			errs = append(errs, "funding.bonus must be between 0 and 100")
		}
	case "sweep":
		errs = append(errs, c.autoParkProblems()...)
	case "worker":
		errs = append(errs, c.autoParkProblems()...)
		if c.Scheduler.RedisURL == "" {
			errs = append(errs, "scheduler.redis_url is required")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks weights and thresholds only.
func (s ScoringConfig) Validate() error {
	if errs := s.problems(); len(errs) > 0 {
		return eris.Errorf("scoring: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeProblems() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	return errs
}

func (c *Config) modelProblems() []string {
	var errs []string
	switch c.Model.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "gemini":
		if c.Gemini.Key == "" {
			errs = append(errs, "gemini.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("model.provider must be anthropic or gemini, got %q", c.Model.Provider))
	}
	if c.Model.ClassifyModel == "" {
		errs = append(errs, "model.classify_model is required")
	}
	if c.Model.MaxTokens <= 0 {
		errs = append(errs, "model.max_tokens must be > 0")
	}
	return errs
}

func (c *Config) cacheProblems() []string {
	if !c.Cache.Enabled {
		return nil
	}
	var errs []string
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be memory or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, "cache.capacity must be > 0")
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}
	return errs
}

func (c *Config) autoParkProblems() []string {
	if c.AutoPark.AgeDays <= 0 {
		return []string{"autopark.age_days must be > 0"}
	}
	return nil
}

func (s ScoringConfig) problems() []string {
	var errs []string

	axes := []struct {
		name string
		w    float64
	}{
		{"weight_fit", s.WeightFit},
		{"weight_pain", s.WeightPain},
		{"weight_quality", s.WeightQuality},
	}
	positive := false
	for _, a := range axes {
		if math.IsNaN(a.w) || math.IsInf(a.w, 0) {
			errs = append(errs, fmt.Sprintf("scoring.%s must be finite", a.name))
			continue
		}
		if a.w < 0 {
			errs = append(errs, fmt.Sprintf("scoring.%s must be >= 0, got %.2f", a.name, a.w))
		}
		if a.w > 0 {
			positive = true
		}
	}
	if !positive {
		errs = append(errs, "at least one scoring weight must be > 0")
	}

	if s.DossierThreshold < 0 || s.DossierThreshold > 100 {
		errs = append(errs, fmt.Sprintf("scoring.dossier_threshold must be between 0 and 100, got %.2f", s.DossierThreshold))
	}
	if s.PrefilterMinScore < 0 || s.PrefilterMinScore > 100 {
		errs = append(errs, fmt.Sprintf("scoring.prefilter_min_score must be between 0 and 100, got %.2f", s.PrefilterMinScore))
	}
	return errs
}
