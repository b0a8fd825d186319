// Package scoring combines weighted model sub-scores with heuristic
// adjustments into a single clamped, bucketed score.
package scoring

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

// DefaultConfig returns equal weights and the standard thresholds.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		WeightFit:         1,
		WeightPain:        1,
		WeightQuality:     1,
		DossierThreshold:  70,
		PrefilterMinScore: 40,
	}
}

// Composer produces ScoreBreakdowns under one fixed configuration.
type Composer struct {
	cfg config.ScoringConfig
	now func() time.Time
}

// NewComposer validates cfg and returns a Composer using it.
func NewComposer(cfg config.ScoringConfig) (*Composer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "scoring: new composer")
	}
	return &Composer{cfg: cfg, now: time.Now}, nil
}

// Config returns the composer's scoring configuration.
func (c *Composer) Config() config.ScoringConfig { return c.cfg }

// Weights returns the configured per-axis weights.
func (c *Composer) Weights() model.Weights {
	return model.Weights{Fit: c.cfg.WeightFit, Pain: c.cfg.WeightPain, Quality: c.cfg.WeightQuality}
}

// Compose builds a breakdown from a classification, the heuristic
// adjustments and the funding bonus. Sub-scores and deltas are clamped to
// their ranges before use and the final score to [0, 100].
func (c *Composer) Compose(cls model.ClassificationResult, adjustments []model.HeuristicAdjustment, fundingBonus float64, fundingReason string) model.ScoreBreakdown {
	w := c.Weights()

	b := model.ScoreBreakdown{
		Fit:     model.Clamp(cls.ScoreFit, 0, model.MaxFitScore),
		Pain:    model.Clamp(cls.ScorePain, 0, model.MaxPainScore),
		Quality: model.Clamp(cls.ScoreDataQuality, 0, model.MaxQualityScore),
		Weights: w,
	}
	b.WeightedFit = b.Fit * w.Fit
	b.WeightedPain = b.Pain * w.Pain
	b.WeightedQuality = b.Quality * w.Quality
	b.WeightedBase = b.WeightedFit + b.WeightedPain + b.WeightedQuality

	b.Adjustments = make([]model.HeuristicAdjustment, 0, len(adjustments))
	for _, a := range adjustments {
		a.Delta = model.ClampDelta(a.Category, a.Delta)
		a.Confidence = model.Clamp(a.Confidence, 0, 1)
		b.Adjustments = append(b.Adjustments, a)
		b.AdjustmentTotal += a.Delta
	}

	b.FundingBonus = model.Clamp(fundingBonus, 0, 100)
	if b.FundingBonus > 0 {
		b.FundingReason = fundingReason
	}

	b.Final = model.Clamp(b.WeightedBase+b.AdjustmentTotal+b.FundingBonus, 0, 100)
	b.Bucket = model.BucketFor(b.Final)
	b.DossierRecommended = b.Final > c.cfg.DossierThreshold
	b.ComputedAt = c.now().UTC()
	return b
}

// Effective returns a lead's effective score and the bucket it maps to.
func Effective(l model.Lead) (float64, model.Bucket) {
	s := l.EffectiveScore()
	return s, model.BucketFor(s)
}
