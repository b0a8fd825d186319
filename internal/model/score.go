package model

import (
	"math"
	"time"
)

// AdjustmentCategory names the detector that produced an adjustment.
type AdjustmentCategory string

const (
	CategoryGhostJob      AdjustmentCategory = "ghost_job"
	CategoryFirstMarketer AdjustmentCategory = "first_marketer"
	CategoryTone          AdjustmentCategory = "tone"
	CategorySilverBullet  AdjustmentCategory = "silver_bullet"
	CategorySpam          AdjustmentCategory = "spam"
	CategoryIndustry      AdjustmentCategory = "industry"
)

// Bound is an inclusive [Min, Max] range for a category's delta.
type Bound struct {
	Min float64
	Max float64
}

// CategoryBounds holds the documented delta range for every category.
var CategoryBounds = map[AdjustmentCategory]Bound{
	CategoryGhostJob:      {Min: -20, Max: 0},
	CategoryFirstMarketer: {Min: 0, Max: 15},
	CategoryTone:          {Min: -5, Max: 10},
	CategorySilverBullet:  {Min: -20, Max: 0},
	CategorySpam:          {Min: -40, Max: 0},
	CategoryIndustry:      {Min: 0, Max: 12},
}

// ClampDelta limits delta to the category's bound. Unknown categories
// contribute nothing.
func ClampDelta(c AdjustmentCategory, delta float64) float64 {
	b, ok := CategoryBounds[c]
	if !ok || math.IsNaN(delta) {
		return 0
	}
	return Clamp(delta, b.Min, b.Max)
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

// HeuristicAdjustment is one bounded, explainable delta on the base score.
type HeuristicAdjustment struct {
	Category   AdjustmentCategory `json:"category"`
	Delta      float64            `json:"delta"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"`
}

// Weights are the per-axis multipliers applied to the stage-1 sub-scores.
type Weights struct {
	Fit     float64 `json:"fit"`
	Pain    float64 `json:"pain"`
	Quality float64 `json:"quality"`
}

// ScoreBreakdown is the audit trail for one computed score. A breakdown is
// never modified after it is produced; rescoring produces a new one.
type ScoreBreakdown struct {
	Fit             float64               `json:"fit"`
	Pain            float64               `json:"pain"`
	Quality         float64               `json:"quality"`
	Weights         Weights               `json:"weights"`
	WeightedFit     float64               `json:"weighted_fit"`
	WeightedPain    float64               `json:"weighted_pain"`
	WeightedQuality float64               `json:"weighted_quality"`
	WeightedBase    float64               `json:"weighted_base"`
	Adjustments     []HeuristicAdjustment `json:"adjustments"`
	AdjustmentTotal float64               `json:"adjustment_total"`
	FundingBonus    float64               `json:"funding_bonus"`
	FundingReason   string                `json:"funding_reason,omitempty"`
	Final           float64               `json:"final"`
	Bucket          Bucket                `json:"bucket"`

	// DossierRecommended is advisory; the caller decides whether to act on it.
	DossierRecommended bool      `json:"dossier_recommended"`
	ComputedAt         time.Time `json:"computed_at"`
}

// Adjustment returns the adjustment for category c, if one fired.
func (b ScoreBreakdown) Adjustment(c AdjustmentCategory) (HeuristicAdjustment, bool) {
	for _, a := range b.Adjustments {
		if a.Category == c {
			return a, true
		}
	}
	return HeuristicAdjustment{}, false
}

// Bucket is the outreach priority band derived from an effective score.
type Bucket string

const (
	BucketRedHot  Bucket = "red_hot"
	BucketWarm    Bucket = "warm"
	BucketNurture Bucket = "nurture"
	BucketParked  Bucket = "parked"
)

// BucketFor maps a score to its bucket. Boundaries belong to the higher
// bucket: 80 is red_hot, 60 is warm, 40 is nurture.
func BucketFor(score float64) Bucket {
	score = Clamp(score, 0, 100)
	switch {
	case score >= 80:
		return BucketRedHot
	case score >= 60:
		return BucketWarm
	case score >= 40:
		return BucketNurture
	default:
		return BucketParked
	}
}
