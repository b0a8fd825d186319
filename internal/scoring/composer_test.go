package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

func newTestComposer(t *testing.T, cfg config.ScoringConfig) *Composer {
	t.Helper()
	c, err := NewComposer(cfg)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestNewComposerRejectsBadWeights(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.WeightPain = -1
	cfg.DossierThreshold = 140
	_, err := NewComposer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight_pain")
	assert.Contains(t, err.Error(), "dossier_threshold")

	_, err = NewComposer(config.ScoringConfig{})
	assert.Error(t, err, "all-zero weights")
}

func TestComposeFirstMarketerScenario(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	cls := model.ClassificationResult{ScoreFit: 45, ScorePain: 35, ScoreDataQuality: 9}
	adjs := []model.HeuristicAdjustment{
		{Category: model.CategoryFirstMarketer, Delta: 15, Reason: "first marketer role: 3 indicators", Confidence: 0.9},
		{Category: model.CategoryTone, Delta: 8, Reason: "founder tone", Confidence: 0.8},
	}

	b := c.Compose(cls, adjs, 10, "recent funding: series a 13 days ago")
	assert.Equal(t, 89.0, b.WeightedBase)
	assert.Equal(t, 23.0, b.AdjustmentTotal)
	assert.Equal(t, 10.0, b.FundingBonus)
	assert.Equal(t, 100.0, b.Final)
	assert.Equal(t, model.BucketRedHot, b.Bucket)
	assert.True(t, b.DossierRecommended)
	assert.Equal(t, "recent funding: series a 13 days ago", b.FundingReason)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), b.ComputedAt)
}

func TestComposeSpamScenario(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	cls := model.ClassificationResult{ScoreFit: 30, ScorePain: 10, ScoreDataQuality: 5}
	b := c.Compose(cls, []model.HeuristicAdjustment{
		{Category: model.CategorySpam, Delta: -60},
	}, 0, "")

	assert.Equal(t, -40.0, b.Adjustments[0].Delta)
	assert.Equal(t, 5.0, b.Final)
	assert.Equal(t, model.BucketParked, b.Bucket)
	assert.False(t, b.DossierRecommended)
}

func TestComposeGhostScenario(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	cls := model.ClassificationResult{ScoreFit: 10, ScorePain: 5}
	b := c.Compose(cls, []model.HeuristicAdjustment{
		{Category: model.CategoryGhostJob, Delta: -20, Reason: "ghost job: post is 45 days old; no company name"},
	}, 0, "")

	assert.Equal(t, 0.0, b.Final)
	assert.Equal(t, model.BucketParked, b.Bucket)
}

func TestComposeClampsSubScores(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	b := c.Compose(model.ClassificationResult{ScoreFit: 90, ScorePain: -4, ScoreDataQuality: math.NaN()}, nil, 0, "")
	assert.Equal(t, 50.0, b.Fit)
	assert.Equal(t, 0.0, b.Pain)
	assert.Equal(t, 0.0, b.Quality)
	assert.Equal(t, 50.0, b.Final)
	assert.NotNil(t, b.Adjustments)
	assert.Empty(t, b.FundingReason)
}

func TestComposeWeights(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.WeightFit = 1.2
	cfg.WeightPain = 0.5
	cfg.WeightQuality = 0
	c := newTestComposer(t, cfg)

	b := c.Compose(model.ClassificationResult{ScoreFit: 40, ScorePain: 20, ScoreDataQuality: 10}, nil, 0, "")
	assert.InDelta(t, 48.0, b.WeightedFit, 1e-9)
	assert.InDelta(t, 10.0, b.WeightedPain, 1e-9)
	assert.Equal(t, 0.0, b.WeightedQuality)
	assert.InDelta(t, 58.0, b.Final, 1e-9)
	assert.Equal(t, model.BucketNurture, b.Bucket)
	assert.Equal(t, model.Weights{Fit: 1.2, Pain: 0.5}, b.Weights)
}

func TestComposeFinalAlwaysInRange(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.WeightFit = 10
	c := newTestComposer(t, cfg)

	subs := []float64{-100, 0, 25, 50, 1e6}
	deltas := []float64{-1e6, -40, 0, 12, 1e6}
	cats := []model.AdjustmentCategory{model.CategorySpam, model.CategoryIndustry, model.CategoryTone}
	for _, s := range subs {
		for _, d := range deltas {
			var adjs []model.HeuristicAdjustment
			for _, cat := range cats {
				adjs = append(adjs, model.HeuristicAdjustment{Category: cat, Delta: d})
			}
			b := c.Compose(model.ClassificationResult{ScoreFit: s, ScorePain: s, ScoreDataQuality: s}, adjs, d, "")
			assert.GreaterOrEqual(t, b.Final, 0.0)
			assert.LessOrEqual(t, b.Final, 100.0)
			assert.Equal(t, model.BucketFor(b.Final), b.Bucket)
			for _, a := range b.Adjustments {
				bound := model.CategoryBounds[a.Category]
				assert.GreaterOrEqual(t, a.Delta, bound.Min)
				assert.LessOrEqual(t, a.Delta, bound.Max)
			}
		}
	}
}

func TestComposeDeterministic(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	cls := model.ClassificationResult{ScoreFit: 31, ScorePain: 22, ScoreDataQuality: 7}
	adjs := []model.HeuristicAdjustment{{Category: model.CategoryTone, Delta: 6}}
	first := c.Compose(cls, adjs, 0, "")
	for range 10 {
		assert.Equal(t, first, c.Compose(cls, adjs, 0, ""))
	}
}

func TestComposeDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	adjs := []model.HeuristicAdjustment{{Category: model.CategorySpam, Delta: -99}}
	c.Compose(model.ClassificationResult{}, adjs, 0, "")
	assert.Equal(t, -99.0, adjs[0].Delta)
}

func TestDossierThresholdIsStrict(t *testing.T) {
	t.Parallel()
	c := newTestComposer(t, DefaultConfig())

	b := c.Compose(model.ClassificationResult{ScoreFit: 40, ScorePain: 30}, nil, 0, "")
	assert.Equal(t, 70.0, b.Final)
	assert.False(t, b.DossierRecommended)

	b = c.Compose(model.ClassificationResult{ScoreFit: 40, ScorePain: 30, ScoreDataQuality: 1}, nil, 0, "")
	assert.True(t, b.DossierRecommended)
}

func TestEffective(t *testing.T) {
	t.Parallel()

	scored := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	override := 82.0
	at := scored.Add(time.Minute)
	l := model.Lead{Breakdown: model.ScoreBreakdown{Final: 35}, ScoredAt: scored}

	s, bucket := Effective(l)
	assert.Equal(t, 35.0, s)
	assert.Equal(t, model.BucketParked, bucket)

	l.OverrideScore, l.OverriddenAt = &override, &at
	s, bucket = Effective(l)
	assert.Equal(t, 82.0, s)
	assert.Equal(t, model.BucketRedHot, bucket)
}
