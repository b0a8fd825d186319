// Package heuristics applies deterministic, explainable adjustments to the
// model's base score. Every detector is pure: the same Input always yields
// the same adjustment.
package heuristics

import (
	"math"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

// Input is everything a detector may inspect for one signal.
type Input struct {
	Text        string
	CompanyID   string
	CompanyName string
	Industry    string
	PostedAt    *time.Time
	Now         time.Time

	// FundingEvents are candidate events for the signal's company, loaded
	// by the caller so detectors stay free of I/O.
	FundingEvents []model.FundingEvent
}

// InputFromSignal builds an Input from a signal evaluated at now.
func InputFromSignal(s model.Signal, now time.Time, events []model.FundingEvent) Input {
	return Input{
		Text:          s.Text,
		CompanyID:     s.CompanyID,
		CompanyName:   s.CompanyName,
		Industry:      s.Industry,
		PostedAt:      s.PostedAt,
		Now:           now,
		FundingEvents: events,
	}
}

// Detector inspects an Input and reports at most one adjustment. A detector
// that finds nothing returns false rather than a zero-delta record.
type Detector interface {
	Category() model.AdjustmentCategory
	Detect(in Input) (model.HeuristicAdjustment, bool)
}

// Result is the combined output of every enabled detector.
type Result struct {
	Adjustments   []model.HeuristicAdjustment
	FundingBonus  float64
	FundingReason string
}

// Total sums the adjustment deltas, excluding the funding bonus.
func (r Result) Total() float64 {
	var t float64
	for _, a := range r.Adjustments {
		t += a.Delta
	}
	return t
}

// Engine runs a fixed set of detectors and the funding booster.
type Engine struct {
	detectors    []Detector
	funding      *FundingBooster
	logThreshold float64
}

// NewEngine registers every detector not listed in hcfg.Disabled. With
// heuristics disabled the engine produces no adjustments; the funding
// booster follows fcfg independently.
func NewEngine(hcfg config.HeuristicsConfig, fcfg config.FundingConfig) *Engine {
	e := &Engine{logThreshold: hcfg.LogThreshold}

	if hcfg.Enabled {
		for _, d := range Default(hcfg.GhostJobAgeDays) {
			if slices.Contains(hcfg.Disabled, string(d.Category())) {
				continue
			}
			e.detectors = append(e.detectors, d)
		}
	}
	if fcfg.Enabled {
		e.funding = NewFundingBooster(fcfg.WindowDays, fcfg.Bonus)
	}
	return e
}

// NewEngineWith builds an engine from explicit parts.
func NewEngineWith(detectors []Detector, funding *FundingBooster) *Engine {
	return &Engine{detectors: detectors, funding: funding, logThreshold: 5}
}

// Default returns every built-in detector in evaluation order.
func Default(ghostAgeDays int) []Detector {
	return []Detector{
		NewGhostJobDetector(ghostAgeDays),
		FirstMarketerDetector(),
		ToneDetector{},
		SilverBulletDetector(),
		SpamDetector(),
		IndustryDetector{},
	}
}

// FundingWindow returns the funding lookback period. It reports false when
// the booster is disabled.
func (e *Engine) FundingWindow() (time.Duration, bool) {
	if e.funding == nil {
		return 0, false
	}
	return e.funding.Window(), true
}

// Detectors lists the registered detector categories.
func (e *Engine) Detectors() []model.AdjustmentCategory {
	out := make([]model.AdjustmentCategory, len(e.detectors))
	for i, d := range e.detectors {
		out[i] = d.Category()
	}
	return out
}

// Evaluate runs every detector sequentially. Deltas are clamped to their
// category bounds before they are returned.
func (e *Engine) Evaluate(in Input) Result {
	var res Result
	for _, d := range e.detectors {
		adj, ok := d.Detect(in)
		if !ok {
			continue
		}
		adj.Category = d.Category()
		adj.Delta = model.ClampDelta(adj.Category, adj.Delta)
		adj.Confidence = model.Clamp(adj.Confidence, 0, 1)
		res.Adjustments = append(res.Adjustments, adj)

		if math.Abs(adj.Delta) > e.logThreshold {
			zap.L().Debug("heuristics: significant adjustment",
				zap.String("category", string(adj.Category)),
				zap.Float64("delta", adj.Delta),
				zap.String("reason", adj.Reason),
			)
		}
	}

	if e.funding != nil {
		res.FundingBonus, res.FundingReason = e.funding.Boost(in)
	}
	return res
}
