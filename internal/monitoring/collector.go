// Package monitoring collects lead, cache and model metrics into snapshots
// and raises webhook alerts when they cross configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/fingerprint"
	"github.com/sells-group/lead-engine/internal/llm"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/pipeline"
	"github.com/sells-group/lead-engine/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	Leads *store.LeadCounts `json:"leads"`

	// Process-lifetime counters; nil when the source is not running.
	Cache    *fingerprint.Stats `json:"cache,omitempty"`
	Model    *llm.Stats         `json:"model,omitempty"`
	Pipeline *pipeline.Stats    `json:"pipeline,omitempty"`

	// Derived.
	ModelFailRate float64 `json:"model_fail_rate"`
	RedHotShare   float64 `json:"red_hot_share"`

	CollectedAt time.Time `json:"collected_at"`
}

// LeadCounter reports lead totals by bucket and status.
type LeadCounter interface {
	CountLeads(ctx context.Context) (*store.LeadCounts, error)
}

// CacheSource reports fingerprint cache statistics.
type CacheSource interface {
	Stats(ctx context.Context) fingerprint.Stats
}

// ModelSource reports model invocation statistics.
type ModelSource interface {
	Stats() llm.Stats
}

// PipelineSource reports classifier statistics.
type PipelineSource interface {
	Stats() pipeline.Stats
}

// Sources are the collector inputs. Only Leads is required.
type Sources struct {
	Leads    LeadCounter
	Cache    CacheSource
	Model    ModelSource
	Pipeline PipelineSource
}

// Collector gathers metrics from its sources.
type Collector struct {
	src Sources
	now func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(src Sources) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot of system metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	if c.src.Leads == nil {
		return nil, eris.New("monitoring: no lead source configured")
	}

	counts, err := c.src.Leads.CountLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count leads")
	}
	snap := &MetricsSnapshot{
		Leads:       counts,
		CollectedAt: c.now().UTC(),
	}
	if counts.Total > 0 {
		snap.RedHotShare = float64(counts.ByBucket[model.BucketRedHot]) / float64(counts.Total)
	}

	if c.src.Cache != nil {
		s := c.src.Cache.Stats(ctx)
		snap.Cache = &s
	}
	if c.src.Model != nil {
		s := c.src.Model.Stats()
		snap.Model = &s
		if s.Calls > 0 {
			snap.ModelFailRate = float64(s.Unavailable+s.Rejected+s.InvalidOutput) / float64(s.Calls)
		}
	}
	if c.src.Pipeline != nil {
		s := c.src.Pipeline.Stats()
		snap.Pipeline = &s
	}
	return snap, nil
}
