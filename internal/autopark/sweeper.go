// Package autopark parks leads that stayed in status "new" past a
// configured age. Sweeps run from a ticker loop or as a scheduled asynq
// task; re-running a sweep is always safe.
package autopark

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

const pageSize = 200

// Store is the persistence the sweeper needs.
type Store interface {
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
	ParkLead(ctx context.Context, leadID string, at time.Time, note string) (bool, error)
}

// Candidate is a lead eligible for parking.
type Candidate struct {
	LeadID    string    `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
	AgeDays   int       `json:"age_days"`
}

// Result reports one sweep.
type Result struct {
	Skipped    bool        `json:"skipped,omitempty"`
	DryRun     bool        `json:"dry_run"`
	Cutoff     time.Time   `json:"cutoff"`
	Candidates []Candidate `json:"candidates"`
	Parked     int         `json:"parked"`
	Failed     int         `json:"failed"`
}

// Sweeper finds and parks stale leads.
type Sweeper struct {
	store Store
	cfg   config.AutoParkConfig
	now   func() time.Time
}

// NewSweeper creates a Sweeper. An age of zero or less falls back to 30 days.
func NewSweeper(st Store, cfg config.AutoParkConfig) *Sweeper {
	if cfg.AgeDays <= 0 {
		cfg.AgeDays = 30
	}
	return &Sweeper{store: st, cfg: cfg, now: time.Now}
}

// Note is the text appended to a parked lead's notes.
func Note(at time.Time, ageDays int) string {
	return fmt.Sprintf("[Auto-parked on %s - no contact for %d days]", at.UTC().Format("2006-01-02"), ageDays)
}

// Sweep parks every lead in status new created before now minus the
// configured age. In dry-run mode the candidates are returned and nothing
// is written. A lead whose status changed between listing and parking is
// left alone.
func (s *Sweeper) Sweep(ctx context.Context, dryRun bool) (*Result, error) {
	if !s.cfg.Enabled {
		zap.L().Debug("autopark: disabled, skipping sweep")
		return &Result{Skipped: true, DryRun: dryRun}, nil
	}

	now := s.now().UTC()
	res := &Result{
		DryRun: dryRun,
		Cutoff: now.AddDate(0, 0, -s.cfg.AgeDays),
	}

	candidates, err := s.candidates(ctx, now, res.Cutoff)
	if err != nil {
		return nil, err
	}
	res.Candidates = candidates
	if dryRun {
		zap.L().Info("autopark: dry run", zap.Int("candidates", len(candidates)), zap.Time("cutoff", res.Cutoff))
		return res, nil
	}

	note := Note(now, s.cfg.AgeDays)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "autopark: sweep interrupted")
		}
		parked, err := s.store.ParkLead(ctx, c.LeadID, now, note)
		if err != nil {
			res.Failed++
			zap.L().Warn("autopark: park lead failed", zap.String("lead_id", c.LeadID), zap.Error(err))
			continue
		}
		if parked {
			res.Parked++
		}
	}

	zap.L().Info("autopark: sweep complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("parked", res.Parked),
		zap.Int("failed", res.Failed),
		zap.Int("age_days", s.cfg.AgeDays),
	)
	return res, nil
}

// candidates pages through every stale lead before any is modified, so
// offsets stay valid.
func (s *Sweeper) candidates(ctx context.Context, now, cutoff time.Time) ([]Candidate, error) {
	var out []Candidate
	for offset := 0; ; offset += pageSize {
		leads, err := s.store.ListLeads(ctx, store.LeadFilter{
			Status:        model.StatusNew,
			CreatedBefore: cutoff,
			Limit:         pageSize,
			Offset:        offset,
		})
		if err != nil {
			return nil, eris.Wrap(err, "autopark: list stale leads")
		}
		for _, l := range leads {
			out = append(out, Candidate{
				LeadID:    l.ID,
				CreatedAt: l.CreatedAt,
				AgeDays:   int(now.Sub(l.CreatedAt).Hours() / 24),
			})
		}
		if len(leads) < pageSize {
			return out, nil
		}
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	log := zap.L().With(zap.String("component", "autopark"))
	log.Info("autopark: sweeper started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx, false); err != nil {
			log.Error("autopark: sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("autopark: sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}
