// Package store persists companies, signals, leads, score overrides and
// funding events. SQLite is the default driver; Postgres is used in
// production deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status        model.LeadStatus `json:"status,omitempty"`
	Bucket        model.Bucket     `json:"bucket,omitempty"`
	CompanyID     string           `json:"company_id,omitempty"`
	CreatedBefore time.Time        `json:"created_before,omitempty"`
	Limit         int              `json:"limit,omitempty"`
	Offset        int              `json:"offset,omitempty"`
}

// LeadCounts aggregates leads by bucket and status.
type LeadCounts struct {
	Total    int                      `json:"total"`
	ByBucket map[model.Bucket]int     `json:"by_bucket"`
	ByStatus map[model.LeadStatus]int `json:"by_status"`
}

func newLeadCounts() *LeadCounts {
	return &LeadCounts{
		ByBucket: make(map[model.Bucket]int),
		ByStatus: make(map[model.LeadStatus]int),
	}
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, name, website, industry string) (*model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)

	// Signals
	CreateSignal(ctx context.Context, s *model.Signal) error
	GetSignal(ctx context.Context, id string) (*model.Signal, error)

	// Leads
	CreateLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadScore(ctx context.Context, leadID string, cls model.ClassificationResult, b model.ScoreBreakdown) error
	UpdateLeadDossier(ctx context.Context, leadID string, d model.Dossier) error
	UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error
	// ParkLead parks a lead only while it is still new, appending note to
	// its notes. It reports whether the lead was parked.
	ParkLead(ctx context.Context, leadID string, at time.Time, note string) (bool, error)
	CountLeads(ctx context.Context) (*LeadCounts, error)

	// Overrides
	ApplyOverride(ctx context.Context, leadID string, newScore float64, reason, actor string, at time.Time) (*model.ScoreOverride, error)
	ListOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error)

	// Funding events
	InsertFundingEvents(ctx context.Context, events []model.FundingEvent) (int, error)
	ListFundingEvents(ctx context.Context, companyID, companyName string, since time.Time) ([]model.FundingEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// DefaultSQLitePath is used when the sqlite driver has no database_url.
const DefaultSQLitePath = "lead-engine.db"

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite", "":
		path := cfg.DatabaseURL
		if path == "" {
			path = DefaultSQLitePath
		}
		st, err = NewSQLite(path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// previousEffective is the score an override replaces.
func previousEffective(final float64, override *float64, overriddenAt *time.Time, scoredAt time.Time) float64 {
	l := model.Lead{
		Breakdown:     model.ScoreBreakdown{Final: final},
		OverrideScore: override,
		OverriddenAt:  overriddenAt,
		ScoredAt:      scoredAt,
	}
	return l.EffectiveScore()
}

// scoredBucket is the bucket a lead holds after a score update: the
// computed bucket, unless a stored override is at least as recent as the
// breakdown and therefore still effective.
func scoredBucket(b model.ScoreBreakdown, override *float64, overriddenAt *time.Time) model.Bucket {
	l := model.Lead{
		Breakdown:     b,
		OverrideScore: override,
		OverriddenAt:  overriddenAt,
		ScoredAt:      b.ComputedAt.UTC(),
	}
	return model.BucketFor(l.EffectiveScore())
}

// overrideTime keeps an override effective even if the clock lags the
// last scoring.
func overrideTime(at, scoredAt time.Time) time.Time {
	at = at.UTC()
	if at.Before(scoredAt) {
		return scoredAt.UTC()
	}
	return at
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
