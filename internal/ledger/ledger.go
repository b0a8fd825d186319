// Package ledger records manual score overrides and status changes for
// leads. Every override is appended to an audit trail and becomes the
// lead's effective score until the lead is rescored.
package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/store"
)

// ErrInvalidScore is returned for override scores outside [0, 100].
var ErrInvalidScore = eris.New("ledger: score must be between 0 and 100")

// ErrMissingActor is returned when an override names no actor.
var ErrMissingActor = eris.New("ledger: actor is required")

// ErrInvalidStatus is returned for an unknown lead status.
var ErrInvalidStatus = eris.New("ledger: invalid lead status")

// Store is the persistence the ledger needs.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ApplyOverride(ctx context.Context, leadID string, newScore float64, reason, actor string, at time.Time) (*model.ScoreOverride, error)
	ListOverrides(ctx context.Context, leadID string) ([]model.ScoreOverride, error)
	UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error
}

// Ledger applies overrides and status changes.
type Ledger struct {
	store Store
	now   func() time.Time
}

// New creates a Ledger backed by st.
func New(st Store) *Ledger {
	return &Ledger{store: st, now: time.Now}
}

// Override sets a manual score on a lead. The previous effective score is
// captured in the returned record. Concurrent overrides on the same lead are
// serialized by the store, so each record's previous score is the score the
// prior record set.
func (l *Ledger) Override(ctx context.Context, leadID string, newScore float64, reason, actor string) (*model.ScoreOverride, error) {
	if math.IsNaN(newScore) || newScore < 0 || newScore > 100 {
		return nil, eris.Wrapf(ErrInvalidScore, "got %v", newScore)
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrMissingActor
	}

	o, err := l.store.ApplyOverride(ctx, leadID, newScore, strings.TrimSpace(reason), actor, l.now())
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: override lead %s", leadID)
	}

	zap.L().Info("ledger: score overridden",
		zap.String("lead_id", leadID),
		zap.Float64("previous", o.PreviousScore),
		zap.Float64("new", o.NewScore),
		zap.String("actor", actor),
	)
	return o, nil
}

// History returns the overrides for a lead, newest first. A lead that does
// not exist is an error; a lead with no overrides is not.
func (l *Ledger) History(ctx context.Context, leadID string) ([]model.ScoreOverride, error) {
	if _, err := l.store.GetLead(ctx, leadID); err != nil {
		return nil, eris.Wrapf(err, "ledger: history for lead %s", leadID)
	}
	overrides, err := l.store.ListOverrides(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: history for lead %s", leadID)
	}
	return overrides, nil
}

// SetStatus moves a lead to a new pipeline status.
func (l *Ledger) SetStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	status = model.LeadStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !model.ValidStatus(status) {
		return eris.Wrapf(ErrInvalidStatus, "%q", status)
	}
	if err := l.store.UpdateLeadStatus(ctx, leadID, status); err != nil {
		return eris.Wrapf(err, "ledger: set status of lead %s", leadID)
	}
	zap.L().Info("ledger: status changed", zap.String("lead_id", leadID), zap.String("status", string(status)))
	return nil
}

// IsNotFound reports whether err means the lead does not exist.
func IsNotFound(err error) bool {
	return store.IsNotFound(err)
}
