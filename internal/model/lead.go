package model

import (
	"time"
)

// LeadStatus is the position of a lead in the sales pipeline.
type LeadStatus string

const (
	StatusNew       LeadStatus = "new"
	StatusContacted LeadStatus = "contacted"
	StatusQualified LeadStatus = "qualified"
	StatusPitched   LeadStatus = "pitched"
	StatusTrial     LeadStatus = "trial"
	StatusWon       LeadStatus = "won"
	StatusLost      LeadStatus = "lost"
	StatusParked    LeadStatus = "parked"
)

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s LeadStatus) bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusPitched,
		StatusTrial, StatusWon, StatusLost, StatusParked:
		return true
	}
	return false
}

// Terminal reports whether s ends the pipeline.
func (s LeadStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusParked
}

// Company owns leads and is the key for funding-event matching.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is the persisted result of classifying a signal.
type Lead struct {
	ID             string               `json:"id"`
	CompanyID      string               `json:"company_id,omitempty"`
	SignalID       string               `json:"signal_id"`
	Classification ClassificationResult `json:"classification"`
	Breakdown      ScoreBreakdown       `json:"breakdown"`
	Bucket         Bucket               `json:"bucket"`
	Status         LeadStatus           `json:"status"`
	OverrideScore  *float64             `json:"override_score,omitempty"`
	OverriddenAt   *time.Time           `json:"overridden_at,omitempty"`
	ScoredAt       time.Time            `json:"scored_at"`
	Dossier        *Dossier             `json:"dossier,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	AutoParkedAt   *time.Time           `json:"auto_parked_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// EffectiveScore returns the override score when it is the most recent
// scoring action, otherwise the computed final score.
func (l Lead) EffectiveScore() float64 {
	if l.Overridden() {
		return *l.OverrideScore
	}
	return l.Breakdown.Final
}

// Overridden reports whether the effective score comes from an override.
func (l Lead) Overridden() bool {
	return l.OverrideScore != nil && l.OverriddenAt != nil && !l.OverriddenAt.Before(l.ScoredAt)
}

// ScoreOverride is an append-only record of a manual score change.
type ScoreOverride struct {
	ID            string    `json:"id"`
	LeadID        string    `json:"lead_id"`
	PreviousScore float64   `json:"previous_score"`
	NewScore      float64   `json:"new_score"`
	Reason        string    `json:"reason"`
	Actor         string    `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}

// FundingEvent is an externally sourced funding announcement.
type FundingEvent struct {
	ID            string    `json:"id" csv:"-"`
	CompanyID     string    `json:"company_id,omitempty" csv:"company_id,omitempty"`
	CompanyName   string    `json:"company_name" csv:"company_name"`
	EventType     string    `json:"event_type" csv:"event_type"`
	AmountUSD     float64   `json:"amount_usd" csv:"amount_usd,omitempty"`
	AnnouncedDate time.Time `json:"announced_date" csv:"announced_date"`
	Source        string    `json:"source,omitempty" csv:"source,omitempty"`
}
