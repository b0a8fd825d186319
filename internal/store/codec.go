package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
)

func prepareSignal(s *model.Signal) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.SourceType == "" {
		s.SourceType = model.SourceManual
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	s.CreatedAt = s.CreatedAt.UTC()
}

func prepareLead(l *model.Lead) {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = model.StatusNew
	}
	if l.Bucket == "" {
		l.Bucket = l.Breakdown.Bucket
	}
	if l.ScoredAt.IsZero() {
		l.ScoredAt = l.Breakdown.ComputedAt
		if l.ScoredAt.IsZero() {
			l.ScoredAt = now
		}
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	l.ScoredAt = l.ScoredAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
}

func prepareFundingEvent(ev model.FundingEvent) model.FundingEvent {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.AnnouncedDate = ev.AnnouncedDate.UTC()
	return ev
}

// encodeLead returns the JSON columns of a lead. dossier is nil when the
// lead has none.
func encodeLead(l *model.Lead) (cls, breakdown, dossier []byte, err error) {
	if cls, err = json.Marshal(l.Classification); err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal classification")
	}
	if breakdown, err = json.Marshal(l.Breakdown); err != nil {
		return nil, nil, nil, eris.Wrap(err, "marshal breakdown")
	}
	if l.Dossier != nil {
		if dossier, err = json.Marshal(l.Dossier); err != nil {
			return nil, nil, nil, eris.Wrap(err, "marshal dossier")
		}
	}
	return cls, breakdown, dossier, nil
}

func decodeLead(l *model.Lead, cls, breakdown, dossier []byte) error {
	if err := json.Unmarshal(cls, &l.Classification); err != nil {
		return eris.Wrap(err, "unmarshal classification")
	}
	if err := json.Unmarshal(breakdown, &l.Breakdown); err != nil {
		return eris.Wrap(err, "unmarshal breakdown")
	}
	if len(dossier) > 0 {
		l.Dossier = &model.Dossier{}
		if err := json.Unmarshal(dossier, l.Dossier); err != nil {
			return eris.Wrap(err, "unmarshal dossier")
		}
	}
	return nil
}
