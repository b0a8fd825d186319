package pipeline

import (
	"github.com/sells-group/lead-engine/internal/model"
)

// FailureKind classifies why a signal did not produce a lead.
type FailureKind string

const (
	FailureModelUnavailable FailureKind = "model_unavailable"
	FailureModelRejected    FailureKind = "model_rejected"
	FailureModelOutput      FailureKind = "model_output"
	FailurePersistence      FailureKind = "persistence"
	FailureCanceled         FailureKind = "canceled"
	FailureInvalidSignal    FailureKind = "invalid_signal"
)

// Failure is a per-signal error. RawOutput is set for model output failures.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Err       error       `json:"-"`
	Message   string      `json:"message"`
	RawOutput string      `json:"raw_output,omitempty"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err, Message: err.Error()}
}

// DossierStatus reports what happened to stage-2 generation for a lead.
type DossierStatus string

const (
	DossierNotRequested DossierStatus = "not_requested"
	DossierSkipped      DossierStatus = "skipped"
	DossierPending      DossierStatus = "pending"
	DossierGenerated    DossierStatus = "generated"
	DossierFailed       DossierStatus = "failed"
	DossierAbandoned    DossierStatus = "abandoned"
)

// Outcome is the result for one input signal. Index ties it to the input
// position; outcomes are never correlated by completion order.
type Outcome struct {
	Index     int                   `json:"index"`
	SignalID  string                `json:"signal_id,omitempty"`
	Lead      *model.Lead           `json:"lead,omitempty"`
	Breakdown *model.ScoreBreakdown `json:"breakdown,omitempty"`
	CacheHit  bool                  `json:"cache_hit"`
	Dossier   DossierStatus         `json:"dossier"`
	// DossierNote explains a skipped or failed dossier.
	DossierNote string   `json:"dossier_note,omitempty"`
	Err         *Failure `json:"error,omitempty"`
}

// OK reports whether the signal produced a persisted lead.
func (o Outcome) OK() bool { return o.Err == nil }

// Summary counts outcomes by result.
type Summary struct {
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    map[FailureKind]int   `json:"failed"`
	CacheHits int                   `json:"cache_hits"`
	Buckets   map[model.Bucket]int  `json:"buckets"`
	Dossiers  map[DossierStatus]int `json:"dossiers"`
}

// Summarize aggregates a batch result.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{
		Total:    len(outcomes),
		Failed:   make(map[FailureKind]int),
		Buckets:  make(map[model.Bucket]int),
		Dossiers: make(map[DossierStatus]int),
	}
	for _, o := range outcomes {
		if o.CacheHit {
			s.CacheHits++
		}
		if o.Err != nil {
			s.Failed[o.Err.Kind]++
			continue
		}
		s.Succeeded++
		if o.Breakdown != nil {
			s.Buckets[o.Breakdown.Bucket]++
		}
		s.Dossiers[o.Dossier]++
	}
	return s
}
