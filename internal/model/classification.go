package model

import "github.com/rotisserie/eris"

// ErrEmptySignal is returned for a signal with no text.
var ErrEmptySignal = eris.New("model: signal text is empty")

// Sub-score upper bounds for the stage-1 classification.
const (
	MaxFitScore     = 50
	MaxPainScore    = 40
	MaxQualityScore = 10
)

// ClassificationResult is the structured stage-1 model output. Validation
// tags are enforced before a result is accepted or cached. Sub-scores outside
// their ranges are accepted here and clamped by the composer.
type ClassificationResult struct {
	ICPMatch            bool     `json:"icp_match"`
	SizeBucket          string   `json:"size_bucket" validate:"omitempty,oneof=1 2-5 6-10 11-20 unknown"`
	Region              string   `json:"region"`
	RoleType            string   `json:"role_type" validate:"omitempty,oneof=first_marketer agency_replacement extra_headcount unclear"`
	PainTags            []string `json:"pain_tags"`
	ScoreFit            float64  `json:"score_fit"`
	ScorePain           float64  `json:"score_pain"`
	ScoreDataQuality    float64  `json:"score_data_quality"`
	ReasonShort         string   `json:"reason_short"`
	Situation           string   `json:"situation"`
	Problem             string   `json:"problem"`
	Implication         string   `json:"implication"`
	NeedPayoff          string   `json:"need_payoff"`
	EconomicBuyerGuess  string   `json:"economic_buyer_guess"`
	KeyPain             string   `json:"key_pain"`
	ChaosFlags          []string `json:"chaos_flags"`
	SilverBulletPhrases []string `json:"silver_bullet_phrases"`
}

// Dossier is the stage-2 narrative generated for high-scoring leads.
type Dossier struct {
	Snapshot           string   `json:"snapshot" validate:"required"`
	WhyPainBullets     []string `json:"why_pain_bullets"`
	UncomfortableTruth string   `json:"uncomfortable_truth"`
	ReframeSuggestion  string   `json:"reframe_suggestion"`
	BestAngleBullets   []string `json:"best_angle_bullets"`
	ChallengerInsight  string   `json:"challenger_insight"`
}
