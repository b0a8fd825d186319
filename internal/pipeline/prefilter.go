package pipeline

import (
	"fmt"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/model"
)

// WantsDossier decides whether a scored lead is worth a stage-2 call. It
// never affects classification or lead creation. The returned note explains
// a refusal.
func WantsDossier(b model.ScoreBreakdown, cfg config.ScoringConfig) (bool, string) {
	if b.Final < cfg.PrefilterMinScore {
		return false, fmt.Sprintf("score %.1f below pre-filter minimum %.0f", b.Final, cfg.PrefilterMinScore)
	}
	if adj, ok := b.Adjustment(model.CategorySpam); ok && adj.Delta <= model.CategoryBounds[model.CategorySpam].Min {
		return false, "spam detector at cap"
	}
	if !b.DossierRecommended {
		return false, fmt.Sprintf("score %.1f not above dossier threshold %.0f", b.Final, cfg.DossierThreshold)
	}
	return true, ""
}
