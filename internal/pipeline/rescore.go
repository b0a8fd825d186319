package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/heuristics"
	"github.com/sells-group/lead-engine/internal/model"
)

// Rescore recomputes a lead from its stored signal under the current
// configuration and writes a new breakdown. A previous override stops being
// effective because the new score is the most recent scoring action.
func (c *Classifier) Rescore(ctx context.Context, leadID string) (*model.ScoreBreakdown, error) {
	lead, err := c.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: rescore %s", leadID)
	}
	sig, err := c.repo.GetSignal(ctx, lead.SignalID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: rescore %s: load signal", leadID)
	}

	cls, _, fail := c.classification(ctx, sig.Text)
	if fail != nil {
		return nil, fail
	}

	if sig.CompanyID == "" {
		sig.CompanyID = lead.CompanyID
	}
	events := c.fundingEvents(ctx, sig.CompanyID, sig.CompanyName)

	res := c.engine.Evaluate(heuristics.InputFromSignal(*sig, c.now(), events))
	b := c.composer.Compose(*cls, res.Adjustments, res.FundingBonus, res.FundingReason)

	if err := c.repo.UpdateLeadScore(ctx, leadID, *cls, b); err != nil {
		return nil, eris.Wrapf(err, "pipeline: rescore %s: store", leadID)
	}

	zap.L().Info("pipeline: lead rescored",
		zap.String("lead_id", leadID),
		zap.Float64("previous", lead.EffectiveScore()),
		zap.Float64("final", b.Final),
		zap.String("bucket", string(b.Bucket)),
	)
	return &b, nil
}
