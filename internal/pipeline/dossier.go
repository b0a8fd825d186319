package pipeline

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/model"
)

const maxSnippetChars = 600

// dossierStage runs stage 2 for a freshly persisted lead. In async mode the
// call is tracked in the background group and the lead is returned without
// waiting for it.
func (c *Classifier) dossierStage(ctx context.Context, lead *model.Lead, sig model.Signal) (DossierStatus, string) {
	if !c.opts.DossierEnabled {
		return DossierNotRequested, ""
	}
	if ok, note := WantsDossier(lead.Breakdown, c.composer.Config()); !ok {
		return DossierSkipped, note
	}

	leadID, cls := lead.ID, lead.Classification
	if c.opts.DossierAsync {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			_, status, note := c.generateDossier(c.bgCtx, leadID, cls, sig.Text)
			zap.L().Info("pipeline: background dossier finished",
				zap.String("lead_id", leadID),
				zap.String("status", string(status)),
				zap.String("note", note),
			)
		}()
		return DossierPending, ""
	}

	d, status, note := c.generateDossier(ctx, leadID, cls, sig.Text)
	if d != nil {
		lead.Dossier = d
	}
	return status, note
}

// generateDossier calls the model and stores the dossier in one write. Any
// failure leaves the lead's dossier unset.
func (c *Classifier) generateDossier(ctx context.Context, leadID string, cls model.ClassificationResult, text string) (*model.Dossier, DossierStatus, string) {
	dctx := ctx
	if c.opts.DossierTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, c.opts.DossierTimeout)
		defer cancel()
	}

	if err := c.sem.Acquire(dctx, 1); err != nil {
		return nil, DossierAbandoned, err.Error()
	}
	d, err := c.invoker.GenerateDossier(dctx, c.prompts.DossierPrompt(cls, []string{snippet(text)}))
	c.sem.Release(1)
	if err != nil {
		if dctx.Err() != nil {
			return nil, DossierAbandoned, dctx.Err().Error()
		}
		zap.L().Warn("pipeline: dossier generation failed", zap.String("lead_id", leadID), zap.Error(err))
		return nil, DossierFailed, err.Error()
	}

	if err := c.repo.UpdateLeadDossier(context.WithoutCancel(ctx), leadID, *d); err != nil {
		zap.L().Error("pipeline: store dossier", zap.String("lead_id", leadID), zap.Error(err))
		return nil, DossierFailed, err.Error()
	}
	c.dossiers.Add(1)
	return d, DossierGenerated, ""
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= maxSnippetChars {
		return text
	}
	return string([]rune(text)[:maxSnippetChars]) + "..."
}
