// Package pipeline turns raw signals into scored, persisted leads: cache
// lookup, stage-1 classification, heuristics, composition, persistence and
// optional stage-2 dossier generation.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/fingerprint"
	"github.com/sells-group/lead-engine/internal/heuristics"
	"github.com/sells-group/lead-engine/internal/llm"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/scoring"
)

// Repository is the persistence the classifier needs. store.Store
// satisfies it.
type Repository interface {
	UpsertCompany(ctx context.Context, name, website, industry string) (*model.Company, error)
	CreateSignal(ctx context.Context, s *model.Signal) error
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
	CreateLead(ctx context.Context, l *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLeadScore(ctx context.Context, leadID string, cls model.ClassificationResult, b model.ScoreBreakdown) error
	UpdateLeadDossier(ctx context.Context, leadID string, d model.Dossier) error
	ListFundingEvents(ctx context.Context, companyID, companyName string, since time.Time) ([]model.FundingEvent, error)
}

// Options tune concurrency and the dossier stage.
type Options struct {
	MaxConcurrency int
	BatchTimeout   time.Duration
	DossierEnabled bool
	DossierAsync   bool
	DossierTimeout time.Duration
}

// OptionsFromConfig maps batch and dossier settings.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrency: cfg.Batch.MaxConcurrency,
		BatchTimeout:   time.Duration(cfg.Batch.TimeoutSecs) * time.Second,
		DossierEnabled: cfg.Dossier.Enabled,
		DossierAsync:   cfg.Dossier.Async,
		DossierTimeout: time.Duration(cfg.Dossier.TimeoutSecs) * time.Second,
	}
}

// Deps are the collaborators of a Classifier. Cache may be nil.
type Deps struct {
	Repo     Repository
	Invoker  llm.Invoker
	Prompts  llm.Templates
	Cache    *fingerprint.Cache
	Engine   *heuristics.Engine
	Composer *scoring.Composer
	ICP      ICPContext
}

// Stats counts signals processed by a Classifier.
type Stats struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	CacheHits int64 `json:"cache_hits"`
	Dossiers  int64 `json:"dossiers"`
}

// Classifier runs the scoring chain for single signals and batches.
type Classifier struct {
	repo     Repository
	invoker  llm.Invoker
	prompts  llm.Templates
	cache    *fingerprint.Cache
	engine   *heuristics.Engine
	composer *scoring.Composer
	icpText  string
	opts     Options

	// sem admits model calls from both stages.
	sem *semaphore.Weighted

	// Background dossiers outlive the batch call that started them.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	now func() time.Time

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64
	dossiers  atomic.Int64
}

// NewClassifier validates options and wires the chain.
func NewClassifier(d Deps, opts Options) (*Classifier, error) {
	if d.Repo == nil || d.Invoker == nil || d.Engine == nil || d.Composer == nil {
		return nil, eris.New("pipeline: repo, invoker, engine and composer are required")
	}
	if opts.MaxConcurrency < 1 {
		return nil, eris.Errorf("pipeline: max concurrency must be >= 1, got %d", opts.MaxConcurrency)
	}
	if d.Prompts.Classification == "" {
		d.Prompts = llm.DefaultTemplates()
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Classifier{
		repo:     d.Repo,
		invoker:  d.Invoker,
		prompts:  d.Prompts,
		cache:    d.Cache,
		engine:   d.Engine,
		composer: d.Composer,
		icpText:  d.ICP.Text(),
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
		now:      time.Now,
	}, nil
}

// ClassifyBatch processes every signal and returns one outcome per input
// index. Per-signal failures never abort the batch; the only error returned
// is an invalid scoring configuration, detected before any dispatch.
func (c *Classifier) ClassifyBatch(ctx context.Context, signals []model.Signal) ([]Outcome, error) {
	if err := c.composer.Config().Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: classify batch")
	}

	if c.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.BatchTimeout)
		defer cancel()
	}

	start := time.Now()
	outcomes := make([]Outcome, len(signals))

	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrency)
	for i := range signals {
		g.Go(func() error {
			out := c.ClassifySignal(ctx, signals[i])
			out.Index = i
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	sum := Summarize(outcomes)
	zap.L().Info("pipeline: batch complete",
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Total-sum.Succeeded),
		zap.Int("cache_hits", sum.CacheHits),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcomes, nil
}

// ClassifySignal runs the full chain for one signal. The returned outcome
// carries either a persisted lead or a typed failure.
func (c *Classifier) ClassifySignal(ctx context.Context, sig model.Signal) Outcome {
	c.processed.Add(1)
	out := c.classifySignal(ctx, sig)
	if out.Err != nil {
		c.failed.Add(1)
		zap.L().Warn("pipeline: signal failed",
			zap.String("company", sig.CompanyName),
			zap.String("kind", string(out.Err.Kind)),
			zap.String("error", out.Err.Message),
		)
	} else {
		c.succeeded.Add(1)
	}
	if out.CacheHit {
		c.cacheHits.Add(1)
	}
	return out
}

func (c *Classifier) classifySignal(ctx context.Context, sig model.Signal) Outcome {
	out := Outcome{Dossier: DossierNotRequested}

	if err := sig.Validate(); err != nil {
		out.Err = newFailure(FailureInvalidSignal, err)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.Err = newFailure(FailureCanceled, err)
		return out
	}

	cls, hit, fail := c.classification(ctx, sig.Text)
	out.CacheHit = hit
	if fail != nil {
		out.Err = fail
		return out
	}

	// Classification is the expensive part; its result is persisted even if
	// the batch deadline passes from here on.
	wctx := context.WithoutCancel(ctx)

	var persistErr error
	if !model.PlaceholderCompanyName(sig.CompanyName) {
		company, err := c.repo.UpsertCompany(wctx, sig.CompanyName, sig.CompanyWebsite, sig.Industry)
		if err != nil {
			persistErr = err
		} else {
			sig.CompanyID = company.ID
		}
	}

	events := c.fundingEvents(wctx, sig.CompanyID, sig.CompanyName)

	now := c.now()
	res := c.engine.Evaluate(heuristics.InputFromSignal(sig, now, events))
	b := c.composer.Compose(*cls, res.Adjustments, res.FundingBonus, res.FundingReason)
	out.Breakdown = &b

	if persistErr != nil {
		out.Err = newFailure(FailurePersistence, persistErr)
		return out
	}

	if err := c.repo.CreateSignal(wctx, &sig); err != nil {
		out.Err = newFailure(FailurePersistence, eris.Wrap(err, "pipeline: create signal"))
		return out
	}
	out.SignalID = sig.ID

	lead := &model.Lead{
		CompanyID:      sig.CompanyID,
		SignalID:       sig.ID,
		Classification: *cls,
		Breakdown:      b,
		Bucket:         b.Bucket,
		Status:         model.StatusNew,
		ScoredAt:       b.ComputedAt,
	}
	if err := c.repo.CreateLead(wctx, lead); err != nil {
		out.Err = newFailure(FailurePersistence, eris.Wrap(err, "pipeline: create lead"))
		return out
	}
	out.Lead = lead

	zap.L().Debug("pipeline: lead scored",
		zap.String("lead_id", lead.ID),
		zap.Float64("final", b.Final),
		zap.String("bucket", string(b.Bucket)),
		zap.Bool("cache_hit", hit),
	)

	out.Dossier, out.DossierNote = c.dossierStage(ctx, lead, sig)
	return out
}

// classification returns the stage-1 result from the cache or the model.
func (c *Classifier) classification(ctx context.Context, text string) (*model.ClassificationResult, bool, *Failure) {
	modelID := c.invoker.ModelID()
	if c.cache != nil {
		if cls, ok := c.cache.Get(ctx, text, c.icpText, modelID); ok {
			return cls, true, nil
		}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, false, newFailure(FailureCanceled, err)
	}
	cls, err := c.invoker.Classify(ctx, c.prompts.ClassificationPrompt(text, c.icpText))
	c.sem.Release(1)
	if err != nil {
		return nil, false, modelFailure(ctx, err)
	}

	if c.cache != nil {
		c.cache.Put(ctx, text, c.icpText, modelID, cls)
	}
	return cls, false, nil
}

// fundingEvents looks up recent funding for the signal's company. A failed
// lookup scores the signal without the funding bonus.
func (c *Classifier) fundingEvents(ctx context.Context, companyID, companyName string) []model.FundingEvent {
	window, ok := c.engine.FundingWindow()
	if !ok {
		return nil
	}
	events, err := c.repo.ListFundingEvents(ctx, companyID, companyName, c.now().Add(-window))
	if err != nil {
		zap.L().Warn("pipeline: funding lookup failed, scoring without funding bonus",
			zap.String("company", companyName),
			zap.Error(err),
		)
		return nil
	}
	return events
}

// modelFailure maps an invoker error onto a failure kind.
func modelFailure(ctx context.Context, err error) *Failure {
	var outErr *llm.ModelOutputError
	switch {
	case errors.As(err, &outErr):
		f := newFailure(FailureModelOutput, err)
		f.RawOutput = outErr.Raw
		return f
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return newFailure(FailureCanceled, err)
	case llm.IsModelRejected(err):
		return newFailure(FailureModelRejected, err)
	default:
		return newFailure(FailureModelUnavailable, err)
	}
}

// Stats returns processing counters.
func (c *Classifier) Stats() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		CacheHits: c.cacheHits.Load(),
		Dossiers:  c.dossiers.Load(),
	}
}

// Wait blocks until every background dossier has finished.
func (c *Classifier) Wait() {
	c.bg.Wait()
}

// Close abandons background dossiers and waits for them to stop.
func (c *Classifier) Close() {
	c.bgCancel()
	c.bg.Wait()
}
