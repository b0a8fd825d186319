package llm

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/cost"
	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/resilience"
)

// Invoker is the model capability the pipeline depends on.
type Invoker interface {
	Classify(ctx context.Context, prompt string) (*model.ClassificationResult, error)
	GenerateDossier(ctx context.Context, prompt string) (*model.Dossier, error)
	// ModelID identifies the stage-1 model; it is part of every cache key.
	ModelID() string
}

// Stats counts calls made through a Client.
type Stats struct {
	Provider      string  `json:"provider"`
	Calls         int64   `json:"calls"`
	Unavailable   int64   `json:"unavailable"`
	Rejected      int64   `json:"rejected"`
	InvalidOutput int64   `json:"invalid_output"`
	CostUSD       float64 `json:"cost_usd"`
	Breaker       string  `json:"breaker"`
}

// Client implements Invoker over a Provider with rate limiting, a circuit
// breaker and retry of transient failures. Rejected requests and invalid
// output are never retried.
type Client struct {
	provider Provider
	cfg      config.ModelConfig
	prompts  Templates
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	policy   resilience.Policy
	validate *validator.Validate
	costs    *cost.Calculator

	calls       atomic.Int64
	unavailable atomic.Int64
	rejected    atomic.Int64
	invalid     atomic.Int64
	mu          sync.Mutex
	spent       float64
}

// NewClient wraps p with the configured limits.
func NewClient(p Provider, cfg config.ModelConfig, rcfg config.RetryConfig, ccfg config.CircuitConfig) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(math.Ceil(cfg.RequestsPerSecond)))
	}

	policy := resilience.PolicyFromConfig(rcfg)
	policy.Retryable = resilience.IsTransient

	return &Client{
		provider: p,
		cfg:      cfg,
		prompts:  DefaultTemplates(),
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  resilience.BreakerFromConfig(p.Name(), ccfg, resilience.IsTransient),
		policy:   policy,
		validate: validator.New(),
		costs:    cost.NewCalculator(cost.DefaultRates()),
	}
}

// New builds a Client for the configured provider and loads prompt
// templates from model.prompts_path when set.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	var p Provider
	switch cfg.Model.Provider {
	case "anthropic":
		p = NewAnthropicProvider(cfg.Anthropic.Key)
	case "gemini":
		gp, err := NewGeminiProvider(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "llm: new client")
		}
		p = gp
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Model.Provider)
	}

	prompts, err := LoadTemplates(cfg.Model.PromptsPath)
	if err != nil {
		return nil, eris.Wrap(err, "llm: new client")
	}

	c := NewClient(p, cfg.Model, cfg.Retry, cfg.Circuit)
	c.prompts = prompts
	return c, nil
}

// Prompts returns the templates used to build prompts.
func (c *Client) Prompts() Templates { return c.prompts }

func (c *Client) ModelID() string {
	return c.provider.Name() + "/" + c.cfg.ClassifyModel
}

// Classify runs the stage-1 model on a rendered prompt.
func (c *Client) Classify(ctx context.Context, prompt string) (*model.ClassificationResult, error) {
	raw, err := c.generate(ctx, StageClassify, Request{
		Model:       c.cfg.ClassifyModel,
		Prompt:      prompt,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.TemperatureClassify,
	})
	if err != nil {
		return nil, err
	}
	res, err := decode[model.ClassificationResult](c.validate, StageClassify, raw, classificationKeys...)
	if err != nil {
		c.invalid.Add(1)
		return nil, err
	}
	return res, nil
}

// GenerateDossier runs the stage-2 model on a rendered prompt.
func (c *Client) GenerateDossier(ctx context.Context, prompt string) (*model.Dossier, error) {
	modelID := c.cfg.DossierModel
	if modelID == "" {
		modelID = c.cfg.ClassifyModel
	}
	raw, err := c.generate(ctx, StageDossier, Request{
		Model:       modelID,
		Prompt:      prompt,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.TemperatureDossier,
	})
	if err != nil {
		return nil, err
	}
	d, err := decode[model.Dossier](c.validate, StageDossier, raw)
	if err != nil {
		c.invalid.Add(1)
		return nil, err
	}
	return d, nil
}

func (c *Client) generate(ctx context.Context, stage string, req Request) (string, error) {
	p := c.policy
	p.Notify = resilience.LogRetry(c.provider.Name(), stage)

	resp, err := resilience.Retry(ctx, p, func(ctx context.Context) (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return resilience.Call(ctx, c.breaker, func(ctx context.Context) (*Response, error) {
			c.calls.Add(1)
			if c.cfg.TimeoutSecs > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSecs)*time.Second)
				defer cancel()
			}
			resp, err := c.provider.Generate(ctx, req)
			if err != nil && ctx.Err() == nil && !resilience.IsTransient(err) {
				return nil, &ModelRejectedError{Stage: stage, Err: err}
			}
			return resp, err
		})
	})
	var rejected *ModelRejectedError
	if errors.As(err, &rejected) {
		c.rejected.Add(1)
		zap.L().Error("llm: model request rejected",
			zap.String("provider", c.provider.Name()),
			zap.String("stage", stage),
			zap.String("model", req.Model),
			zap.Error(rejected.Err),
		)
		return "", rejected
	}
	if err != nil {
		c.unavailable.Add(1)
		zap.L().Warn("llm: model call failed",
			zap.String("provider", c.provider.Name()),
			zap.String("stage", stage),
			zap.String("model", req.Model),
			zap.Error(err),
		)
		return "", &ModelUnavailableError{Stage: stage, Err: err}
	}

	usd := c.costs.Log(c.provider.Name(), req.Model, stage, resp.Usage)
	c.mu.Lock()
	c.spent += usd
	c.mu.Unlock()

	return resp.Text, nil
}

// Stats returns a snapshot of call counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	spent := c.spent
	c.mu.Unlock()
	return Stats{
		Provider:      c.provider.Name(),
		Calls:         c.calls.Load(),
		Unavailable:   c.unavailable.Load(),
		Rejected:      c.rejected.Load(),
		InvalidOutput: c.invalid.Load(),
		CostUSD:       spent,
		Breaker:       c.breaker.State().String(),
	}
}
