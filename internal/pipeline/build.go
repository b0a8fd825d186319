package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/fingerprint"
	"github.com/sells-group/lead-engine/internal/heuristics"
	"github.com/sells-group/lead-engine/internal/llm"
	"github.com/sells-group/lead-engine/internal/scoring"
)

// Build wires a Classifier and its model client from configuration.
func Build(ctx context.Context, cfg *config.Config, repo Repository) (*Classifier, *llm.Client, *fingerprint.Cache, error) {
	composer, err := scoring.NewComposer(cfg.Scoring)
	if err != nil {
		return nil, nil, nil, err
	}

	icp, err := LoadICP(cfg.ICP.Path)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, nil, nil, eris.Wrap(err, "pipeline: model client")
	}

	var cache *fingerprint.Cache
	if cfg.Cache.Enabled {
		cache = fingerprint.Open(ctx, cfg.Cache)
	}

	c, err := NewClassifier(Deps{
		Repo:     repo,
		Invoker:  client,
		Prompts:  client.Prompts(),
		Cache:    cache,
		Engine:   heuristics.NewEngine(cfg.Heuristics, cfg.Funding),
		Composer: composer,
		ICP:      icp,
	}, OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	return c, client, cache, nil
}
