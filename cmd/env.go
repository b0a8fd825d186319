package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/fetcher"
	"github.com/sells-group/lead-engine/internal/fingerprint"
	"github.com/sells-group/lead-engine/internal/llm"
	"github.com/sells-group/lead-engine/internal/pipeline"
	"github.com/sells-group/lead-engine/internal/store"
)

// leadEnv holds the store and, for commands that call the model, the
// classifier and its collaborators.
type leadEnv struct {
	Store      store.Store
	Classifier *pipeline.Classifier
	LLM        *llm.Client
	Cache      *fingerprint.Cache
}

// Close releases resources held by the environment. Pending background
// dossiers are abandoned.
func (e *leadEnv) Close() {
	if e.Classifier != nil {
		e.Classifier.Close()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore validates store settings, opens the configured backend and
// applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initClassifier sets up the store, model client, cache and classifier.
// Callers should defer env.Close().
func initClassifier(ctx context.Context) (*leadEnv, error) {
	if err := cfg.Validate("classify"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	c, client, cache, err := pipeline.Build(ctx, cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "build classifier")
	}
	return &leadEnv{Store: st, Classifier: c, LLM: client, Cache: cache}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openInput opens a CSV argument that may be a local path or a URL.
func openInput(ctx context.Context, src string) (io.ReadCloser, error) {
	return fetcher.Open(ctx, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), src)
}
