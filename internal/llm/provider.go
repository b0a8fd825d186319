// Package llm invokes the external classification and dossier models and
// turns their JSON answers into validated results.
package llm

import (
	"context"

	"github.com/sells-group/lead-engine/internal/cost"
)

// Request is one single-turn prompt to a model.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Response is a model's text answer and its token usage.
type Response struct {
	Text  string
	Model string
	Usage cost.Usage
}

// Provider sends a Request to one model vendor. Implementations mark
// retryable failures with resilience.Transient.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}
