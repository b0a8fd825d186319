package llm

import (
	"errors"
	"fmt"
)

// Stage names the model call that failed.
const (
	StageClassify = "classify"
	StageDossier  = "dossier"
)

// ModelUnavailableError is a transport-level failure reaching the model:
// connection errors, timeouts, 5xx/429 responses or an open breaker. It is
// safe to retry.
type ModelUnavailableError struct {
	Stage string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("llm: %s model unavailable: %v", e.Stage, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ModelRejectedError means the provider refused the request outright, for
// example a bad API key, an unknown model or a malformed request. Retrying
// the same request will not help.
type ModelRejectedError struct {
	Stage string
	Err   error
}

func (e *ModelRejectedError) Error() string {
	return fmt.Sprintf("llm: %s request rejected: %v", e.Stage, e.Err)
}

func (e *ModelRejectedError) Unwrap() error { return e.Err }

// ModelOutputError means the model answered but the answer was not valid
// JSON or failed schema validation. Raw holds the response for diagnosis.
type ModelOutputError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("llm: invalid %s output: %v", e.Stage, e.Err)
}

func (e *ModelOutputError) Unwrap() error { return e.Err }

// IsModelUnavailable reports whether err is or wraps a ModelUnavailableError.
func IsModelUnavailable(err error) bool {
	var e *ModelUnavailableError
	return errors.As(err, &e)
}

// IsModelOutput reports whether err is or wraps a ModelOutputError.
func IsModelOutput(err error) bool {
	var e *ModelOutputError
	return errors.As(err, &e)
}

// IsModelRejected reports whether err is or wraps a ModelRejectedError.
func IsModelRejected(err error) bool {
	var e *ModelRejectedError
	return errors.As(err, &e)
}
