package driven

import (
	"context"
	"errors"
)

// ErrGenerationUnavailable marks a generator that is unreachable,
// misconfigured, or returned an error. Callers treat it as non-fatal: the
// affected message is logged as failed and left for the next cycle.
var ErrGenerationUnavailable = errors.New("reply generator unavailable")

// ReplyGenerator defines the driven port for the text-generation backend.
type ReplyGenerator interface {
	// Generate produces a draft reply for the given prompt. Failures are
	// reported as ErrGenerationUnavailable (possibly wrapped).
	Generate(ctx context.Context, prompt string) (string, error)
}
