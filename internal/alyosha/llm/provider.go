// Package llm provides the generation layer for Alyosha: an
// OpenAI-compatible chat-completion provider plus a per-conversation rate
// limiter.
//
// The layer has two entry points. Complete produces a full conversational
// reply from a system instruction and prior turns; Classify produces a short
// label (intent, style, mood) from a single instruction prompt. Both are
// allowed to fail: callers degrade to heuristics or to the fixed apology
// rather than propagating the failure.
package llm

import (
	"context"
	"errors"
)

// ErrGenerationFailed is returned when the upstream completion call fails
// for any reason other than rate limiting. The caller answers the turn with
// the fixed apology and does not retry.
var ErrGenerationFailed = errors.New("llm: generation failed")

// ErrRateLimit is returned when the upstream API reports a rate-limiting
// condition (HTTP 429). Distinguished from ErrGenerationFailed so callers
// can log the cause, though the user-facing behavior is the same.
var ErrRateLimit = errors.New("llm: upstream rate limit exceeded")

// Turn is a single prior exchange injected into the completion context so
// the model has continuity across messages.
type Turn struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// CompletionRequest is the input to a single generation call.
type CompletionRequest struct {
	// System is the full instruction block: persona, recap, recall,
	// temporal facts, style directive.
	System string

	// Turns are the short-term history entries, oldest first.
	Turns []Turn

	// Temperature is the sampling temperature, taken from the active style.
	Temperature float64

	// MaxTokens is the reply length budget, taken from the active style.
	MaxTokens int
}

// Provider is the remote text-generation capability.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete generates a conversational reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Classify answers an instruction prompt with a short label. The label
	// is returned raw; callers trim, lower-case, and validate it.
	Classify(ctx context.Context, prompt string) (string, error)
}
