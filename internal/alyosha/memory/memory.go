// Package memory implements Alyosha's long-term semantic memory: an
// append-only store of past user utterances with their embedding vectors,
// recalled by cosine similarity against the current message.
//
// Short utterances are never indexed (noise gate) and short queries never
// hit the store. Recall scans a bounded number of the most recent records
// per conversation, so its cost grows with conversation size, not corpus
// size — a deliberate trade-off at companion-bot scale.
package memory

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the embedding provider or the vector store
// failed. Callers treat it as "no long-term context" for the current turn
// rather than aborting the conversation.
var ErrUnavailable = errors.New("memory: unavailable")

// Store is the long-term memory contract. Implementations must never mix
// records across conversation IDs in a single recall.
type Store interface {
	// Remember indexes a user utterance for later recall. Texts shorter
	// than the configured minimum are dropped silently (nil error, no
	// write, no embedding call).
	Remember(ctx context.Context, conversationID int64, text string) error

	// Recall returns up to k stored texts most similar to query, ordered by
	// descending cosine similarity, with scores below the relevance floor
	// discarded. Queries shorter than the configured minimum return an
	// empty result without touching the store.
	Recall(ctx context.Context, conversationID int64, query string, k int) ([]string, error)
}

// Embedder produces vector embeddings for text. Implementations range from
// a no-op stub (disables recall) to a remote embeddings API.
type Embedder interface {
	// Embed produces a fixed-dimension vector for the given text.
	// Returns nil with no error when embedding is not available (noop).
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NoopEmbedder is a stub Embedder that returns nil vectors. When wired as
// the active embedder, long-term memory is effectively disabled — no
// vectors means nothing to index and nothing to match.
type NoopEmbedder struct{}

// Embed returns nil with no error, signalling that embedding is unavailable.
func (NoopEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

// Compile-time interface satisfaction check.
var _ Embedder = NoopEmbedder{}
