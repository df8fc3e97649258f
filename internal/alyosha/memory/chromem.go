package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	chromem "github.com/philippgille/chromem-go"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// ChromemStore implements Store on chromem-go, a pure-Go embedded vector
// database. Each conversation gets its own collection, so a recall can
// never see another conversation's records.
//
// Intended for deployments that want memory without the SQLite file (demo
// or ephemeral instances); the SQLite store remains the durable default.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	cfg      config.MemoryConfig
	logger   *slog.Logger

	mu          sync.Mutex
	collections map[int64]*chromem.Collection
	nextID      int64
}

// NewChromemStore creates an in-memory ChromemStore.
// If logger is nil, the default slog logger is used.
func NewChromemStore(embedder Embedder, cfg config.MemoryConfig, logger *slog.Logger) *ChromemStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromemStore{
		db:          chromem.NewDB(),
		embedder:    embedder,
		cfg:         cfg,
		logger:      logger,
		collections: make(map[int64]*chromem.Collection),
	}
}

// collection returns the per-conversation collection, creating it on first
// use. Embeddings are always supplied by the caller, so no embedding
// function is registered with chromem.
func (s *ChromemStore) collection(conversationID int64) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[conversationID]; ok {
		return col, nil
	}

	name := fmt.Sprintf("conversation_%d", conversationID)
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	s.collections[conversationID] = col
	return col, nil
}

// Remember embeds and stores a user utterance in the conversation's
// collection. Texts below the index gate are dropped silently.
func (s *ChromemStore) Remember(ctx context.Context, conversationID int64, text string) error {
	// Gates count characters, not bytes: Cyrillic runes are two bytes wide.
	if utf8.RuneCountInString(text) < s.cfg.MinIndexLen {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: embed text: %v", ErrUnavailable, err)
	}
	if vec == nil {
		return nil
	}

	col, err := s.collection(conversationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	doc := chromem.Document{
		ID:        strconv.FormatInt(id, 10),
		Content:   text,
		Embedding: vec,
		Metadata:  map[string]string{"created_at": time.Now().UTC().Format(time.RFC3339)},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: add document: %v", ErrUnavailable, err)
	}
	return nil
}

// Recall queries the conversation's collection and returns up to k texts
// above the relevance floor, best match first.
func (s *ChromemStore) Recall(ctx context.Context, conversationID int64, query string, k int) ([]string, error) {
	if utf8.RuneCountInString(query) < s.cfg.MinQueryLen || k <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	col, ok := s.collections[conversationID]
	s.mu.Unlock()
	if !ok {
		// No records for this conversation yet.
		return nil, nil
	}

	qVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}
	if qVec == nil {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size.
	n := k
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, qVec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query collection: %v", ErrUnavailable, err)
	}

	var texts []string
	for _, r := range results {
		if float64(r.Similarity) < s.cfg.RelevanceFloor {
			continue
		}
		texts = append(texts, r.Content)
	}
	return texts, nil
}

// Compile-time interface satisfaction check.
var _ Store = (*ChromemStore)(nil)
