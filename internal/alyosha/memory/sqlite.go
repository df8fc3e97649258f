package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// SQLiteStore implements Store on the shared SQLite database with
// brute-force cosine similarity computed in Go.
//
// Search loads at most cfg.ScanCap of the most recent records for one
// conversation and scores every one. modernc.org/sqlite cannot register
// custom C scoring functions, and at companion-bot scale (single-digit
// thousands of records per conversation) the Go-side linear scan is fast
// enough that an index structure would be an optimization, not a
// correctness requirement.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	cfg      config.MemoryConfig
	logger   *slog.Logger
}

// NewSQLiteStore creates a SQLiteStore over the given database connection.
// The memory table must exist (created by migration 0003_memory.sql).
// If logger is nil, the default slog logger is used.
func NewSQLiteStore(db *sql.DB, embedder Embedder, cfg config.MemoryConfig, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, embedder: embedder, cfg: cfg, logger: logger}
}

// Remember embeds and persists a user utterance. Texts below the index
// gate are dropped without an embedding call or a write.
func (s *SQLiteStore) Remember(ctx context.Context, conversationID int64, text string) error {
	// Gates count characters, not bytes: Cyrillic runes are two bytes wide.
	if utf8.RuneCountInString(text) < s.cfg.MinIndexLen {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: embed text: %v", ErrUnavailable, err)
	}
	if vec == nil {
		// Noop embedder — nothing to index.
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory (conversation_id, text, vec, created_at)
		VALUES (?, ?, ?, ?)`,
		conversationID, text, EncodeVector(vec), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: insert record: %v", ErrUnavailable, err)
	}

	s.logger.Debug("memory: indexed utterance",
		"conversation_id", conversationID,
		"text_len", utf8.RuneCountInString(text),
		"dim", len(vec),
	)
	return nil
}

// Recall embeds the query, scores the most recent records for the
// conversation by cosine similarity and returns the top k texts above the
// relevance floor, best match first.
func (s *SQLiteStore) Recall(ctx context.Context, conversationID int64, query string, k int) ([]string, error) {
	if utf8.RuneCountInString(query) < s.cfg.MinQueryLen || k <= 0 {
		return nil, nil
	}

	qVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
	}
	if qVec == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT text, vec
		FROM memory
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		conversationID, s.cfg.ScanCap,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query records: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var candidates []scoredText
	for rows.Next() {
		var (
			text string
			blob []byte
		)
		if err := rows.Scan(&text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", ErrUnavailable, err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			s.logger.Warn("memory: skip malformed vector", "err", err, "conversation_id", conversationID)
			continue
		}
		candidates = append(candidates, scoredText{text: text, score: Cosine(qVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", ErrUnavailable, err)
	}

	return selectTop(candidates, k, s.cfg.RelevanceFloor), nil
}

// scoredText pairs a stored text with its similarity to the current query.
type scoredText struct {
	text  string
	score float64
}

// selectTop sorts candidates by descending score, drops entries below the
// floor and returns at most k texts. Insertion sort — fine for the bounded
// candidate counts the scan cap allows.
func selectTop(candidates []scoredText, k int, floor float64) []string {
	for i := 1; i < len(candidates); i++ {
		key := candidates[i]
		j := i - 1
		for j >= 0 && candidates[j].score < key.score {
			candidates[j+1] = candidates[j]
			j--
		}
		candidates[j+1] = key
	}

	var texts []string
	for _, c := range candidates {
		if len(texts) == k {
			break
		}
		if c.score < floor {
			break
		}
		texts = append(texts, c.text)
	}
	return texts
}

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)
