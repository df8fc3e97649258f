package memory

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// stubEmbedder returns canned vectors per text and records how often it was
// called. Unknown texts produce the fallback vector.
type stubEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

// setupMemoryDB creates an in-memory SQLite database with the memory table.
func setupMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE memory (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			text            TEXT NOT NULL,
			vec             BLOB NOT NULL,
			created_at      TEXT NOT NULL
		);
		CREATE INDEX idx_memory_conversation ON memory(conversation_id, id);
	`)
	if err != nil {
		t.Fatalf("create memory table: %v", err)
	}
	return db
}

func testMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{
		MinIndexLen:    15,
		MinQueryLen:    8,
		ScanCap:        1000,
		RelevanceFloor: 0.25,
		TopK:           5,
	}
}

func countRecords(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM memory").Scan(&n); err != nil {
		t.Fatalf("count records: %v", err)
	}
	return n
}

func TestSQLiteStore_RememberShortTextIsNoop(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)

	if err := s.Remember(context.Background(), 1, "коротко"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	if got := countRecords(t, db); got != 0 {
		t.Errorf("store size = %d after short text, want 0", got)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for gated text, want 0", emb.calls)
	}
}

func TestSQLiteStore_RememberPersistsVector(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{fallback: []float32{0.5, -0.25, 1}}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)

	text := "я вчера целый день настраивал сервер"
	if err := s.Remember(context.Background(), 7, text); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	if got := countRecords(t, db); got != 1 {
		t.Fatalf("store size = %d, want 1", got)
	}

	var blob []byte
	if err := db.QueryRow("SELECT vec FROM memory WHERE conversation_id = 7").Scan(&blob); err != nil {
		t.Fatalf("read vec: %v", err)
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		t.Fatalf("DecodeVector() error: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 || vec[2] != 1 {
		t.Errorf("persisted vector = %v, want [0.5 -0.25 1]", vec)
	}
}

func TestSQLiteStore_RecallShortQueryIsEmpty(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)

	// Seed one record directly so the store is non-empty.
	if err := s.Remember(context.Background(), 1, "достаточно длинное сообщение для индекса"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	emb.calls = 0

	texts, err := s.Recall(context.Background(), 1, "коротк", 3)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("expected empty recall for short query, got %v", texts)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for gated query, want 0", emb.calls)
	}
}

func TestSQLiteStore_GatesCountRunesNotBytes(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)
	ctx := context.Background()

	// 10 characters but 18 bytes: clears the 15 gate only if bytes are
	// counted.
	if err := s.Remember(ctx, 1, "привет, да"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	if got := countRecords(t, db); got != 0 {
		t.Errorf("store size = %d after 10-char text, want 0", got)
	}

	// 7 characters, 12 bytes against the 8-char query gate.
	texts, err := s.Recall(ctx, 1, "как ты?", 5)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("Recall() = %v for 7-char query, want empty", texts)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for gated inputs, want 0", emb.calls)
	}
}

func TestSQLiteStore_RecallRanksAndFloors(t *testing.T) {
	db := setupMemoryDB(t)

	// Unit vectors with known cosine similarity to the query (1, 0):
	// 0.9, 0.4 and 0.1 respectively. The floor (0.25) must cut the third.
	emb := &stubEmbedder{
		vectors: map[string][]float32{
			"мы говорили про отпуск в горах": {0.9, 0.43589},
			"обсуждали рецепт борща недавно": {0.4, 0.91652},
			"случайная заметка ни о чём тут": {0.1, 0.99499},
			"о чём мы говорили про отпуск?": {1, 0},
		},
	}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)
	ctx := context.Background()

	for _, text := range []string{
		"обсуждали рецепт борща недавно",
		"случайная заметка ни о чём тут",
		"мы говорили про отпуск в горах",
	} {
		if err := s.Remember(ctx, 1, text); err != nil {
			t.Fatalf("Remember(%q) error: %v", text, err)
		}
	}

	texts, err := s.Recall(ctx, 1, "о чём мы говорили про отпуск?", 2)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	want := []string{
		"мы говорили про отпуск в горах",
		"обсуждали рецепт борща недавно",
	}
	if len(texts) != len(want) {
		t.Fatalf("recall returned %d texts (%v), want %d", len(texts), texts, len(want))
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("recall[%d] = %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestSQLiteStore_RecallNeverCrossesConversations(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{fallback: []float32{1, 0}}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)
	ctx := context.Background()

	if err := s.Remember(ctx, 1, "разговор первого собеседника тут"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	if err := s.Remember(ctx, 2, "разговор второго собеседника тут"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}

	texts, err := s.Recall(ctx, 2, "что обсуждали раньше?", 10)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(texts) != 1 || texts[0] != "разговор второго собеседника тут" {
		t.Errorf("recall leaked across conversations: %v", texts)
	}
}

func TestSQLiteStore_EmbedderFailureIsUnavailable(t *testing.T) {
	db := setupMemoryDB(t)
	emb := &stubEmbedder{err: errors.New("remote down")}
	s := NewSQLiteStore(db, emb, testMemoryConfig(), nil)
	ctx := context.Background()

	err := s.Remember(ctx, 1, "достаточно длинное сообщение для индекса")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Remember() error = %v, want ErrUnavailable", err)
	}

	_, err = s.Recall(ctx, 1, "достаточно длинный запрос", 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Recall() error = %v, want ErrUnavailable", err)
	}
}

func TestSQLiteStore_NoopEmbedderDisablesMemory(t *testing.T) {
	db := setupMemoryDB(t)
	s := NewSQLiteStore(db, NoopEmbedder{}, testMemoryConfig(), nil)
	ctx := context.Background()

	if err := s.Remember(ctx, 1, "достаточно длинное сообщение для индекса"); err != nil {
		t.Fatalf("Remember() error: %v", err)
	}
	if got := countRecords(t, db); got != 0 {
		t.Errorf("store size = %d with noop embedder, want 0", got)
	}

	texts, err := s.Recall(ctx, 1, "достаточно длинный запрос", 3)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if texts != nil {
		t.Errorf("expected nil recall with noop embedder, got %v", texts)
	}
}

func TestSelectTop_OrderAndFloor(t *testing.T) {
	candidates := []scoredText{
		{text: "low", score: 0.1},
		{text: "high", score: 0.9},
		{text: "mid", score: 0.4},
	}
	got := selectTop(candidates, 2, 0.25)
	if len(got) != 2 || got[0] != "high" || got[1] != "mid" {
		t.Errorf("selectTop = %v, want [high mid]", got)
	}
}
