package matrix

// syncstore.go implements mautrix.SyncStore backed by the shared SQLite
// database. Persisting the next_batch token across restarts keeps the bot
// from replaying room history it already answered in a previous run.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// Compile-time assertion that DBSyncStore satisfies mautrix.SyncStore.
var _ mautrix.SyncStore = (*DBSyncStore)(nil)

// DBSyncStore stores each value as a row in the sync_state table, keyed by
// "<name>:<user_id>".
type DBSyncStore struct {
	db *sql.DB
}

// NewDBSyncStore creates a DBSyncStore on the given connection. The
// sync_state migration must have been applied.
func NewDBSyncStore(db *sql.DB) *DBSyncStore {
	return &DBSyncStore{db: db}
}

// SaveFilterID persists the Matrix event-filter ID for the given user.
func (s *DBSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.save(ctx, key("filter_id", userID), filterID)
}

// LoadFilterID retrieves the persisted event-filter ID. Returns ("", nil)
// when none has been saved yet.
func (s *DBSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, key("filter_id", userID))
}

// SaveNextBatch persists the opaque /sync next_batch token.
func (s *DBSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.save(ctx, key("next_batch", userID), nextBatchToken)
}

// LoadNextBatch retrieves the last saved next_batch token. Returns ("", nil)
// on first run.
func (s *DBSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, key("next_batch", userID))
}

func key(name string, userID id.UserID) string {
	return fmt.Sprintf("%s:%s", name, userID)
}

func (s *DBSyncStore) save(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *DBSyncStore) load(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
