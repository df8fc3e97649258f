// Package history implements the per-conversation message log and chat
// settings. The log is append-only; only the most recent window is ever
// read by the reply pipeline, older entries stay persisted for audit.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message types recorded in the log.
const (
	TypeText    = "text"
	TypeVoice   = "voice"
	TypeImage   = "image"
	TypeWeather = "weather"
)

// Entry is one turn in a conversation's history.
type Entry struct {
	ID          string    // UUID assigned on append
	Role        Role      // user or assistant
	Content     string    // message text
	Type        string    // text, voice, image, weather, ...
	Mood        string    // mood detected for this turn
	Style       string    // style active for this turn
	TransportID string    // transport-level message ID, when known
	WeatherJSON string    // raw weather payload for weather replies
	CreatedAt   time.Time // when the entry was appended
}

// Settings are the per-conversation knobs users can toggle.
type Settings struct {
	Style      string
	AutoStyle  bool
	TTSEnabled bool
	TTSVoice   string
}

// Store provides conversation registry, history log, settings and
// notification access over the shared SQLite database. It is safe for
// concurrent use; per-conversation append ordering is the caller's
// responsibility (the app serializes turns per conversation).
type Store struct {
	db       *sql.DB
	defaults Settings
	logger   *slog.Logger
}

// New creates a history Store. defaults seed the settings of conversations
// created by Ensure. If logger is nil, the default slog logger is used.
func New(db *sql.DB, defaults Settings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, defaults: defaults, logger: logger}
}

// Ensure returns the conversation ID for contact, creating the conversation
// with default settings on first sight. Conversations are never deleted.
func (s *Store) Ensure(ctx context.Context, contact string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (contact, style, auto_style, tts_enabled, tts_voice, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact) DO NOTHING`,
		contact, s.defaults.Style, boolToInt(s.defaults.AutoStyle),
		boolToInt(s.defaults.TTSEnabled), s.defaults.TTSVoice,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("history: ensure conversation: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE contact = ?`, contact,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("history: lookup conversation: %w", err)
	}
	return id, nil
}

// Settings returns the current settings for a conversation. A missing row
// (conversation never ensured) yields the defaults.
func (s *Store) Settings(ctx context.Context, conversationID int64) (Settings, error) {
	var (
		out              Settings
		autoStyle, ttsOn int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT style, auto_style, tts_enabled, tts_voice
		FROM conversations WHERE id = ?`, conversationID,
	).Scan(&out.Style, &autoStyle, &ttsOn, &out.TTSVoice)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("history: read settings: %w", err)
	}
	out.AutoStyle = autoStyle != 0
	out.TTSEnabled = ttsOn != 0
	return out, nil
}

// SetStyle pins an explicit style and disables auto-style selection.
func (s *Store) SetStyle(ctx context.Context, conversationID int64, style string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET style = ?, auto_style = 0 WHERE id = ?`,
		style, conversationID,
	)
	if err != nil {
		return fmt.Errorf("history: set style: %w", err)
	}
	return nil
}

// SetAutoStyle toggles history-driven style selection.
func (s *Store) SetAutoStyle(ctx context.Context, conversationID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET auto_style = ? WHERE id = ?`,
		boolToInt(enabled), conversationID,
	)
	if err != nil {
		return fmt.Errorf("history: set auto_style: %w", err)
	}
	return nil
}

// SetTTS toggles voice replies for the conversation.
func (s *Store) SetTTS(ctx context.Context, conversationID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET tts_enabled = ? WHERE id = ?`,
		boolToInt(enabled), conversationID,
	)
	if err != nil {
		return fmt.Errorf("history: set tts_enabled: %w", err)
	}
	return nil
}

// SetVoice selects the synthesis voice for the conversation.
func (s *Store) SetVoice(ctx context.Context, conversationID int64, voice string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET tts_voice = ? WHERE id = ?`,
		voice, conversationID,
	)
	if err != nil {
		return fmt.Errorf("history: set tts_voice: %w", err)
	}
	return nil
}

// Append adds an entry to the conversation log and returns its assigned ID.
// Entry.CreatedAt is stamped here; the integer rowid provides the total
// per-conversation order.
func (s *Store) Append(ctx context.Context, conversationID int64, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Type == "" {
		e.Type = TypeText
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history
			(entry_id, conversation_id, role, content, msg_type, mood, style, transport_id, weather_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, conversationID, string(e.Role), e.Content, e.Type, e.Mood, e.Style,
		nullable(e.TransportID), nullable(e.WeatherJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("history: append entry: %w", err)
	}
	return e.ID, nil
}

// RecentWindow returns at most n of the most recent entries, re-ordered
// oldest first for prompt assembly. The query reads newest-first (that is
// what the index serves) and reverses before returning.
func (s *Store) RecentWindow(ctx context.Context, conversationID int64, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, role, content, msg_type, mood, style, created_at
		FROM history
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		conversationID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query window: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			role      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &role, &e.Content, &e.Type, &e.Mood, &e.Style, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		e.Role = Role(role)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate window: %w", err)
	}

	// Reverse newest-first to oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// WeatherMeta is the payload persisted in weather_json alongside weather
// replies: the resolved city (and forecast horizon) the reply was built for.
type WeatherMeta struct {
	City string `json:"city"`
	Mode string `json:"mode,omitempty"`
}

// cityPattern extracts the city mentioned in a weather reply
// ("Сейчас в городе Moscow ..."). The capture must end on a letter so the
// temperature that follows is not swallowed.
var cityPattern = regexp.MustCompile(`(?i)в (?:городе )?([\p{L}](?:[\p{L}\s-]*\p{L})?)`)

// LastWeatherCity returns the city of the most recent weather reply, or ""
// when the conversation has no weather history. Used to infer the city when
// the current utterance does not name one. The weather_json metadata is
// authoritative; parsing the reply text is kept for rows written without it.
func (s *Store) LastWeatherCity(ctx context.Context, conversationID int64) (string, error) {
	var (
		content string
		meta    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT content, weather_json FROM history
		WHERE conversation_id = ? AND msg_type = ?
		ORDER BY id DESC LIMIT 1`,
		conversationID, TypeWeather,
	).Scan(&content, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: last weather reply: %w", err)
	}

	if meta.Valid && meta.String != "" {
		var wm WeatherMeta
		if err := json.Unmarshal([]byte(meta.String), &wm); err == nil && wm.City != "" {
			return wm.City, nil
		}
	}

	m := cityPattern.FindStringSubmatch(content)
	if m == nil {
		return "", nil
	}
	city, _, _ := strings.Cut(m[1], "\n")
	return strings.TrimSpace(city), nil
}

// AddNotification logs a service/media transport event for audit. Never
// read by the reply pipeline.
func (s *Store) AddNotification(ctx context.Context, contact, kind, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (contact, kind, message, created_at)
		VALUES (?, ?, ?, ?)`,
		contact, kind, message, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: add notification: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
