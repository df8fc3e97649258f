// Package matrix adapts the Matrix transport to the conversation pipeline:
// it converts sync events into app.Inbound messages and sends replies back
// into the originating room.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/vkotlyarov/alyosha/internal/alyosha/app"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
)

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// SyncStore persists the sync position across restarts. When nil, an
	// in-memory store is used and room history replays on every restart
	// (the app's start-time gate keeps the backlog unanswered).
	SyncStore mautrix.SyncStore
}

// Handler processes one converted inbound message.
type Handler func(ctx context.Context, in app.Inbound)

// Client wraps the mautrix client. The room ID doubles as the conversation
// contact: one room, one conversation.
type Client struct {
	client  *mautrix.Client
	config  *Config
	stopCh  chan struct{}
	handler Handler
}

// New creates a Matrix client.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.SyncStore != nil {
		client.Store = config.SyncStore
		slog.Info("matrix sync store: using persistent store")
	} else {
		slog.Warn("matrix sync store: in-memory, history will replay on restart")
	}

	return c, nil
}

// Start begins syncing with the homeserver and dispatching messages to
// handler. The sync loop reconnects with exponential backoff; without
// retries a transient homeserver error would leave the bot deaf.
func (c *Client) Start(ctx context.Context, handler Handler) error {
	c.handler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	syncer.OnEventType(event.StateMember, c.handleInvite)

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin // reset before each attempt
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("matrix sync stopped, reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil: clean StopSync() call.
			return
		}
	}()

	return nil
}

// Stop stops the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendText sends a text reply into the room identified by contact and
// returns the event ID.
func (c *Client) SendText(ctx context.Context, contact, text string) (string, error) {
	resp, err := c.client.SendText(ctx, id.RoomID(contact), text)
	if err != nil {
		return "", fmt.Errorf("matrix: send text: %w", err)
	}
	return resp.EventID.String(), nil
}

// SendAudio uploads the audio blob and sends it as a voice message.
func (c *Client) SendAudio(ctx context.Context, contact string, audio []byte) (string, error) {
	upload, err := c.client.UploadBytes(ctx, audio, "audio/ogg")
	if err != nil {
		return "", fmt.Errorf("matrix: upload audio: %w", err)
	}

	content := event.MessageEventContent{
		MsgType: event.MsgAudio,
		Body:    "voice message",
		URL:     upload.ContentURI.CUString(),
	}
	resp, err := c.client.SendMessageEvent(ctx, id.RoomID(contact), event.EventMessage, &content)
	if err != nil {
		return "", fmt.Errorf("matrix: send audio: %w", err)
	}
	return resp.EventID.String(), nil
}

// handleMessage converts an incoming room message into an app.Inbound and
// dispatches it.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}

	in := app.Inbound{
		Contact:   evt.RoomID.String(),
		Body:      msg.Body,
		MediaType: mediaType(msg.MsgType),
		Timestamp: time.UnixMilli(evt.Timestamp),
		ID:        evt.ID.String(),
	}
	if c.handler != nil {
		c.handler(ctx, in)
	}
}

// handleInvite auto-joins rooms the bot is invited to.
func (c *Client) handleInvite(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != c.config.UserID {
		return
	}
	if m := evt.Content.AsMember(); m == nil || m.Membership != event.MembershipInvite {
		return
	}
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("matrix join: already a member or access denied", "room", evt.RoomID)
			return
		}
		slog.Error("matrix join failed", "room", evt.RoomID, "err", err)
	}
}

// mediaType maps Matrix message types to history message types.
func mediaType(t event.MessageType) string {
	switch t {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		return history.TypeText
	case event.MsgAudio:
		return history.TypeVoice
	case event.MsgImage:
		return history.TypeImage
	default:
		return string(t)
	}
}

// Compile-time interface satisfaction check.
var _ app.Sender = (*Client)(nil)
