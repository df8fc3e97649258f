// Package app orchestrates one conversational turn: it ties the transport,
// the memory layers, the classifiers and the composer together, serializing
// turns per conversation so concurrent inbound messages cannot interleave
// history appends.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vkotlyarov/alyosha/internal/alyosha/compose"
	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
	"github.com/vkotlyarov/alyosha/internal/alyosha/intent"
	"github.com/vkotlyarov/alyosha/internal/alyosha/memory"
	"github.com/vkotlyarov/alyosha/internal/alyosha/mood"
	"github.com/vkotlyarov/alyosha/internal/alyosha/observability"
	"github.com/vkotlyarov/alyosha/internal/alyosha/style"
	"github.com/vkotlyarov/alyosha/internal/alyosha/weather"
)

// Inbound is one message event delivered by the transport.
type Inbound struct {
	// Contact identifies the counterpart (transport-level user ID).
	Contact string

	// Body is the message text (or transcription for voice).
	Body string

	// MediaType is the transport media type: text, voice, image, ...
	MediaType string

	// Timestamp is when the transport produced the message.
	Timestamp time.Time

	// ID is the transport-level message ID.
	ID string
}

// Sender delivers outbound replies. Implementations return the
// transport-level ID of the sent message.
type Sender interface {
	SendText(ctx context.Context, contact, text string) (string, error)
	SendAudio(ctx context.Context, contact string, audio []byte) (string, error)
}

// Synthesizer turns reply text into voice audio. Optional; a nil Synthesizer
// makes every reply textual.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Composer is the reply-construction surface the pipeline branches over.
// *compose.Composer satisfies it.
type Composer interface {
	Reply(ctx context.Context, in compose.TurnInput) (string, error)
	Weather(ctx context.Context, city string, explicit bool) (string, error)
	Forecast(ctx context.Context, city, mode string) (string, error)
	WeatherTalk(ctx context.Context, city string) (string, error)
	Date(ctx context.Context, explicit bool) (string, error)
	DateTalk(ctx context.Context) (string, error)
	Time(ctx context.Context, explicit bool) (string, error)
	TimeTalk(ctx context.Context) (string, error)
}

// Limiter gates remote generation per conversation. *llm.RateLimiter
// satisfies it.
type Limiter interface {
	Allow(contact string) bool
}

// App is the per-turn pipeline.
type App struct {
	cfg      *config.Config
	hist     *history.Store
	memory   memory.Store
	styles   *style.Engine
	router   *intent.Router
	moods    *mood.Analyzer
	composer Composer
	sender   Sender
	tts      Synthesizer
	limiter  Limiter
	logger   *slog.Logger

	start time.Time
	locks keyedMutex

	// allowed are the media types the pipeline answers; everything else is
	// recorded as a notification.
	allowed map[string]struct{}
}

// Options carries the optional collaborators.
type Options struct {
	TTS     Synthesizer
	Limiter Limiter
	Logger  *slog.Logger
}

// New wires the pipeline. The start time gates replies: messages older than
// process start are logged but never answered.
func New(cfg *config.Config, hist *history.Store, mem memory.Store, styles *style.Engine,
	router *intent.Router, moods *mood.Analyzer, composer Composer, sender Sender, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:      cfg,
		hist:     hist,
		memory:   mem,
		styles:   styles,
		router:   router,
		moods:    moods,
		composer: composer,
		sender:   sender,
		tts:      opts.TTS,
		limiter:  opts.Limiter,
		logger:   logger,
		start:    time.Now(),
		allowed: map[string]struct{}{
			history.TypeText:  {},
			history.TypeVoice: {},
		},
	}
}

// HandleMessage processes one inbound message end to end. It never returns
// a fatal error for collaborator failures; the turn degrades per failure
// class. The returned error covers only cases where no reply could be
// produced or sent at all.
func (a *App) HandleMessage(ctx context.Context, in Inbound) error {
	turnID := uuid.New().String()
	logger := observability.WithTurn(a.logger, turnID).With("contact", in.Contact)

	if _, ok := a.allowed[in.MediaType]; !ok {
		if err := a.hist.AddNotification(ctx, in.Contact, in.MediaType, in.Body); err != nil {
			logger.Error("record media notification", "error", err)
		}
		return nil
	}

	// Serialize per conversation: overlapping messages from one contact
	// must not interleave history appends.
	unlock := a.locks.lock(in.Contact)
	defer unlock()

	convID, err := a.hist.Ensure(ctx, in.Contact)
	if err != nil {
		return fmt.Errorf("app: ensure conversation: %w", err)
	}
	logger = logger.With("conversation_id", convID)

	// Long-term memory write is best-effort; the gate inside Remember
	// drops short texts silently.
	if err := a.memory.Remember(ctx, convID, in.Body); err != nil {
		if errors.Is(err, memory.ErrUnavailable) {
			logger.Warn("memory unavailable, utterance not indexed", "error", err)
		} else {
			logger.Error("remember failed", "error", err)
		}
	}

	detectedMood := a.moods.Detect(ctx, in.Body)

	if _, err := a.hist.Append(ctx, convID, history.Entry{
		Role:        history.RoleUser,
		Content:     in.Body,
		Type:        in.MediaType,
		Mood:        detectedMood,
		Style:       a.cfg.DefaultStyle,
		TransportID: in.ID,
	}); err != nil {
		return fmt.Errorf("app: append inbound: %w", err)
	}

	// Backlog delivered on reconnect is logged above but never answered.
	if !in.Timestamp.IsZero() && in.Timestamp.Before(a.start) {
		logger.Info("skipping message older than process start", "timestamp", in.Timestamp)
		return nil
	}

	settings, err := a.hist.Settings(ctx, convID)
	if err != nil {
		logger.Error("read settings, using defaults", "error", err)
		settings = history.Settings{Style: a.cfg.DefaultStyle, AutoStyle: a.cfg.AutoStyle}
	}

	window, err := a.hist.RecentWindow(ctx, convID, a.cfg.History.Window)
	if err != nil {
		logger.Error("read history window, continuing without it", "error", err)
		window = nil
	}

	styleLabel := settings.Style
	if settings.AutoStyle && a.cfg.AutoStyle {
		styleLabel = a.styles.AutoStyle(window)
	}
	styleLabel, _ = a.styles.Resolve(styleLabel)

	city := a.resolveCity(ctx, convID, in.Body)
	explicit := a.router.IsExplicit(in.Body)
	detected := a.router.Detect(ctx, in.Body, in.MediaType == history.TypeVoice)
	mode := weather.ModeCurrent
	if detected == intent.WeatherRequest {
		mode = forecastMode(in.Body)
	}

	logger.Info("turn classified",
		"intent", detected, "explicit", explicit, "mood", detectedMood,
		"style", styleLabel, "city", city)

	reply, outType, genErr := a.branch(ctx, detected, explicit, city, mode, in.Contact, compose.TurnInput{
		ConversationID: convID,
		Text:           in.Body,
		Window:         window,
		Mood:           detectedMood,
		Style:          styleLabel,
	})
	if genErr != nil {
		// The reply is already the apology; the turn still completes.
		logger.Warn("generation failed for turn", "error", genErr)
	}

	transportID, sendErr := a.send(ctx, in, settings, reply)
	if sendErr != nil {
		return fmt.Errorf("app: send reply: %w", sendErr)
	}

	// Outbound persistence is best-effort once the reply is out.
	out := history.Entry{
		Role:        history.RoleAssistant,
		Content:     reply,
		Type:        outType,
		Mood:        detectedMood,
		Style:       styleLabel,
		TransportID: transportID,
	}
	if outType == history.TypeWeather {
		// The resolved city feeds LastWeatherCity on later turns.
		if meta, err := json.Marshal(history.WeatherMeta{City: city, Mode: mode}); err == nil {
			out.WeatherJSON = string(meta)
		}
	}
	if _, err := a.hist.Append(ctx, convID, out); err != nil {
		logger.Error("append outbound failed", "error", err)
	}
	return nil
}

// branch dispatches the intent to a composer method and names the outbound
// message type.
func (a *App) branch(ctx context.Context, it intent.Intent, explicit bool, city, mode, contact string, in compose.TurnInput) (reply, outType string, err error) {
	// Deterministic fact answers skip the limiter; only remote generation
	// is gated.
	if a.limiter != nil && needsGeneration(it, explicit, mode) && !a.limiter.Allow(contact) {
		return a.cfg.Apology, history.TypeText, fmt.Errorf("app: conversation rate limited")
	}

	switch it {
	case intent.WeatherRequest:
		if mode != weather.ModeCurrent {
			reply, err = a.composer.Forecast(ctx, city, mode)
		} else {
			reply, err = a.composer.Weather(ctx, city, explicit)
		}
		return reply, history.TypeWeather, err
	case intent.WeatherTalk:
		reply, err = a.composer.WeatherTalk(ctx, city)
		return reply, history.TypeWeather, err
	case intent.DateRequest:
		reply, err = a.composer.Date(ctx, explicit)
		return reply, history.TypeText, err
	case intent.DateTalk:
		reply, err = a.composer.DateTalk(ctx)
		return reply, history.TypeText, err
	case intent.TimeRequest:
		reply, err = a.composer.Time(ctx, explicit)
		return reply, history.TypeText, err
	case intent.TimeTalk:
		reply, err = a.composer.TimeTalk(ctx)
		return reply, history.TypeText, err
	default:
		reply, err = a.composer.Reply(ctx, in)
		return reply, history.TypeText, err
	}
}

// needsGeneration reports whether the branch will call the remote provider.
func needsGeneration(it intent.Intent, explicit bool, mode string) bool {
	switch it {
	case intent.DateRequest, intent.TimeRequest:
		return !explicit
	case intent.WeatherRequest:
		// Forecasts are always narrated; only the current reading has a
		// deterministic form.
		return !explicit || mode != weather.ModeCurrent
	default:
		return true
	}
}

// forecastMode maps horizon words in the utterance to a forecast mode.
// Without one the current reading is requested.
func forecastMode(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "завтра"):
		return weather.ModeTomorrow
	case strings.Contains(lower, "недел"):
		return weather.ModeWeek
	case strings.Contains(lower, "прогноз"):
		return weather.ModeToday
	}
	return weather.ModeCurrent
}

// send delivers the reply, as voice when the inbound was voice (or auto-TTS
// is enabled) and synthesis succeeds, as text otherwise.
func (a *App) send(ctx context.Context, in Inbound, settings history.Settings, reply string) (string, error) {
	wantVoice := in.MediaType == history.TypeVoice || settings.TTSEnabled
	if wantVoice && a.tts != nil {
		audio, err := a.tts.Synthesize(ctx, reply, settings.TTSVoice)
		if err != nil {
			a.logger.Warn("speech synthesis failed, sending text", "error", err)
		} else if id, err := a.sender.SendAudio(ctx, in.Contact, audio); err == nil {
			return id, nil
		} else {
			a.logger.Warn("audio send failed, sending text", "error", err)
		}
	}
	return a.sender.SendText(ctx, in.Contact, reply)
}

// cityMention matches "в Москве", "около Питера" and similar preposition
// phrases.
var cityMention = regexp.MustCompile(`(?i)(?:в|на|для|по|у|около|возле)\s+([а-яё][а-яё\s-]+)`)

// resolveCity infers the weather city: the utterance first, then the city of
// the most recent weather reply, then the configured default.
func (a *App) resolveCity(ctx context.Context, convID int64, text string) string {
	if city := a.extractCity(text); city != "" {
		return city
	}
	if city, err := a.hist.LastWeatherCity(ctx, convID); err == nil && city != "" {
		return city
	}
	return a.cfg.Weather.DefaultCity
}

// extractCity scans for configured aliases first (deterministic order), then
// for a preposition phrase naming a place. Returns "" when nothing matches.
func (a *App) extractCity(text string) string {
	lower := strings.ToLower(text)

	aliases := make([]string, 0, len(a.cfg.Weather.CityAliases))
	for alias := range a.cfg.Weather.CityAliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if strings.Contains(lower, alias) {
			return a.cfg.Weather.CityAliases[alias]
		}
	}

	for _, m := range cityMention.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if len([]rune(candidate)) > 2 {
			return candidate
		}
	}
	return ""
}

// Compile-time interface satisfaction check.
var _ Composer = (*compose.Composer)(nil)
