// Package compose assembles replies. The general-chat path builds a single
// instruction block from the persona, a short-term recap, a best-effort
// profile summary, long-term recall, temporal facts and the active style,
// then invokes the generation provider with per-style parameters. The
// weather/date/time branches return a deterministic fact for explicit
// requests and a fact-free generative remark otherwise.
//
// Every method returns a sendable reply even on failure: generation errors
// yield the fixed apology (plus llm.ErrGenerationFailed for the caller's
// log), weather data errors yield their verbatim user-facing message.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
	"github.com/vkotlyarov/alyosha/internal/alyosha/llm"
	"github.com/vkotlyarov/alyosha/internal/alyosha/memory"
	"github.com/vkotlyarov/alyosha/internal/alyosha/timefacts"
	"github.com/vkotlyarov/alyosha/internal/alyosha/weather"
)

// recapWindow bounds how many history entries the recap block quotes.
const recapWindow = 20

// analysisSystem is the instruction for fact-to-prose remarks (weather talk,
// implicit date/time answers, forecast narration).
const analysisSystem = "Ты эксперт-комментатор. Объясняй понятно, с эмодзи."

const (
	analysisTemperature = 0.7
	analysisMaxTokens   = 400
)

// Recaller is the slice of the vector memory store the composer reads.
type Recaller interface {
	Recall(ctx context.Context, conversationID int64, query string, k int) ([]string, error)
}

// TurnInput carries everything the general-chat path needs for one turn.
type TurnInput struct {
	ConversationID int64

	// Text is the latest user utterance; it keys the long-term recall.
	Text string

	// Window is the short-term history, oldest first, including the latest
	// user message.
	Window []history.Entry

	// Mood is the detected emotion label for this turn.
	Mood string

	// Style is the resolved style label (explicit or auto).
	Style string
}

// Composer builds replies for all intent branches.
type Composer struct {
	cfg      *config.Config
	provider llm.Provider
	memory   Recaller
	source   weather.Source
	clock    timefacts.Clock
	touch    *HumanTouch
	logger   *slog.Logger
}

// New creates a Composer. memory and source may be nil; recall then degrades
// to empty and the weather branches report a fetch failure. If logger is
// nil, the default slog logger is used.
func New(cfg *config.Config, provider llm.Provider, recaller Recaller, source weather.Source,
	clock timefacts.Clock, touch *HumanTouch, logger *slog.Logger) *Composer {
	if touch == nil {
		touch = NewHumanTouch(cfg.HumanTouch, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		cfg:      cfg,
		provider: provider,
		memory:   recaller,
		source:   source,
		clock:    clock,
		touch:    touch,
		logger:   logger,
	}
}

// Reply handles the general-chat branch. The returned string is always
// sendable; when generation fails it is the fixed apology and the error
// wraps llm.ErrGenerationFailed.
func (c *Composer) Reply(ctx context.Context, in TurnInput) (string, error) {
	recall := c.recall(ctx, in)

	styleDef, ok := c.cfg.Styles[in.Style]
	if !ok {
		styleDef = c.cfg.Styles[c.cfg.FallbackStyle]
	}

	system := c.buildSystem(in, recall, styleDef)

	turns := make([]llm.Turn, 0, len(in.Window))
	for _, e := range in.Window {
		turns = append(turns, llm.Turn{Role: string(e.Role), Content: e.Content})
	}

	out, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System:      system,
		Turns:       turns,
		Temperature: styleDef.Temperature,
		MaxTokens:   styleDef.MaxTokens,
	})
	if err != nil {
		return c.cfg.Apology, fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)
	}
	return c.touch.Apply(strings.TrimSpace(out)), nil
}

// recall fetches long-term context, degrading to nothing on any failure.
func (c *Composer) recall(ctx context.Context, in TurnInput) []string {
	if c.memory == nil {
		return nil
	}
	texts, err := c.memory.Recall(ctx, in.ConversationID, in.Text, c.cfg.Memory.TopK)
	if err != nil {
		if errors.Is(err, memory.ErrUnavailable) {
			c.logger.Warn("long-term memory unavailable, continuing without recall", "error", err)
		} else {
			c.logger.Error("recall failed", "error", err)
		}
		return nil
	}
	return texts
}

// buildSystem assembles the instruction block: persona, recap, profile,
// recall bullets, temporal facts, style directive, optional emotion hint.
func (c *Composer) buildSystem(in TurnInput, recall []string, styleDef config.StyleDef) string {
	var b strings.Builder
	b.WriteString(c.cfg.Persona)
	b.WriteString("\n")
	b.WriteString(buildRecap(in.Window))
	b.WriteString(buildProfile(in.Window))
	b.WriteString("Актуальные воспоминания:\n")
	if len(recall) == 0 {
		b.WriteString("— нет —")
	} else {
		for i, t := range recall {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("• " + t)
		}
	}
	fmt.Fprintf(&b, "\nСейчас %s, %s, сезон %s.\n", c.clock.Time(), c.clock.DayOfWeek(), c.clock.Season())
	b.WriteString(styleDef.Prompt)
	if hint := c.cfg.EmotionHints[in.Mood]; hint != "" {
		b.WriteString("\n" + hint)
	}
	return strings.TrimSpace(b.String())
}

// buildRecap quotes the most recent entries as a compact transcript.
func buildRecap(window []history.Entry) string {
	start := 0
	if len(window) > recapWindow {
		start = len(window) - recapWindow
	}
	var b strings.Builder
	b.WriteString("Переписка (кратко):\n")
	for _, e := range window[start:] {
		who := "Пользователь"
		if e.Role == history.RoleAssistant {
			who = "Бот"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, e.Content)
	}
	return b.String()
}

var (
	namePattern = regexp.MustCompile(`(?i)меня\s+зовут\s+(\p{Lu}\p{L}+)`)
	techPattern = regexp.MustCompile(`(?i)(api|код|js|сервер|sql)`)
	petPattern  = regexp.MustCompile(`(?i)(кот|собак|пёс)`)
)

// buildProfile derives an advisory summary of the counterpart from their
// recent utterances: best-effort name extraction plus topic-interest flags.
func buildProfile(window []history.Entry) string {
	var parts []string
	for _, e := range window {
		if e.Role == history.RoleUser {
			parts = append(parts, e.Content)
		}
	}
	text := strings.Join(parts, " ")

	name := "друг"
	if m := namePattern.FindStringSubmatch(text); m != nil {
		name = m[1]
	}
	return fmt.Sprintf("О собеседнике: имя ≈ %s; интерес к технике: %s; любит говорить о питомцах: %s.\n",
		name, yesNo(techPattern.MatchString(text)), yesNo(petPattern.MatchString(text)))
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}

// analyze asks the provider for a fact-free conversational remark. Failures
// map to the apology plus llm.ErrGenerationFailed.
func (c *Composer) analyze(ctx context.Context, prompt string) (string, error) {
	out, err := c.provider.Complete(ctx, llm.CompletionRequest{
		System:      analysisSystem,
		Turns:       []llm.Turn{{Role: "user", Content: prompt}},
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		return c.cfg.Apology, fmt.Errorf("%w: %v", llm.ErrGenerationFailed, err)
	}
	return strings.TrimSpace(out), nil
}

// Weather handles weather_request. Explicit requests get the deterministic
// report; implicit ones get a short generative remark seeded by the reading.
// Data errors from the source are surfaced verbatim as the reply.
func (c *Composer) Weather(ctx context.Context, city string, explicit bool) (string, error) {
	report, err := c.current(ctx, city)
	if err != nil {
		var dataErr *weather.DataError
		if errors.As(err, &dataErr) {
			return dataErr.Message, nil
		}
		return weather.MsgFetchFailed, nil
	}
	if explicit {
		return weather.FormatCurrent(report, c.clock), nil
	}
	return c.analyze(ctx, fmt.Sprintf(
		"Сформируй короткий дружелюбный ответ: %d°C, %s.", report.Temp, report.Description))
}

// WeatherTalk handles weather_talk: support the conversation without
// numbers, using the current description when the source is reachable.
func (c *Composer) WeatherTalk(ctx context.Context, city string) (string, error) {
	prompt := "Собеседник упомянул погоду. Поддержи разговор без цифр."
	if report, err := c.current(ctx, city); err == nil && report.Description != "" {
		prompt = fmt.Sprintf("Собеседник упомянул погоду (%s). Поддержи разговор без цифр.", report.Description)
	}
	return c.analyze(ctx, prompt)
}

// Forecast handles weather_request with a horizon beyond the current
// reading: the points are fetched from the source and narrated by the
// generation service. Data errors are surfaced verbatim.
func (c *Composer) Forecast(ctx context.Context, city, mode string) (string, error) {
	if c.source == nil {
		return weather.MsgFetchFailed, nil
	}
	forecast, err := c.source.Forecast(ctx, city, mode)
	if err != nil {
		var dataErr *weather.DataError
		if errors.As(err, &dataErr) {
			return dataErr.Message, nil
		}
		return weather.MsgFetchFailed, nil
	}
	return weather.NewNarrator(c, c.clock).Narrate(ctx, forecast, mode)
}

func (c *Composer) current(ctx context.Context, city string) (weather.Report, error) {
	if c.source == nil {
		return weather.Report{}, &weather.DataError{Message: weather.MsgFetchFailed}
	}
	return c.source.Current(ctx, city)
}

// Date handles date_request.
func (c *Composer) Date(ctx context.Context, explicit bool) (string, error) {
	if explicit {
		return "📅 " + c.clock.Date(), nil
	}
	return c.analyze(ctx, "Скажи что-нибудь о сегодняшнем дне, не называя число.")
}

// DateTalk handles date_talk.
func (c *Composer) DateTalk(ctx context.Context) (string, error) {
	return c.analyze(ctx, "Собеседник упоминает дату или день. Поддержи без точных чисел.")
}

// Time handles time_request.
func (c *Composer) Time(ctx context.Context, explicit bool) (string, error) {
	if explicit {
		return "🕒 " + c.clock.Time(), nil
	}
	return c.analyze(ctx, "Ответь о времени, избегая точных цифр.")
}

// TimeTalk handles time_talk.
func (c *Composer) TimeTalk(ctx context.Context) (string, error) {
	return c.analyze(ctx, "Собеседник упомянул время суток. Поддержи разговор.")
}

// Summarize satisfies weather.Summarizer so the forecast narrator can reuse
// the analysis path without depending on the provider directly.
func (c *Composer) Summarize(ctx context.Context, prompt string) (string, error) {
	return c.analyze(ctx, prompt)
}

// Compile-time interface satisfaction check.
var _ weather.Summarizer = (*Composer)(nil)
