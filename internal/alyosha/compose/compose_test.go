package compose

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
	"github.com/vkotlyarov/alyosha/internal/alyosha/llm"
	"github.com/vkotlyarov/alyosha/internal/alyosha/memory"
	"github.com/vkotlyarov/alyosha/internal/alyosha/timefacts"
	"github.com/vkotlyarov/alyosha/internal/alyosha/weather"
)

// stubProvider records the last request and returns a canned reply.
type stubProvider struct {
	lastReq llm.CompletionRequest
	reply   string
	err     error
}

func (s *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	s.lastReq = req
	return s.reply, s.err
}

func (s *stubProvider) Classify(context.Context, string) (string, error) {
	return s.reply, s.err
}

// stubRecaller returns canned recall texts or an error.
type stubRecaller struct {
	texts []string
	err   error
}

func (s *stubRecaller) Recall(context.Context, int64, string, int) ([]string, error) {
	return s.texts, s.err
}

// stubSource returns canned weather readings.
type stubSource struct {
	report   weather.Report
	forecast weather.Forecast
	err      error
}

func (s *stubSource) Current(context.Context, string) (weather.Report, error) {
	return s.report, s.err
}

func (s *stubSource) Forecast(context.Context, string, string) (weather.Forecast, error) {
	return s.forecast, s.err
}

// noTouch never fires the filler transform.
func noTouch() *HumanTouch {
	return NewHumanTouch(config.HumanTouchConfig{Probability: 0, Fillers: []string{"Хмм…"}}, rand.New(rand.NewSource(1)))
}

func fixedClock() timefacts.Clock {
	// Monday, 2 February 2026, 09:05.
	return timefacts.Clock{Now: func() time.Time {
		return time.Date(2026, time.February, 2, 9, 5, 0, 0, time.UTC)
	}}
}

func newComposer(p llm.Provider, r Recaller, src weather.Source) *Composer {
	return New(config.Default(), p, r, src, fixedClock(), noTouch(), nil)
}

func window() []history.Entry {
	return []history.Entry{
		{Role: history.RoleUser, Content: "привет, меня зовут Вася"},
		{Role: history.RoleAssistant, Content: "привет, Вася!"},
		{Role: history.RoleUser, Content: "вчера чинил сервер, у меня кот уснул на клавиатуре"},
	}
}

func TestReply_SystemBlockContents(t *testing.T) {
	p := &stubProvider{reply: "Звучит как насыщенный день!"}
	rec := &stubRecaller{texts: []string{"обсуждали настройку сервера", "у Васи есть кот"}}
	c := newComposer(p, rec, nil)

	got, err := c.Reply(context.Background(), TurnInput{
		ConversationID: 1,
		Text:           "вчера чинил сервер, у меня кот уснул на клавиатуре",
		Window:         window(),
		Mood:           "радость",
		Style:          "FRIENDLY",
	})
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if got != "Звучит как насыщенный день!" {
		t.Errorf("Reply() = %q", got)
	}

	sys := p.lastReq.System
	for _, fragment := range []string{
		"Ты человек по имени Алексей",
		"Переписка (кратко):",
		"Пользователь: привет, меня зовут Вася",
		"Бот: привет, Вася!",
		"имя ≈ Вася",
		"интерес к технике: да",
		"любит говорить о питомцах: да",
		"• обсуждали настройку сервера",
		"• у Васи есть кот",
		"Сейчас 09:05, понедельник, сезон зима.",
		config.Default().Styles["FRIENDLY"].Prompt,
		"Будь воодушевлён 😊", // hint for радость
	} {
		if !strings.Contains(sys, fragment) {
			t.Errorf("system block missing %q:\n%s", fragment, sys)
		}
	}

	def := config.Default().Styles["FRIENDLY"]
	if p.lastReq.Temperature != def.Temperature || p.lastReq.MaxTokens != def.MaxTokens {
		t.Errorf("style parameters = %v/%d, want %v/%d",
			p.lastReq.Temperature, p.lastReq.MaxTokens, def.Temperature, def.MaxTokens)
	}
	if len(p.lastReq.Turns) != 3 {
		t.Errorf("sent %d turns, want 3", len(p.lastReq.Turns))
	}
}

func TestReply_EmptyRecallUsesNoneMarker(t *testing.T) {
	p := &stubProvider{reply: "ок"}
	c := newComposer(p, &stubRecaller{}, nil)

	_, err := c.Reply(context.Background(), TurnInput{Text: "привет", Style: "INFORMAL"})
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if !strings.Contains(p.lastReq.System, "— нет —") {
		t.Errorf("system block missing empty-recall marker:\n%s", p.lastReq.System)
	}
}

func TestReply_MemoryUnavailableDegrades(t *testing.T) {
	p := &stubProvider{reply: "ок"}
	rec := &stubRecaller{err: memory.ErrUnavailable}
	c := newComposer(p, rec, nil)

	got, err := c.Reply(context.Background(), TurnInput{Text: "привет", Style: "INFORMAL"})
	if err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	if got != "ок" {
		t.Errorf("Reply() = %q", got)
	}
	if !strings.Contains(p.lastReq.System, "— нет —") {
		t.Error("recall failure did not degrade to the empty marker")
	}
}

func TestReply_GenerationFailureYieldsApology(t *testing.T) {
	cfg := config.Default()
	p := &stubProvider{err: errors.New("remote down")}
	c := newComposer(p, nil, nil)

	got, err := c.Reply(context.Background(), TurnInput{Text: "привет", Style: "INFORMAL"})
	if got != cfg.Apology {
		t.Errorf("Reply() = %q, want apology %q", got, cfg.Apology)
	}
	if !errors.Is(err, llm.ErrGenerationFailed) {
		t.Errorf("error = %v, want ErrGenerationFailed", err)
	}
}

func TestReply_UnknownStyleFallsBack(t *testing.T) {
	cfg := config.Default()
	p := &stubProvider{reply: "ок"}
	c := newComposer(p, nil, nil)

	if _, err := c.Reply(context.Background(), TurnInput{Text: "привет", Style: "NOPE"}); err != nil {
		t.Fatalf("Reply() error: %v", err)
	}
	def := cfg.Styles[cfg.FallbackStyle]
	if p.lastReq.Temperature != def.Temperature {
		t.Errorf("temperature = %v, want fallback style's %v", p.lastReq.Temperature, def.Temperature)
	}
}

func TestWeather_ExplicitIsDeterministic(t *testing.T) {
	p := &stubProvider{reply: "should not be used"}
	src := &stubSource{report: weather.Report{
		City: "Moscow", Temp: -3, FeelsLike: -7, Description: "снег", Wind: 4, Humidity: 80,
	}}
	c := newComposer(p, nil, src)

	got, err := c.Weather(context.Background(), "Moscow", true)
	if err != nil {
		t.Fatalf("Weather() error: %v", err)
	}
	want := weather.FormatCurrent(src.report, fixedClock())
	if got != want {
		t.Errorf("Weather() =\n%q\nwant\n%q", got, want)
	}
}

func TestWeather_ImplicitIsGenerative(t *testing.T) {
	p := &stubProvider{reply: "морозно сегодня ❄️"}
	src := &stubSource{report: weather.Report{Temp: -3, Description: "снег"}}
	c := newComposer(p, nil, src)

	got, err := c.Weather(context.Background(), "Moscow", false)
	if err != nil {
		t.Fatalf("Weather() error: %v", err)
	}
	if got != "морозно сегодня ❄️" {
		t.Errorf("Weather() = %q", got)
	}
	if !strings.Contains(p.lastReq.Turns[0].Content, "-3°C, снег") {
		t.Errorf("prompt missing reading: %q", p.lastReq.Turns[0].Content)
	}
}

func TestWeather_DataErrorSurfacesVerbatim(t *testing.T) {
	p := &stubProvider{reply: "should not be used"}
	src := &stubSource{err: &weather.DataError{Message: weather.MsgCityNotFound}}
	c := newComposer(p, nil, src)

	got, err := c.Weather(context.Background(), "Нарния", true)
	if err != nil {
		t.Fatalf("Weather() error: %v", err)
	}
	if got != weather.MsgCityNotFound {
		t.Errorf("Weather() = %q, want %q", got, weather.MsgCityNotFound)
	}
}

func TestForecast_NarratesPoints(t *testing.T) {
	p := &stubProvider{reply: "завтра потеплеет, куртку можно полегче"}
	src := &stubSource{forecast: weather.Forecast{
		City: "Moscow",
		Points: []weather.ForecastPoint{
			{Time: "03.02 09:00", Temp: -5, Description: "снег"},
			{Time: "03.02 15:00", Temp: -1, Description: "облачно"},
		},
	}}
	c := newComposer(p, nil, src)

	got, err := c.Forecast(context.Background(), "Moscow", weather.ModeTomorrow)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if got != "завтра потеплеет, куртку можно полегче" {
		t.Errorf("Forecast() = %q", got)
	}

	prompt := p.lastReq.Turns[0].Content
	for _, want := range []string{"Moscow", "03.02 09:00: -5°C, снег", "улучшается", "советы по одежде"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %q", want, prompt)
		}
	}
}

func TestForecast_DataErrorSurfacesVerbatim(t *testing.T) {
	p := &stubProvider{reply: "should not be used"}
	src := &stubSource{err: &weather.DataError{Message: weather.MsgCityNotFound}}
	c := newComposer(p, nil, src)

	got, err := c.Forecast(context.Background(), "Нарния", weather.ModeWeek)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if got != weather.MsgCityNotFound {
		t.Errorf("Forecast() = %q, want %q", got, weather.MsgCityNotFound)
	}
}

func TestForecast_NilSourceReportsFetchFailure(t *testing.T) {
	c := newComposer(&stubProvider{}, nil, nil)

	got, err := c.Forecast(context.Background(), "Moscow", weather.ModeToday)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if got != weather.MsgFetchFailed {
		t.Errorf("Forecast() = %q, want %q", got, weather.MsgFetchFailed)
	}
}

func TestWeatherTalk_UsesDescriptionWhenAvailable(t *testing.T) {
	p := &stubProvider{reply: "да, снежно!"}
	src := &stubSource{report: weather.Report{Description: "снег"}}
	c := newComposer(p, nil, src)

	if _, err := c.WeatherTalk(context.Background(), "Moscow"); err != nil {
		t.Fatalf("WeatherTalk() error: %v", err)
	}
	if !strings.Contains(p.lastReq.Turns[0].Content, "(снег)") {
		t.Errorf("prompt missing description: %q", p.lastReq.Turns[0].Content)
	}
}

func TestWeatherTalk_SourceFailureStillConverses(t *testing.T) {
	p := &stubProvider{reply: "погода — вечная тема"}
	src := &stubSource{err: &weather.DataError{Message: weather.MsgFetchFailed}}
	c := newComposer(p, nil, src)

	got, err := c.WeatherTalk(context.Background(), "Moscow")
	if err != nil {
		t.Fatalf("WeatherTalk() error: %v", err)
	}
	if got != "погода — вечная тема" {
		t.Errorf("WeatherTalk() = %q", got)
	}
}

func TestDateAndTime_ExplicitFacts(t *testing.T) {
	p := &stubProvider{reply: "should not be used"}
	c := newComposer(p, nil, nil)
	ctx := context.Background()

	if got, _ := c.Date(ctx, true); got != "📅 2 февраля 2026" {
		t.Errorf("Date() = %q", got)
	}
	if got, _ := c.Time(ctx, true); got != "🕒 09:05" {
		t.Errorf("Time() = %q", got)
	}
}

func TestDateAndTime_ImplicitAreGenerative(t *testing.T) {
	p := &stubProvider{reply: "день как день"}
	c := newComposer(p, nil, nil)
	ctx := context.Background()

	for name, fn := range map[string]func() (string, error){
		"Date":     func() (string, error) { return c.Date(ctx, false) },
		"Time":     func() (string, error) { return c.Time(ctx, false) },
		"DateTalk": func() (string, error) { return c.DateTalk(ctx) },
		"TimeTalk": func() (string, error) { return c.TimeTalk(ctx) },
	} {
		got, err := fn()
		if err != nil {
			t.Errorf("%s error: %v", name, err)
		}
		if got != "день как день" {
			t.Errorf("%s = %q", name, got)
		}
	}
}

func TestBuildProfile_Defaults(t *testing.T) {
	got := buildProfile([]history.Entry{
		{Role: history.RoleUser, Content: "привет, как дела?"},
	})
	if !strings.Contains(got, "имя ≈ друг") {
		t.Errorf("profile = %q, want default name", got)
	}
	if !strings.Contains(got, "интерес к технике: нет") {
		t.Errorf("profile = %q, want no tech interest", got)
	}
}

func TestHumanTouch_AppliesFillerAndLowercases(t *testing.T) {
	cfg := config.HumanTouchConfig{Probability: 1, Fillers: []string{"Кстати,"}}
	h := NewHumanTouch(cfg, rand.New(rand.NewSource(42)))

	got := h.Apply("Привет! Как дела?")
	if got != "Кстати, привет! Как дела?" {
		t.Errorf("Apply() = %q", got)
	}
}

func TestHumanTouch_ZeroProbabilityPassesThrough(t *testing.T) {
	cfg := config.HumanTouchConfig{Probability: 0, Fillers: []string{"Кстати,"}}
	h := NewHumanTouch(cfg, rand.New(rand.NewSource(42)))

	for i := 0; i < 20; i++ {
		if got := h.Apply("Привет"); got != "Привет" {
			t.Fatalf("Apply() = %q, want unchanged", got)
		}
	}
}

func TestHumanTouch_EmptyTextUnchanged(t *testing.T) {
	cfg := config.HumanTouchConfig{Probability: 1, Fillers: []string{"Кстати,"}}
	h := NewHumanTouch(cfg, rand.New(rand.NewSource(1)))

	if got := h.Apply(""); got != "" {
		t.Errorf("Apply(\"\") = %q", got)
	}
}
