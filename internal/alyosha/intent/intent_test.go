package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

type stubClassifier struct {
	label string
	err   error
	calls int
}

func (s *stubClassifier) Classify(context.Context, string) (string, error) {
	s.calls++
	return s.label, s.err
}

func TestDetect_WeatherTalkHeuristic(t *testing.T) {
	// Weather-descriptive text without a question mark resolves lexically;
	// the remote classifier must not even be consulted.
	cls := &stubClassifier{label: "general_chat"}
	r := New(config.Default(), cls, nil)

	got := r.Detect(context.Background(), "Сегодня тепло и солнечно", false)
	if got != WeatherTalk {
		t.Errorf("Detect() = %q, want weather_talk", got)
	}
	if cls.calls != 0 {
		t.Errorf("remote classifier consulted %d times, want 0", cls.calls)
	}
}

func TestDetect_PriorityOrder(t *testing.T) {
	r := New(config.Default(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		isVoice bool
		want    Intent
	}{
		{"weather talk beats date talk", "в понедельник было солнечно и тепло", false, WeatherTalk},
		{"date talk without question", "в понедельник встречаемся", false, DateTalk},
		{"time talk without question", "люблю гулять под вечер", false, TimeTalk},
		{"voice with weather word", "расскажи про дождь", true, WeatherRequest},
		{"question defeats talk heuristics", "будет дождь в понедельник?", false, WeatherRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Detect(ctx, tt.text, tt.isVoice); got != tt.want {
				t.Errorf("Detect(%q, voice=%v) = %q, want %q", tt.text, tt.isVoice, got, tt.want)
			}
		})
	}
}

func TestDetect_RemoteLabelNormalized(t *testing.T) {
	cls := &stubClassifier{label: "  Time_Request \n"}
	r := New(config.Default(), cls, nil)

	got := r.Detect(context.Background(), "который час, не подскажешь", false)
	if got != TimeRequest {
		t.Errorf("Detect() = %q, want time_request", got)
	}
}

func TestDetect_UnknownRemoteLabelIsGeneralChat(t *testing.T) {
	cls := &stubClassifier{label: "smalltalk"}
	r := New(config.Default(), cls, nil)

	got := r.Detect(context.Background(), "как прошли выходные", false)
	if got != GeneralChat {
		t.Errorf("Detect() = %q, want general_chat", got)
	}
}

func TestDetect_RemoteFailureFallsOpen(t *testing.T) {
	cls := &stubClassifier{err: errors.New("remote down")}
	r := New(config.Default(), cls, nil)
	ctx := context.Background()

	// A question defeats the talk heuristics, so the router reaches the
	// remote path and falls back lexically when it fails.
	if got := r.Detect(ctx, "какая будет погода?", false); got != WeatherRequest {
		t.Errorf("Detect() = %q, want weather_request on weather fallback", got)
	}
	if got := r.Detect(ctx, "как дела?", false); got != GeneralChat {
		t.Errorf("Detect() = %q, want general_chat on plain fallback", got)
	}
}

func TestDetect_NilClassifierFallsOpen(t *testing.T) {
	r := New(config.Default(), nil, nil)

	got := r.Detect(context.Background(), "как дела?", false)
	if got != GeneralChat {
		t.Errorf("Detect() = %q, want general_chat", got)
	}
}

func TestIsExplicit(t *testing.T) {
	r := New(config.Default(), nil, nil)

	tests := []struct {
		text string
		want bool
	}{
		{"Какая погода в Москве?", true},
		{"сколько сейчас времени", true},
		{"скажи дату", true},
		{"сегодня тепло и солнечно", false},
		{"хороший день  ", false},
		{"будет дождь?  ", true}, // trailing spaces are trimmed before the "?" check
	}
	for _, tt := range tests {
		if got := r.IsExplicit(tt.text); got != tt.want {
			t.Errorf("IsExplicit(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
