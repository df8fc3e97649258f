// Package intent classifies inbound utterances into a closed set of intents
// using layered lexical heuristics with a remote-classifier fallback, and
// flags whether an utterance is an explicit request or a passing remark.
package intent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// ErrClassifierUnavailable wraps remote classification failures. The router
// never surfaces it; detection falls open to a lexical default.
var ErrClassifierUnavailable = errors.New("intent: remote classifier unavailable")

// Intent is the closed-set classification of an inbound utterance.
type Intent string

const (
	WeatherRequest Intent = "weather_request"
	WeatherTalk    Intent = "weather_talk"
	DateRequest    Intent = "date_request"
	DateTalk       Intent = "date_talk"
	TimeRequest    Intent = "time_request"
	TimeTalk       Intent = "time_talk"
	GeneralChat    Intent = "general_chat"
)

// known is the set of labels the remote classifier may legitimately return.
var known = map[Intent]struct{}{
	WeatherRequest: {},
	WeatherTalk:    {},
	DateRequest:    {},
	DateTalk:       {},
	TimeRequest:    {},
	TimeTalk:       {},
	GeneralChat:    {},
}

// Classifier is the remote label-classification capability. A nil Classifier
// disables the remote path and detection resolves lexically.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Router detects the intent of inbound utterances. It is state-free; every
// message is classified independently.
type Router struct {
	cfg        *config.Config
	classifier Classifier
	logger     *slog.Logger
}

// New creates an intent Router. classifier may be nil. If logger is nil, the
// default slog logger is used.
func New(cfg *config.Config, classifier Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, classifier: classifier, logger: logger}
}

// Detect classifies text, evaluated in strict priority order:
//
//  1. weather-descriptive adjective + no "?"               → weather_talk
//  2. day-of-week vocabulary + no "?"                      → date_talk
//  3. time-of-day vocabulary + no "?"                      → time_talk
//  4. voice message containing weather vocabulary          → weather_request
//  5. remote classification with the fixed intent prompt
//  6. on remote failure: weather vocabulary → weather_request, else
//     general_chat
//
// The cheap rules short-circuit the common "talking about X" vs. "asking
// for X" distinction without a remote round trip. An unknown remote label
// maps to general_chat.
func (r *Router) Detect(ctx context.Context, text string, isVoice bool) Intent {
	lower := strings.ToLower(text)
	question := strings.Contains(lower, "?")

	hasWeather := containsAny(lower, r.cfg.Vocabulary.Weather)

	if !question && containsAny(lower, r.cfg.Vocabulary.WeatherAdjectives) {
		return WeatherTalk
	}
	if !question && containsAny(lower, r.cfg.Vocabulary.DaysOfWeek) {
		return DateTalk
	}
	if !question && containsAny(lower, r.cfg.Vocabulary.TimesOfDay) {
		return TimeTalk
	}
	if isVoice && hasWeather {
		return WeatherRequest
	}

	label, err := r.classifyRemote(ctx, text)
	if err != nil {
		r.logger.Warn("intent classifier unavailable, using lexical default", "error", err)
		if hasWeather {
			return WeatherRequest
		}
		return GeneralChat
	}
	if _, ok := known[label]; ok {
		return label
	}
	r.logger.Debug("intent classifier returned unknown label", "label", label)
	return GeneralChat
}

func (r *Router) classifyRemote(ctx context.Context, text string) (Intent, error) {
	if r.classifier == nil {
		return "", ErrClassifierUnavailable
	}
	answer, err := r.classifier.Classify(ctx, r.cfg.IntentPrompt+"\n\nСообщение: "+text)
	if err != nil {
		return "", errors.Join(ErrClassifierUnavailable, err)
	}
	return Intent(strings.ToLower(strings.TrimSpace(answer))), nil
}

// IsExplicit reports whether the utterance is a direct request: it contains
// a configured imperative/query keyword or ends with a question mark.
// Orthogonal to intent; gates deterministic versus generative answers for
// the date/time/weather branches.
func (r *Router) IsExplicit(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	return containsAny(strings.ToLower(trimmed), r.cfg.Vocabulary.Explicit)
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
