// Package config holds the immutable startup configuration for Alyosha:
// the style table, vocabulary lists, memory thresholds, and persona text.
//
// A Config is constructed once (Default, optionally overlaid with a YAML
// file via Load) and passed explicitly to every component that needs it.
// There is no ambient global lookup; after load the Config must be treated
// as read-only.
package config

import (
	"fmt"
	"strings"
)

// Style axes. Every style in the registry either belongs to exactly one axis
// or to none (composite/persona styles such as FRIENDLY_ASSERTIVE).
const (
	AxisContext     = "context"
	AxisInteraction = "interaction"
	AxisEmotion     = "emotion"
	AxisFormality   = "formality"
)

// knownAxes is the closed set of axis labels accepted at load time.
var knownAxes = map[string]struct{}{
	AxisContext:     {},
	AxisInteraction: {},
	AxisEmotion:     {},
	AxisFormality:   {},
}

// StyleDef describes one named response style: its axis membership, the
// generation parameters it implies, and the tone directive injected into
// the system prompt.
type StyleDef struct {
	// Axis is the categorical axis this style is tallied under for
	// auto-style selection. Empty for composite styles that are only ever
	// selected directly.
	Axis string `yaml:"axis" json:"axis,omitempty"`

	// Temperature is the sampling temperature used when this style is active.
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// MaxTokens is the reply length budget for this style.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// Prompt is the tone directive appended to the generation instruction.
	Prompt string `yaml:"prompt" json:"prompt"`
}

// MemoryConfig holds the vector-memory thresholds. The relevance floor and
// scan cap are empirical knobs, not invariants — they are configurable here
// rather than hard-coded in the store.
type MemoryConfig struct {
	// MinIndexLen is the minimum user-utterance length that gets indexed.
	// Shorter texts are dropped silently (noise gate).
	MinIndexLen int `yaml:"min_index_len" json:"min_index_len"`

	// MinQueryLen is the minimum query length for recall. Shorter queries
	// return an empty result without touching the store.
	MinQueryLen int `yaml:"min_query_len" json:"min_query_len"`

	// ScanCap bounds how many of the most recent records are scored per
	// recall. Keeps worst-case recall cost proportional to conversation
	// size, not corpus size.
	ScanCap int `yaml:"scan_cap" json:"scan_cap"`

	// RelevanceFloor is the minimum cosine similarity a record must score
	// to be returned.
	RelevanceFloor float64 `yaml:"relevance_floor" json:"relevance_floor"`

	// TopK is the default number of recalled texts per query.
	TopK int `yaml:"top_k" json:"top_k"`
}

// HistoryConfig holds short-term history parameters.
type HistoryConfig struct {
	// Window is the number of most recent history entries used as
	// short-term context.
	Window int `yaml:"window" json:"window"`
}

// HumanTouchConfig controls the cosmetic post-processing of generated
// replies.
type HumanTouchConfig struct {
	// Probability is the chance a reply gets a filler prefix.
	Probability float64 `yaml:"probability" json:"probability"`

	// Fillers are the conversational filler phrases to prepend.
	Fillers []string `yaml:"fillers" json:"fillers"`
}

// VocabularyConfig holds the lexical trigger lists used by the intent
// router and the explicitness detector. All entries are matched as
// lower-case substrings.
type VocabularyConfig struct {
	Weather           []string `yaml:"weather" json:"weather"`
	WeatherAdjectives []string `yaml:"weather_adjectives" json:"weather_adjectives"`
	DaysOfWeek        []string `yaml:"days_of_week" json:"days_of_week"`
	TimesOfDay        []string `yaml:"times_of_day" json:"times_of_day"`
	Explicit          []string `yaml:"explicit" json:"explicit"`
}

// WeatherConfig holds city resolution settings.
type WeatherConfig struct {
	DefaultCity string            `yaml:"default_city" json:"default_city"`
	CityAliases map[string]string `yaml:"city_aliases" json:"city_aliases"`
}

// Config is the process-wide immutable configuration.
type Config struct {
	// Persona is the identity directive at the top of every generation
	// instruction.
	Persona string `yaml:"persona" json:"persona"`

	// AutoStyle enables history-driven style selection for conversations
	// that have not pinned an explicit style.
	AutoStyle bool `yaml:"auto_style" json:"auto_style"`

	// DefaultStyle is the style applied to fresh conversations.
	DefaultStyle string `yaml:"default_style" json:"default_style"`

	// FallbackStyle is returned whenever style resolution produces a label
	// that is not in the registry.
	FallbackStyle string `yaml:"fallback_style" json:"fallback_style"`

	// Styles is the static style registry, keyed by label.
	Styles map[string]StyleDef `yaml:"styles" json:"styles"`

	// StyleRules maps a style label to trigger keywords for the heuristic
	// style detector used when the remote classifier is unavailable.
	StyleRules map[string][]string `yaml:"style_rules" json:"style_rules"`

	// Emotions is the closed list of mood labels the mood classifier may
	// return.
	Emotions []string `yaml:"emotions" json:"emotions"`

	// EmotionHints maps a mood label to the tone hint appended to the
	// generation instruction. Moods without a hint get none.
	EmotionHints map[string]string `yaml:"emotion_hints" json:"emotion_hints"`

	// NeutralEmotion is the fallback mood label.
	NeutralEmotion string `yaml:"neutral_emotion" json:"neutral_emotion"`

	// IntentPrompt is the fixed instruction sent to the remote classifier
	// when the lexical heuristics do not resolve an intent.
	IntentPrompt string `yaml:"intent_prompt" json:"intent_prompt"`

	// Apology is the fixed reply returned when the generation service
	// fails for a turn.
	Apology string `yaml:"apology" json:"apology"`

	History    HistoryConfig    `yaml:"history" json:"history"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
	HumanTouch HumanTouchConfig `yaml:"human_touch" json:"human_touch"`
	Vocabulary VocabularyConfig `yaml:"vocabulary" json:"vocabulary"`
	Weather    WeatherConfig    `yaml:"weather" json:"weather"`
}

// Validate checks a Config for structural correctness. It returns the first
// validation error encountered, or nil if the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}

	if len(cfg.Styles) == 0 {
		return fmt.Errorf("styles: registry must not be empty")
	}
	for label, def := range cfg.Styles {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("styles: label must not be empty")
		}
		if def.Axis != "" {
			if _, ok := knownAxes[def.Axis]; !ok {
				return fmt.Errorf("styles[%s]: unknown axis %q", label, def.Axis)
			}
		}
		if def.Temperature <= 0 || def.Temperature > 1 {
			return fmt.Errorf("styles[%s]: temperature must be in (0, 1], got %v", label, def.Temperature)
		}
		if def.MaxTokens <= 0 {
			return fmt.Errorf("styles[%s]: max_tokens must be positive, got %d", label, def.MaxTokens)
		}
		if strings.TrimSpace(def.Prompt) == "" {
			return fmt.Errorf("styles[%s]: prompt must not be empty", label)
		}
	}

	if _, ok := cfg.Styles[cfg.DefaultStyle]; !ok {
		return fmt.Errorf("default_style %q is not in the style registry", cfg.DefaultStyle)
	}
	if _, ok := cfg.Styles[cfg.FallbackStyle]; !ok {
		return fmt.Errorf("fallback_style %q is not in the style registry", cfg.FallbackStyle)
	}
	for label := range cfg.StyleRules {
		if _, ok := cfg.Styles[label]; !ok {
			return fmt.Errorf("style_rules: %q is not in the style registry", label)
		}
	}

	if cfg.Memory.MinIndexLen < 0 || cfg.Memory.MinQueryLen < 0 {
		return fmt.Errorf("memory: length gates must not be negative")
	}
	if cfg.Memory.ScanCap <= 0 {
		return fmt.Errorf("memory: scan_cap must be positive, got %d", cfg.Memory.ScanCap)
	}
	if cfg.Memory.RelevanceFloor < -1 || cfg.Memory.RelevanceFloor > 1 {
		return fmt.Errorf("memory: relevance_floor must be within [-1, 1], got %v", cfg.Memory.RelevanceFloor)
	}
	if cfg.Memory.TopK <= 0 {
		return fmt.Errorf("memory: top_k must be positive, got %d", cfg.Memory.TopK)
	}

	if cfg.History.Window <= 0 {
		return fmt.Errorf("history: window must be positive, got %d", cfg.History.Window)
	}

	if cfg.HumanTouch.Probability < 0 || cfg.HumanTouch.Probability > 1 {
		return fmt.Errorf("human_touch: probability must be within [0, 1], got %v", cfg.HumanTouch.Probability)
	}

	if strings.TrimSpace(cfg.Weather.DefaultCity) == "" {
		return fmt.Errorf("weather: default_city must not be empty")
	}

	if cfg.NeutralEmotion == "" {
		return fmt.Errorf("neutral_emotion must not be empty")
	}

	return nil
}
