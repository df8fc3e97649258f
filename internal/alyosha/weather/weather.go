// Package weather provides the weather collaborator: an OpenWeather-backed
// Source, city normalization, a deterministic current-conditions report, and
// an LLM-narrated forecast.
//
// Data errors (unknown city, upstream failure) carry a verbatim Russian
// user-facing message that the composer surfaces as the reply body.
package weather

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/timefacts"
)

// Forecast modes.
const (
	ModeCurrent  = "current"
	ModeToday    = "today"
	ModeTomorrow = "tomorrow"
	ModeWeek     = "week"
)

// DataError is a collaborator-level data problem (unknown city, upstream
// failure). Message is the verbatim user-facing reply body; it is not a
// system error.
type DataError struct {
	Message string
}

func (e *DataError) Error() string { return e.Message }

// User-facing data error messages.
const (
	MsgCityNotFound = "Город не найден"
	MsgFetchFailed  = "Ошибка получения данных"
)

// Report is a normalized current-conditions reading.
type Report struct {
	City        string
	Temp        int // °C, rounded
	FeelsLike   int // °C, rounded
	Description string
	Wind        int // m/s, rounded
	Humidity    int // percent
	Pressure    int // mmHg (upstream hPa × 0.75, rounded)
	Rain        float64
}

// ForecastPoint is one timestamped forecast reading.
type ForecastPoint struct {
	Time        string // "02.01 15:04"
	Temp        int
	Icon        string
	Description string
}

// Forecast is a normalized multi-point forecast.
type Forecast struct {
	City   string
	Points []ForecastPoint
}

// Source fetches weather readings for a normalized city.
type Source interface {
	Current(ctx context.Context, city string) (Report, error)
	Forecast(ctx context.Context, city, mode string) (Forecast, error)
}

// nonCityRunes strips everything except Latin/Cyrillic letters, spaces and
// hyphens before alias lookup.
var nonCityRunes = regexp.MustCompile(`[^a-zа-я\s-]`)

// NormalizeCity lower-cases the raw city mention, folds ё to е, strips
// punctuation, resolves configured aliases, and falls back to the default
// city when nothing usable remains.
func NormalizeCity(raw string, cfg config.WeatherConfig) string {
	cleaned := strings.ToLower(raw)
	cleaned = strings.ReplaceAll(cleaned, "ё", "е")
	cleaned = strings.TrimSpace(nonCityRunes.ReplaceAllString(cleaned, ""))

	if alias, ok := cfg.CityAliases[cleaned]; ok {
		return alias
	}
	if cleaned == "" {
		return cfg.DefaultCity
	}
	return cleaned
}

// FormatCurrent renders the deterministic current-weather report used for
// explicit weather requests.
func FormatCurrent(r Report, clock timefacts.Clock) string {
	return fmt.Sprintf(
		"Сейчас в городе %s %d°C (ощущается как %d°C).\nОписание: %s.\nВетер %d м/с, влажность %d%%.\nСезон: %s, время суток: %s.",
		r.City, r.Temp, r.FeelsLike, r.Description, r.Wind, r.Humidity,
		clock.Season(), clock.TimeOfDay(),
	)
}

// Trend summarizes the temperature direction across forecast points. Fewer
// than two points yield "".
func Trend(points []ForecastPoint) string {
	if len(points) < 2 {
		return ""
	}
	sum := 0
	for i := 1; i < len(points); i++ {
		sum += points[i].Temp - points[i-1].Temp
	}
	avg := float64(sum) / float64(len(points)-1)
	switch {
	case avg > 1:
		return "Погода улучшается."
	case avg < -1:
		return "Погода ухудшается."
	default:
		return "Погода остаётся стабильной."
	}
}
