package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vkotlyarov/alyosha/common/retry"
	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

const (
	defaultOWMBase    = "https://api.openweathermap.org/data/2.5"
	defaultOWMTimeout = 15 * time.Second
)

// ClientConfig configures the OpenWeather client.
type ClientConfig struct {
	// APIKey is the OpenWeather appid.
	APIKey string

	// BaseURL overrides the API endpoint (tests).
	// Defaults to https://api.openweathermap.org/data/2.5 when empty.
	BaseURL string

	// Timeout is the per-request HTTP timeout. Defaults to 15 s.
	Timeout time.Duration
}

// OpenWeatherClient implements Source against the OpenWeather API, with a
// tight retry budget on transport failures.
type OpenWeatherClient struct {
	cfg     ClientConfig
	weather config.WeatherConfig
	client  *http.Client
	logger  *slog.Logger

	// now is the time source used to filter tomorrow's forecast points.
	now func() time.Time
}

// NewOpenWeatherClient creates an OpenWeather-backed Source. If logger is
// nil, the default slog logger is used.
func NewOpenWeatherClient(cfg ClientConfig, weatherCfg config.WeatherConfig, logger *slog.Logger) *OpenWeatherClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOWMBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOWMTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenWeatherClient{
		cfg:     cfg,
		weather: weatherCfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		now:     time.Now,
	}
}

// --- minimal OpenWeather wire types ---

type owmCurrent struct {
	Cod  json.RawMessage `json:"cod"` // number or string depending on endpoint
	Name string          `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain map[string]float64 `json:"rain"`
}

type owmForecast struct {
	Cod  json.RawMessage `json:"cod"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		DtTxt string `json:"dt_txt"` // "2026-02-02 15:00:00"
		Main  struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// codOK accepts the endpoint's cod field as either the number 200 or the
// string "200".
func codOK(raw json.RawMessage) bool {
	s := string(raw)
	return s == "200" || s == `"200"`
}

// Current fetches and normalizes current conditions for city.
func (c *OpenWeatherClient) Current(ctx context.Context, city string) (Report, error) {
	q := url.Values{}
	q.Set("q", NormalizeCity(city, c.weather))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")
	q.Set("lang", "ru")

	var parsed owmCurrent
	if err := c.get(ctx, "/weather?"+q.Encode(), &parsed); err != nil {
		c.logger.Warn("openweather current fetch failed", "city", city, "error", err)
		return Report{}, &DataError{Message: MsgFetchFailed}
	}
	if len(parsed.Cod) > 0 && !codOK(parsed.Cod) {
		return Report{}, &DataError{Message: MsgCityNotFound}
	}

	r := Report{
		City:      parsed.Name,
		Temp:      int(math.Round(parsed.Main.Temp)),
		FeelsLike: int(math.Round(parsed.Main.FeelsLike)),
		Wind:      int(math.Round(parsed.Wind.Speed)),
		Humidity:  parsed.Main.Humidity,
		Pressure:  int(math.Round(parsed.Main.Pressure * 0.75)),
		Rain:      parsed.Rain["1h"],
	}
	if len(parsed.Weather) > 0 {
		r.Description = parsed.Weather[0].Description
	}
	return r, nil
}

// Forecast fetches and normalizes a forecast for city. mode selects the
// horizon: today (8 points), tomorrow (16 points filtered to the next day),
// week (40 points).
func (c *OpenWeatherClient) Forecast(ctx context.Context, city, mode string) (Forecast, error) {
	cnt := 40
	switch mode {
	case ModeToday:
		cnt = 8
	case ModeTomorrow:
		cnt = 16
	}

	q := url.Values{}
	q.Set("q", NormalizeCity(city, c.weather))
	q.Set("cnt", fmt.Sprint(cnt))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")
	q.Set("lang", "ru")

	var parsed owmForecast
	if err := c.get(ctx, "/forecast?"+q.Encode(), &parsed); err != nil {
		c.logger.Warn("openweather forecast fetch failed", "city", city, "mode", mode, "error", err)
		return Forecast{}, &DataError{Message: MsgFetchFailed}
	}
	if len(parsed.Cod) > 0 && !codOK(parsed.Cod) {
		return Forecast{}, &DataError{Message: MsgCityNotFound}
	}

	tomorrow := c.now().AddDate(0, 0, 1).Format("2006-01-02")

	out := Forecast{City: parsed.City.Name}
	for _, item := range parsed.List {
		if mode == ModeTomorrow && !strings.HasPrefix(item.DtTxt, tomorrow) {
			continue
		}
		p := ForecastPoint{Temp: int(math.Round(item.Main.Temp))}
		if t, err := time.Parse("2006-01-02 15:04:05", item.DtTxt); err == nil {
			p.Time = t.Format("02.01 15:04")
		} else {
			p.Time = item.DtTxt
		}
		if len(item.Weather) > 0 {
			p.Icon = item.Weather[0].Icon
			p.Description = item.Weather[0].Description
		}
		out.Points = append(out.Points, p)
	}
	return out, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, path string, out any) error {
	return retry.Do(ctx, retry.DefaultConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return fmt.Errorf("weather: create request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("weather: http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("weather: read response: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("weather: decode response: %w", err)
		}
		return nil
	})
}

// Compile-time interface satisfaction check.
var _ Source = (*OpenWeatherClient)(nil)
