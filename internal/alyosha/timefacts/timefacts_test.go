package timefacts

import (
	"testing"
	"time"
)

func fixed(t time.Time) Clock {
	return Clock{Now: func() time.Time { return t }}
}

func TestFormats(t *testing.T) {
	// Monday, 2 February 2026, 09:05.
	c := fixed(time.Date(2026, time.February, 2, 9, 5, 0, 0, time.UTC))

	if got := c.Time(); got != "09:05" {
		t.Errorf("Time() = %q, want 09:05", got)
	}
	if got := c.Date(); got != "2 февраля 2026" {
		t.Errorf("Date() = %q, want 2 февраля 2026", got)
	}
	if got := c.DayOfWeek(); got != "понедельник" {
		t.Errorf("DayOfWeek() = %q, want понедельник", got)
	}
	if got := c.Season(); got != "зима" {
		t.Errorf("Season() = %q, want зима", got)
	}
}

func TestSeasonBands(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.December, "зима"},
		{time.January, "зима"},
		{time.March, "весна"},
		{time.May, "весна"},
		{time.July, "лето"},
		{time.September, "осень"},
		{time.November, "осень"},
	}
	for _, tt := range tests {
		c := fixed(time.Date(2026, tt.month, 15, 12, 0, 0, 0, time.UTC))
		if got := c.Season(); got != tt.want {
			t.Errorf("Season(%v) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func TestTimeOfDayBands(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "ночь"},
		{4, "ночь"},
		{5, "утро"},
		{11, "утро"},
		{12, "день"},
		{16, "день"},
		{17, "вечер"},
		{23, "вечер"},
	}
	for _, tt := range tests {
		c := fixed(time.Date(2026, time.June, 1, tt.hour, 0, 0, 0, time.UTC))
		if got := c.TimeOfDay(); got != tt.want {
			t.Errorf("TimeOfDay(hour=%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestZeroClockUsesWallClock(t *testing.T) {
	var c Clock
	if got := c.Time(); len(got) != 5 {
		t.Errorf("Time() = %q, want HH:mm", got)
	}
}
