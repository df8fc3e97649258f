// Package timefacts formats the current time, date, day of week, season and
// time of day in Russian for prompt assembly and deterministic fact replies.
package timefacts

import (
	"fmt"
	"time"
)

// months holds the genitive month names used in long dates ("2 января 2026").
var months = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// days holds lower-case day names indexed by time.Weekday.
var days = [...]string{
	"воскресенье", "понедельник", "вторник", "среда",
	"четверг", "пятница", "суббота",
}

// Clock provides the facts. The zero value uses the local wall clock; tests
// inject a fixed Now.
type Clock struct {
	// Now overrides the time source when non-nil.
	Now func() time.Time
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Time returns the current time as "HH:mm".
func (c Clock) Time() string {
	return c.now().Format("15:04")
}

// Date returns the current date as "2 января 2026".
func (c Clock) Date() string {
	t := c.now()
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// DayOfWeek returns the lower-case Russian day name.
func (c Clock) DayOfWeek() string {
	return days[c.now().Weekday()]
}

// Season returns the season by calendar month.
func (c Clock) Season() string {
	switch c.now().Month() {
	case time.December, time.January, time.February:
		return "зима"
	case time.March, time.April, time.May:
		return "весна"
	case time.June, time.July, time.August:
		return "лето"
	default:
		return "осень"
	}
}

// TimeOfDay returns the part of day by hour band: ночь before 5, утро
// before 12, день before 17, вечер otherwise.
func (c Clock) TimeOfDay() string {
	switch h := c.now().Hour(); {
	case h < 5:
		return "ночь"
	case h < 12:
		return "утро"
	case h < 17:
		return "день"
	default:
		return "вечер"
	}
}
