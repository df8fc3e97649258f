package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/timefacts"
)

// Summarizer turns an instruction prompt into prose. It is a narrow slice of
// the generation service so this package does not depend on it directly.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Narrator renders forecasts as conversational prose via a Summarizer.
type Narrator struct {
	summarizer Summarizer
	clock      timefacts.Clock
}

// NewNarrator creates a forecast Narrator.
func NewNarrator(summarizer Summarizer, clock timefacts.Clock) *Narrator {
	return &Narrator{summarizer: summarizer, clock: clock}
}

// Narrate turns a forecast into prose: point list, temperature trend,
// clothing advice, seasonal context. An empty forecast yields a fixed
// message without a remote call.
func (n *Narrator) Narrate(ctx context.Context, f Forecast, mode string) (string, error) {
	if len(f.Points) == 0 {
		return "Не удалось получить прогноз.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Сформируй ответ о погоде в городе %s.\n", f.City)
	fmt.Fprintf(&b, "Режим: %s. Сезон: %s. Время суток: %s.\nСписок:\n", mode, n.clock.Season(), n.clock.TimeOfDay())
	for _, p := range f.Points {
		fmt.Fprintf(&b, "%s: %d°C, %s\n", p.Time, p.Temp, p.Description)
	}
	fmt.Fprintf(&b, "\n%s\nДобавь советы по одежде.\n", Trend(f.Points))

	return n.summarizer.Summarize(ctx, b.String())
}
