package compose

import (
	"math/rand"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// HumanTouch is the cosmetic post-processing of generated replies: with a
// fixed low probability it prepends a conversational filler and lower-cases
// the first rune, so replies read less polished.
//
// The random source is injectable; production seeds from the clock, tests
// pass a fixed seed for reproducibility.
type HumanTouch struct {
	cfg config.HumanTouchConfig

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewHumanTouch creates the transform. rnd may be nil; a time-seeded source
// is used then.
func NewHumanTouch(cfg config.HumanTouchConfig, rnd *rand.Rand) *HumanTouch {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &HumanTouch{cfg: cfg, rnd: rnd}
}

// Apply returns text, possibly prefixed with a filler. Empty text and a
// zero-probability or filler-less config pass through unchanged.
func (h *HumanTouch) Apply(text string) string {
	if text == "" || len(h.cfg.Fillers) == 0 {
		return text
	}

	h.mu.Lock()
	roll := h.rnd.Float64()
	pick := h.rnd.Intn(len(h.cfg.Fillers))
	h.mu.Unlock()

	if roll >= h.cfg.Probability {
		return text
	}
	return h.cfg.Fillers[pick] + " " + lowerFirst(text)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
