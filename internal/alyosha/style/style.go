// Package style implements the style profile engine: a static registry of
// named response styles and the auto-style selection that adapts the active
// style to the distribution of styles observed in recent history.
//
// Auto-style works over two independent axes. The context axis captures what
// the conversation is about (technical, creative, friendly, romantic); the
// interaction axis captures how the counterpart engages (assertive, passive).
// Each axis's most frequent recent style wins, and the two winners are
// concatenated into a composite label. Unregistered composites fall back to
// a fixed default.
package style

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
	"github.com/vkotlyarov/alyosha/internal/alyosha/history"
)

// Classifier is the remote label-classification capability the engine uses
// for text-based style detection. A nil Classifier disables the remote path.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Engine resolves response styles against the static registry in cfg.
type Engine struct {
	cfg        *config.Config
	classifier Classifier
	logger     *slog.Logger

	// ruleOrder fixes the evaluation order of the keyword rules so
	// detection is deterministic across runs.
	ruleOrder []string
}

// New creates a style Engine. classifier may be nil; detection then uses
// keyword rules only. If logger is nil, the default slog logger is used.
func New(cfg *config.Config, classifier Classifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	order := make([]string, 0, len(cfg.StyleRules))
	for label := range cfg.StyleRules {
		order = append(order, label)
	}
	sort.Strings(order)
	return &Engine{cfg: cfg, classifier: classifier, logger: logger, ruleOrder: order}
}

// Lookup returns the registry entry for label.
func (e *Engine) Lookup(label string) (config.StyleDef, bool) {
	def, ok := e.cfg.Styles[label]
	return def, ok
}

// Resolve returns the registry entry for label, substituting the fallback
// style when label is not registered.
func (e *Engine) Resolve(label string) (string, config.StyleDef) {
	if def, ok := e.cfg.Styles[label]; ok {
		return label, def
	}
	return e.cfg.FallbackStyle, e.cfg.Styles[e.cfg.FallbackStyle]
}

// Tally counts style occurrences while remembering first-seen order, which
// breaks argmax ties deterministically.
type Tally struct {
	counts map[string]int
	order  []string
}

// Add records one occurrence of label.
func (t *Tally) Add(label string) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, seen := t.counts[label]; !seen {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

// Top returns the most frequent label, or def when the tally is empty.
// Ties go to the label seen first.
func (t *Tally) Top(def string) string {
	best, bestCount := def, 0
	for _, label := range t.order {
		if t.counts[label] > bestCount {
			best, bestCount = label, t.counts[label]
		}
	}
	return best
}

// TallyAxis counts the styles in entries whose registered axis matches axis.
// Styles without axis membership (composites) are ignored.
func (e *Engine) TallyAxis(entries []history.Entry, axis string) Tally {
	var t Tally
	for _, entry := range entries {
		def, ok := e.cfg.Styles[entry.Style]
		if !ok || def.Axis != axis {
			continue
		}
		t.Add(entry.Style)
	}
	return t
}

// SelectComposite picks the winner of each axis tally, defaulting to
// FRIENDLY and ASSERTIVE on empty tallies, and concatenates them into a
// composite label. Unregistered composites yield the fallback style.
// Pure and deterministic given its inputs.
func (e *Engine) SelectComposite(ctxTally, interTally Tally) string {
	composite := fmt.Sprintf("%s_%s", ctxTally.Top("FRIENDLY"), interTally.Top("ASSERTIVE"))
	if _, ok := e.cfg.Styles[composite]; ok {
		return composite
	}
	return e.cfg.FallbackStyle
}

// AutoStyle derives the active style from the recent history window.
func (e *Engine) AutoStyle(entries []history.Entry) string {
	return e.SelectComposite(
		e.TallyAxis(entries, config.AxisContext),
		e.TallyAxis(entries, config.AxisInteraction),
	)
}

// DetectByKeywords maps the utterance to a style via the configured keyword
// rules. Rules are evaluated in label order; the first rule with a matching
// keyword wins. No match yields the fallback style.
func (e *Engine) DetectByKeywords(text string) string {
	lower := strings.ToLower(text)
	for _, label := range e.ruleOrder {
		for _, keyword := range e.cfg.StyleRules[label] {
			if strings.Contains(lower, keyword) {
				return label
			}
		}
	}
	return e.cfg.FallbackStyle
}

// Detect asks the remote classifier for a registered style label, falling
// back to keyword rules when the classifier is unavailable, errors, or
// answers with an unknown label.
func (e *Engine) Detect(ctx context.Context, text string) string {
	if e.classifier == nil {
		return e.DetectByKeywords(text)
	}

	answer, err := e.classifier.Classify(ctx, e.classifyPrompt(text))
	if err != nil {
		e.logger.Warn("style classifier unavailable, using keyword rules", "error", err)
		return e.DetectByKeywords(text)
	}

	label := strings.ToUpper(strings.TrimSpace(answer))
	if _, ok := e.cfg.Styles[label]; ok {
		return label
	}
	e.logger.Debug("style classifier returned unknown label", "label", label)
	return e.DetectByKeywords(text)
}

// classifyPrompt builds the single-label instruction listing the registered
// styles in deterministic order.
func (e *Engine) classifyPrompt(text string) string {
	labels := make([]string, 0, len(e.cfg.Styles))
	for label := range e.cfg.Styles {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return fmt.Sprintf(
		"Определи стиль сообщения. Возможные значения: %s.\nОтвет ровно одним словом.\n\nСообщение: %s",
		strings.Join(labels, ", "), text,
	)
}
