// Package mood classifies the emotional tone of an inbound utterance into a
// closed list of Russian emotion labels. The result is advisory input to the
// response composer; classification failures degrade to the neutral label.
package mood

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vkotlyarov/alyosha/internal/alyosha/config"
)

// Classifier is the remote label-classification capability. A nil Classifier
// makes every utterance neutral.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Analyzer detects the mood of inbound utterances.
type Analyzer struct {
	cfg        *config.Config
	classifier Classifier
	logger     *slog.Logger

	// valid is the label set built from cfg.Emotions at construction.
	valid map[string]struct{}
}

// New creates a mood Analyzer. classifier may be nil. If logger is nil, the
// default slog logger is used.
func New(cfg *config.Config, classifier Classifier, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	valid := make(map[string]struct{}, len(cfg.Emotions))
	for _, e := range cfg.Emotions {
		valid[e] = struct{}{}
	}
	return &Analyzer{cfg: cfg, classifier: classifier, logger: logger, valid: valid}
}

// Detect returns one of the configured emotion labels for text. Remote
// failures and answers outside the closed list yield the neutral label.
func (a *Analyzer) Detect(ctx context.Context, text string) string {
	if a.classifier == nil {
		return a.cfg.NeutralEmotion
	}

	answer, err := a.classifier.Classify(ctx, a.prompt(text))
	if err != nil {
		a.logger.Warn("mood classifier unavailable, using neutral", "error", err)
		return a.cfg.NeutralEmotion
	}

	label := strings.ToLower(strings.TrimSpace(answer))
	if _, ok := a.valid[label]; ok {
		return label
	}
	a.logger.Debug("mood classifier returned unknown label", "label", label)
	return a.cfg.NeutralEmotion
}

// Hint returns the tone hint registered for mood, or "" when the mood has
// none.
func (a *Analyzer) Hint(mood string) string {
	return a.cfg.EmotionHints[mood]
}

func (a *Analyzer) prompt(text string) string {
	return fmt.Sprintf(
		"Определи эмоцию сообщения. Возможные значения: %s.\nОтвет ровно одним словом.\n\nСообщение: %s",
		strings.Join(a.cfg.Emotions, ", "), text,
	)
}
