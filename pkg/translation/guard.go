// Package translation wraps paragraph translation behind a hard deadline.
package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transcript-harvester/pkg/logger"
)

// DefaultTimeout bounds a single translation call.
const DefaultTimeout = 3 * time.Second

// Translator translates text from sourceLang into targetLang.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate calls f.
func (f TranslatorFunc) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}

// Guard runs a Translator with a wall-clock deadline and falls back to the original text.
type Guard struct {
	translator Translator
	targetLang string
	timeout    time.Duration
	log        logger.Logger
}

// NewGuard creates a guard translating into targetLang. A non-positive timeout uses DefaultTimeout.
func NewGuard(translator Translator, targetLang string, timeout time.Duration, log logger.Logger) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Guard{
		translator: translator,
		targetLang: targetLang,
		timeout:    timeout,
		log:        log,
	}
}

// TargetLanguage returns the language the guard translates into.
func (g *Guard) TargetLanguage() string {
	return g.targetLang
}

type outcome struct {
	text string
	err  error
}

// TranslateSafe returns the translation of text, or text itself when the translator fails,
// panics, returns an empty string, or does not answer within the timeout. It never blocks
// longer than the timeout; a late answer is dropped.
func (g *Guard) TranslateSafe(ctx context.Context, text, sourceLang string) string {
	if g == nil || g.translator == nil || strings.TrimSpace(text) == "" {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// Buffered so the worker can always deliver and exit, even after we stop listening.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("translator panicked: %v", r)}
			}
		}()
		translated, err := g.translator.Translate(ctx, text, sourceLang, g.targetLang)
		done <- outcome{text: translated, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			g.log.Debug("Translation failed, keeping original",
				logger.String("source_lang", sourceLang), logger.Error(res.err))
			return text
		}
		if strings.TrimSpace(res.text) == "" {
			return text
		}
		return res.text
	case <-ctx.Done():
		g.log.Debug("Translation timed out, keeping original",
			logger.String("source_lang", sourceLang), logger.Duration("timeout", g.timeout))
		return text
	}
}
