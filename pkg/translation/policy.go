package translation

import (
	"context"

	"transcript-harvester/pkg/logger"
)

// Policy decides per paragraph whether to translate it.
//
// Paragraphs whose language cannot be detected, or that are already in the guard's target
// language, are returned untouched. Everything else goes through the Guard.
type Policy struct {
	detector Detector
	guard    *Guard
	log      logger.Logger
}

// NewPolicy creates a language-aware translation policy.
func NewPolicy(detector Detector, guard *Guard, log logger.Logger) *Policy {
	if log == nil {
		log = logger.NewNop()
	}
	return &Policy{detector: detector, guard: guard, log: log}
}

// TranslateParagraph returns the paragraph in the target language when it can.
func (p *Policy) TranslateParagraph(ctx context.Context, text string) string {
	lang := p.detect(text)
	if lang == Unknown || lang == p.guard.TargetLanguage() {
		return text
	}

	translated := p.guard.TranslateSafe(ctx, text, lang)
	if translated != text {
		return translated
	}
	return text
}

func (p *Policy) detect(text string) (lang string) {
	defer func() {
		if r := recover(); r != nil {
			lang = Unknown
		}
	}()

	code, err := p.detector.Detect(text)
	if err != nil || code == "" {
		p.log.Debug("Language detection failed", logger.Error(err))
		return Unknown
	}
	return code
}
