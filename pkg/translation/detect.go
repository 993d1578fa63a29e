package translation

import (
	"errors"

	"github.com/abadojack/whatlanggo"
)

// Unknown is the language code used when detection fails.
const Unknown = "unknown"

// ErrUndetermined is returned when no language can be detected.
var ErrUndetermined = errors.New("language could not be determined")

// Detector returns the ISO 639-1 code of the language text is written in.
type Detector interface {
	Detect(text string) (string, error)
}

// WhatlangDetector detects languages with whatlanggo.
type WhatlangDetector struct {
	// MinConfidence below which a detection is treated as undetermined. Zero accepts any.
	MinConfidence float64
}

// NewWhatlangDetector creates a detector that accepts every detection.
func NewWhatlangDetector() *WhatlangDetector {
	return &WhatlangDetector{}
}

// Detect implements Detector.
func (d *WhatlangDetector) Detect(text string) (string, error) {
	info := whatlanggo.Detect(text)
	if info.Lang < 0 || info.Confidence < d.MinConfidence {
		return "", ErrUndetermined
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUndetermined
	}
	return code, nil
}
