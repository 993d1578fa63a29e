// Package content parses listing and document pages and groups document rows into sections.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"transcript-harvester/pkg/domain"
	"transcript-harvester/pkg/logger"
)

// ErrMalformedRow marks a row that could not be classified.
var ErrMalformedRow = errors.New("malformed row")

// RowError describes a row that was skipped. It never aborts extraction.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ExtractError aborts extraction of a whole document.
type ExtractError struct {
	Err error
}

func (e *ExtractError) Error() string {
	return "extract sections: " + e.Err.Error()
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ParagraphTranslator rewrites a paragraph, typically into another language.
// Implementations must return the input unchanged when they cannot do better.
type ParagraphTranslator interface {
	TranslateParagraph(ctx context.Context, text string) string
}

// SectionExtractor turns a flat sequence of rows into topic sections.
//
// Extraction starts with an open section without a topic. A topic row closes the open
// section and opens a new one; content rows append their non-empty paragraphs to the
// open section. The open section is emitted at the end, so the result is never empty.
type SectionExtractor struct {
	selectors  Selectors
	translator ParagraphTranslator
	log        logger.Logger
}

// NewSectionExtractor creates an extractor. A nil translator keeps paragraphs as scraped.
func NewSectionExtractor(sel Selectors, translator ParagraphTranslator, log logger.Logger) *SectionExtractor {
	sel.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &SectionExtractor{
		selectors:  sel,
		translator: translator,
		log:        log,
	}
}

// ExtractHTML parses a document page and extracts its sections.
func (e *SectionExtractor) ExtractHTML(ctx context.Context, html string) ([]domain.Section, error) {
	rows, err := ParseRows(html, e.selectors)
	if err != nil {
		return nil, &ExtractError{Err: err}
	}
	return e.Extract(ctx, rows)
}

// Extract groups rows into sections, preserving row and paragraph order.
//
// Malformed rows are logged and skipped. Only cancellation of ctx aborts extraction.
func (e *SectionExtractor) Extract(ctx context.Context, rows []Row) ([]domain.Section, error) {
	sections := make([]domain.Section, 0, 1)
	current := domain.NewSection(nil)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, &ExtractError{Err: err}
		}

		next, closed, err := e.apply(ctx, current, row)
		if err != nil {
			rowErr := &RowError{Index: i, Err: err}
			e.log.Warn("Skipping row", logger.Error(rowErr))
			continue
		}
		if closed {
			sections = append(sections, current)
		}
		current = next
	}

	return append(sections, current), nil
}

// apply feeds one row into the open section. It returns the section that is open afterwards
// and whether the previous one was closed.
func (e *SectionExtractor) apply(ctx context.Context, current domain.Section, row Row) (next domain.Section, closed bool, err error) {
	if row.Err != nil {
		return current, false, errors.Join(ErrMalformedRow, row.Err)
	}

	switch row.Kind {
	case RowTopic:
		return domain.NewSection(domain.StringPtr(row.Topic)), true, nil
	case RowContent:
		for _, p := range row.Paragraphs {
			text := strings.TrimSpace(p)
			if text == "" {
				continue
			}
			current.Paragraphs = append(current.Paragraphs, e.translate(ctx, text))
		}
		return current, false, nil
	case RowOther:
		return current, false, nil
	default:
		return current, false, fmt.Errorf("%w: unknown kind %s", ErrMalformedRow, row.Kind)
	}
}

func (e *SectionExtractor) translate(ctx context.Context, text string) string {
	if e.translator == nil {
		return text
	}
	return e.translator.TranslateParagraph(ctx, text)
}
