// Package harvest runs the crawl loop: page through the listing, visit each document whose
// date has not been seen, extract its sections and append the record.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcript-harvester/pkg/browser"
	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/domain"
	"transcript-harvester/pkg/ledger"
	"transcript-harvester/pkg/logger"
	"transcript-harvester/pkg/sink"
)

// State is a state of the crawl loop.
type State int

const (
	StateScanningPage State = iota
	StateVisitingItem
	StateAdvancingPage
	StateDone
)

func (s State) String() string {
	switch s {
	case StateScanningPage:
		return "scanning-page"
	case StateVisitingItem:
		return "visiting-item"
	case StateAdvancingPage:
		return "advancing-page"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNilSession   = errors.New("browser session is nil")
	ErrNilExtractor = errors.New("section extractor is nil")
	ErrNilLedger    = errors.New("ledger is nil")
	ErrNilSink      = errors.New("record sink is nil")
	ErrEmptyListing = errors.New("listing URL is empty")
)

// Extractor extracts the sections of a rendered document.
type Extractor interface {
	ExtractHTML(ctx context.Context, html string) ([]domain.Section, error)
}

var _ Extractor = (*content.SectionExtractor)(nil)

// Config tunes a Harvester.
type Config struct {
	ListingURL string

	// PageSettleDelay is waited before every scan of the listing.
	PageSettleDelay time.Duration

	Selectors content.Selectors
}

// Deps are the collaborators of a Harvester. The caller opens and closes them.
type Deps struct {
	Session   browser.Session
	Extractor Extractor
	Ledger    *ledger.Ledger
	Sink      sink.Sink
	Log       logger.Logger
}

// Summary counts what a run did.
type Summary struct {
	PagesScanned     int
	PagesAdvanced    int
	DocumentsVisited int
	RecordsWritten   int
	EmptyDocuments   int
	Failures         int
}

// Harvester drives one crawl. It is single-threaded; documents are visited one at a time.
type Harvester struct {
	cfg       Config
	session   browser.Session
	extractor Extractor
	ledger    *ledger.Ledger
	sink      sink.Sink
	log       logger.Logger
}

// New validates deps and returns a Harvester.
func New(cfg Config, deps Deps) (*Harvester, error) {
	switch {
	case cfg.ListingURL == "":
		return nil, ErrEmptyListing
	case deps.Session == nil:
		return nil, ErrNilSession
	case deps.Extractor == nil:
		return nil, ErrNilExtractor
	case deps.Ledger == nil:
		return nil, ErrNilLedger
	case deps.Sink == nil:
		return nil, ErrNilSink
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	cfg.Selectors.SetDefaults()

	return &Harvester{
		cfg:       cfg,
		session:   deps.Session,
		extractor: deps.Extractor,
		ledger:    deps.Ledger,
		sink:      deps.Sink,
		log:       deps.Log,
	}, nil
}

// Run crawls until the last listing page has no unseen item.
//
// After each visited document the current page is scanned again from the top, since
// opening and closing a document may change what the listing shows. Failures of a single
// document are logged and counted; only a failure to load the listing URL or a cancelled
// ctx ends the run with an error.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if err := h.session.Navigate(ctx, h.cfg.ListingURL); err != nil {
		return sum, fmt.Errorf("open listing %s: %w", h.cfg.ListingURL, err)
	}

	state := StateScanningPage
	var next domain.ListingItem

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("harvest interrupted in %s: %w", state, err)
		}

		switch state {
		case StateScanningPage:
			sum.PagesScanned++
			item, found, err := h.scan(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					continue
				}
				sum.Failures++
				h.log.Error("Listing scan failed, moving to next page", logger.Error(err))
				state = StateAdvancingPage
			case found:
				next = item
				state = StateVisitingItem
			default:
				state = StateAdvancingPage
			}

		case StateVisitingItem:
			sum.DocumentsVisited++
			written, err := h.visit(ctx, next)
			switch {
			case err != nil:
				sum.Failures++
				h.log.Error("Failed to harvest document",
					logger.String("date", next.DateKey), logger.String("link", next.Link), logger.Error(err))
			case written:
				sum.RecordsWritten++
			default:
				sum.EmptyDocuments++
			}
			state = StateScanningPage

		case StateAdvancingPage:
			moved, err := h.session.NextPage(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					continue
				}
				sum.Failures++
				h.log.Error("Next page failed, stopping", logger.Error(err))
				state = StateDone
			case moved:
				sum.PagesAdvanced++
				h.log.Debug("Advanced to next listing page")
				state = StateScanningPage
			default:
				h.log.Info("No next button found. Done scraping.")
				state = StateDone
			}
		}
	}

	h.log.Info("Scraping complete",
		logger.Int("pages_scanned", sum.PagesScanned),
		logger.Int("documents_visited", sum.DocumentsVisited),
		logger.Int("records_written", sum.RecordsWritten),
		logger.Int("empty_documents", sum.EmptyDocuments),
		logger.Int("failures", sum.Failures))
	return sum, nil
}

// scan returns the first item of the current listing page whose date is not in the ledger.
func (h *Harvester) scan(ctx context.Context) (domain.ListingItem, bool, error) {
	if err := sleep(ctx, h.cfg.PageSettleDelay); err != nil {
		return domain.ListingItem{}, false, err
	}

	page, err := h.session.Current(ctx)
	if err != nil {
		return domain.ListingItem{}, false, fmt.Errorf("read listing: %w", err)
	}

	listing, err := content.ParseListing(page.HTML, page.URL, h.cfg.Selectors)
	if err != nil {
		return domain.ListingItem{}, false, fmt.Errorf("parse listing %s: %w", page.URL, err)
	}
	if listing.Skipped > 0 {
		h.log.Debug("Skipped listing items without link or date",
			logger.String("page", page.URL), logger.Int("skipped", listing.Skipped))
	}

	for _, item := range listing.Items {
		if !h.ledger.Contains(item.DateKey) {
			return item, true, nil
		}
	}
	return domain.ListingItem{}, false, nil
}

// visit harvests one document. It reports whether a record was written.
//
// The date is marked seen before the document is opened and persisted only once the
// document has been fully processed, including when it produced no sections.
func (h *Harvester) visit(ctx context.Context, item domain.ListingItem) (written bool, err error) {
	log := h.log.With(logger.String("date", item.DateKey))
	log.Info("Processing new date", logger.String("link", item.Link))
	h.ledger.Add(item.DateKey)

	doc, err := h.session.OpenDocument(ctx, item.Link)
	if err != nil {
		return false, fmt.Errorf("open document: %w", err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			log.Warn("Closing document failed", logger.Error(cerr))
		}
	}()

	if err := doc.RevealFullText(ctx); err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			log.Info("Full text button not found.")
		} else {
			log.Warn("Revealing full text failed", logger.Error(err))
		}
	}

	html, err := doc.HTML(ctx)
	if err != nil {
		return false, fmt.Errorf("read document: %w", err)
	}

	sections, err := h.extractor.ExtractHTML(ctx, html)
	if err != nil {
		return false, err
	}

	if len(sections) > 0 {
		rec := domain.NewDocumentRecord(item, sections)
		if err := h.sink.Append(ctx, rec); err != nil {
			return false, fmt.Errorf("append record: %w", err)
		}
		written = true
		log.Info("Saved discussion",
			logger.Int("sections", len(sections)), logger.Int("paragraphs", rec.ParagraphCount()))
	} else {
		log.Info("No text found")
	}

	if err := h.ledger.Persist(ctx, item.DateKey); err != nil {
		return written, err
	}
	return written, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
