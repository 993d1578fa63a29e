package browser

import (
	"context"
	"errors"
	"strings"

	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/httpclient"
	"transcript-harvester/pkg/logger"
)

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

var _ Fetcher = (*httpclient.HTTPClient)(nil)

// Static is a Session for sites that render without JavaScript. Controls are followed as
// links: NextPage loads the next-page href, RevealFullText loads the full-text href.
type Static struct {
	fetcher   Fetcher
	selectors content.Selectors
	timing    Timing
	log       logger.Logger

	current string
	closed  bool
}

// NewStatic creates a static session.
func NewStatic(fetcher Fetcher, sel content.Selectors, timing Timing, log logger.Logger) *Static {
	sel.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Static{
		fetcher:   fetcher,
		selectors: sel,
		timing:    timing,
		log:       log,
	}
}

// Navigate implements Session.
func (s *Static) Navigate(_ context.Context, url string) error {
	if s.closed {
		return ErrClosed
	}
	s.current = url
	return nil
}

// Current implements Session. Every call refetches the page.
func (s *Static) Current(ctx context.Context) (Page, error) {
	if s.closed {
		return Page{}, ErrClosed
	}
	html, err := s.fetcher.Fetch(ctx, s.current)
	if err != nil {
		return Page{}, err
	}
	return Page{URL: s.current, HTML: html}, nil
}

// NextPage implements Session.
func (s *Static) NextPage(ctx context.Context) (bool, error) {
	page, err := s.Current(ctx)
	if err != nil {
		return false, err
	}

	next, err := content.FindHref(page.HTML, page.URL, s.selectors.NextPage)
	if errors.Is(err, ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.log.Debug("Following next page link", logger.String("url", next))
	s.current = next
	return true, nil
}

// OpenDocument implements Session. The document counts as open once its page can be fetched.
func (s *Static) OpenDocument(ctx context.Context, link string) (Document, error) {
	if s.closed {
		return nil, ErrClosed
	}

	doc := &staticDocument{session: s, url: link}
	err := waitFor(ctx, s.timing.PollInterval, s.timing.MaxPolls, func() error {
		html, err := s.fetcher.Fetch(ctx, link)
		if err != nil {
			return err
		}
		doc.html = html
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Close implements Session.
func (s *Static) Close() error {
	s.closed = true
	return nil
}

type staticDocument struct {
	session *Static
	url     string
	html    string
}

func (d *staticDocument) RevealFullText(ctx context.Context) error {
	href, err := content.FindHref(d.html, d.url, d.session.selectors.RevealFullText)
	if err != nil {
		return err
	}
	// In-page anchors reveal nothing new.
	if strings.HasPrefix(strings.TrimPrefix(href, stripFragment(d.url)), "#") {
		return nil
	}

	html, err := d.session.fetcher.Fetch(ctx, href)
	if err != nil {
		return err
	}
	d.url, d.html = href, html
	return nil
}

func (d *staticDocument) HTML(context.Context) (string, error) {
	return d.html, nil
}

func (d *staticDocument) Close() error {
	return nil
}

func stripFragment(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}
