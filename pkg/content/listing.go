package content

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"transcript-harvester/pkg/domain"
)

var (
	errEmptyHTML         = errors.New("empty HTML content")
	errFailedToParseHTML = errors.New("failed to parse HTML")

	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("element not found")
)

// ListingPage is the parsed content of one listing page.
type ListingPage struct {
	// Items in display order.
	Items []domain.ListingItem

	// Skipped counts item elements that lacked a link or a date label.
	Skipped int

	// HasNext reports whether a next-page control is present.
	HasNext bool
}

// ParseListing extracts the listing items from a listing page, in display order.
//
// Relative links are resolved against baseURL. Items without a link or a date are
// counted in Skipped rather than returned.
func ParseListing(html, baseURL string, sel Selectors) (ListingPage, error) {
	doc, err := parse(html)
	if err != nil {
		return ListingPage{}, err
	}

	var page ListingPage
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(sel.ItemLink).First().Attr("href")
		href = strings.TrimSpace(href)
		date := strings.TrimSpace(item.Find(sel.ItemDate).First().Text())
		if !ok || href == "" || date == "" {
			page.Skipped++
			return
		}

		page.Items = append(page.Items, domain.ListingItem{
			DateKey: date,
			Link:    resolveURL(baseURL, href),
		})
	})
	page.HasNext = doc.Find(sel.NextPage).Length() > 0

	return page, nil
}

// HasElement reports whether selector matches anything in html.
func HasElement(html, selector string) (bool, error) {
	doc, err := parse(html)
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// FindHref returns the resolved href of the first element matching selector.
func FindHref(html, baseURL, selector string) (string, error) {
	doc, err := parse(html)
	if err != nil {
		return "", err
	}

	href, ok := doc.Find(selector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", ErrElementNotFound
	}
	return resolveURL(baseURL, href), nil
}

func parse(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errEmptyHTML
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Join(errFailedToParseHTML, err)
	}
	return doc, nil
}

// resolveURL resolves href against base. Unparseable input is returned as is.
func resolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
