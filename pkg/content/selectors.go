package content

// Selectors locates the elements the harvester reads on listing and document pages.
type Selectors struct {
	// Listing page.
	Item     string `mapstructure:"item" yaml:"item"`
	ItemLink string `mapstructure:"item_link" yaml:"item_link"`
	ItemDate string `mapstructure:"item_date" yaml:"item_date"`
	NextPage string `mapstructure:"next_page" yaml:"next_page"`

	// Document page.
	Row            string `mapstructure:"row" yaml:"row"`
	RowTopic       string `mapstructure:"row_topic" yaml:"row_topic"`
	RowParagraph   string `mapstructure:"row_paragraph" yaml:"row_paragraph"`
	RevealFullText string `mapstructure:"reveal_full_text" yaml:"reveal_full_text"`
}

// DefaultSelectors returns the selectors of the parliamentary debates listing.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:           "div.notice",
		ItemLink:       "p.title a",
		ItemDate:       "div.date_reference span.date",
		NextPage:       "a.next_page[title='Display the next page']",
		Row:            "table tr",
		RowTopic:       "td.doc_title",
		RowParagraph:   "p.contents",
		RevealFullText: "a[title*='Full text']",
	}
}

// SetDefaults fills empty selectors from DefaultSelectors.
func (s *Selectors) SetDefaults() {
	d := DefaultSelectors()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&s.Item, d.Item)
	fill(&s.ItemLink, d.ItemLink)
	fill(&s.ItemDate, d.ItemDate)
	fill(&s.NextPage, d.NextPage)
	fill(&s.Row, d.Row)
	fill(&s.RowTopic, d.RowTopic)
	fill(&s.RowParagraph, d.RowParagraph)
	fill(&s.RevealFullText, d.RevealFullText)
}
