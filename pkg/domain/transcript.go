package domain

import (
	"bytes"
	"encoding/json"
)

// ListingItem is one entry on a page of the document listing.
//
// DateKey is the dedup identity. The listing does not guarantee that it is unique;
// two documents sharing a displayed date collide and only the first one is harvested.
type ListingItem struct {
	// DateKey is the date label shown next to the item (e.g. "14-01-2019").
	DateKey string `bson:"date" json:"date"`

	// Link is the absolute URL of the document.
	Link string `bson:"link" json:"link"`
}

// Section is a topic heading plus the paragraphs that follow it.
//
// A nil Topic marks the text that precedes the first heading of a document. Sections are
// kept even when they have no paragraphs.
type Section struct {
	Topic      *string  `bson:"topic" json:"topic"`
	Paragraphs []string `bson:"paragraphs" json:"paragraphs"`
}

// NewSection returns a section with an empty (non-nil) paragraph buffer.
func NewSection(topic *string) Section {
	return Section{Topic: topic, Paragraphs: []string{}}
}

// TopicLabel returns the topic, or "" for the leading untitled section.
func (s Section) TopicLabel() string {
	if s.Topic == nil {
		return ""
	}
	return *s.Topic
}

// MarshalJSON keeps "paragraphs" an array even for sections built without NewSection.
// Text is not HTML-escaped.
func (s Section) MarshalJSON() ([]byte, error) {
	type alias Section
	out := alias(s)
	if out.Paragraphs == nil {
		out.Paragraphs = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DocumentRecord is the harvested content of a single document. One record is written per
// visited document that produced at least one section.
type DocumentRecord struct {
	Date     string    `bson:"date" json:"date"`
	Link     string    `bson:"link" json:"link"`
	Sections []Section `bson:"sections" json:"sections"`
}

// NewDocumentRecord builds the record for a listing item.
func NewDocumentRecord(item ListingItem, sections []Section) *DocumentRecord {
	return &DocumentRecord{
		Date:     item.DateKey,
		Link:     item.Link,
		Sections: sections,
	}
}

// ParagraphCount returns the number of paragraphs across all sections.
func (r *DocumentRecord) ParagraphCount() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Paragraphs)
	}
	return n
}

// StringPtr returns a pointer to s. Handy for building topics.
func StringPtr(s string) *string {
	return &s
}
