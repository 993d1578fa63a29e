package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RowKind classifies a document row.
type RowKind int

const (
	// RowOther is a row that is neither a topic nor content. It is ignored.
	RowOther RowKind = iota
	// RowTopic carries a topic heading.
	RowTopic
	// RowContent carries zero or more paragraphs.
	RowContent
)

func (k RowKind) String() string {
	switch k {
	case RowOther:
		return "other"
	case RowTopic:
		return "topic"
	case RowContent:
		return "content"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Row is one row of a document table.
type Row struct {
	Kind       RowKind
	Topic      string
	Paragraphs []string

	// Err is set by row sources that could not read the row.
	Err error
}

// TopicRow returns a topic row.
func TopicRow(topic string) Row {
	return Row{Kind: RowTopic, Topic: topic}
}

// ContentRow returns a content row.
func ContentRow(paragraphs ...string) Row {
	return Row{Kind: RowContent, Paragraphs: paragraphs}
}

// ParseRows classifies every row of a document page in document order.
//
// A row holding a topic cell is a topic row even when it also holds paragraphs.
func ParseRows(html string, sel Selectors) ([]Row, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var rows []Row
	doc.Find(sel.Row).Each(func(i int, tr *goquery.Selection) {
		rows = append(rows, parseRow(i, tr, sel))
	})
	return rows, nil
}

func parseRow(i int, tr *goquery.Selection, sel Selectors) (row Row) {
	defer func() {
		if r := recover(); r != nil {
			row = Row{Err: fmt.Errorf("row %d: %v", i, r)}
		}
	}()

	if topic := tr.Find(sel.RowTopic).First(); topic.Length() > 0 {
		return TopicRow(strings.TrimSpace(topic.Text()))
	}

	paragraphs := tr.Find(sel.RowParagraph)
	if paragraphs.Length() == 0 {
		return Row{Kind: RowOther}
	}

	row = Row{Kind: RowContent}
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		row.Paragraphs = append(row.Paragraphs, p.Text())
	})
	return row
}
