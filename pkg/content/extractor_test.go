package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-harvester/pkg/domain"
)

func topics(sections []domain.Section) []*string {
	out := make([]*string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Topic)
	}
	return out
}

func TestSectionExtractor_TopicsAndContent(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	rows := []Row{
		TopicRow("A"),
		ContentRow("p1", "p2"),
		TopicRow("B"),
		ContentRow(),
	}

	got, err := e.Extract(context.Background(), rows)
	require.NoError(t, err)

	want := []domain.Section{
		{Topic: nil, Paragraphs: []string{}},
		{Topic: domain.StringPtr("A"), Paragraphs: []string{"p1", "p2"}},
		{Topic: domain.StringPtr("B"), Paragraphs: []string{}},
	}
	assert.Equal(t, want, got)
}

func TestSectionExtractor_AlwaysAtLeastOneSection(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	inputs := map[string][]Row{
		"no rows":        nil,
		"only content":   {ContentRow("a"), ContentRow("b")},
		"only other":     {{Kind: RowOther}, {Kind: RowOther}},
		"only malformed": {{Err: errors.New("broken")}},
	}

	for name, rows := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := e.Extract(context.Background(), rows)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.Nil(t, got[0].Topic)
		})
	}
}

func TestSectionExtractor_EachTopicClosesOneSection(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	rows := []Row{TopicRow("A"), TopicRow("B"), TopicRow("C")}
	got, err := e.Extract(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, got, len(rows)+1)
	assert.Equal(t, []*string{nil, domain.StringPtr("A"), domain.StringPtr("B"), domain.StringPtr("C")}, topics(got))
	for _, s := range got {
		assert.Empty(t, s.Paragraphs)
		assert.NotNil(t, s.Paragraphs)
	}
}

func TestSectionExtractor_PreservesOrderAndDropsBlankParagraphs(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	rows := []Row{
		ContentRow("intro"),
		TopicRow("Debate"),
		ContentRow("one", "  ", "two"),
		{Kind: RowOther},
		ContentRow("  three  "),
	}
	got, err := e.Extract(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"intro"}, got[0].Paragraphs)
	assert.Equal(t, []string{"one", "two", "three"}, got[1].Paragraphs)
}

func TestSectionExtractor_MalformedRowIsSkipped(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	rows := []Row{
		TopicRow("A"),
		ContentRow("p1"),
		{Kind: RowContent, Paragraphs: []string{"lost"}, Err: errors.New("stale element")},
		{Kind: RowKind(42)},
		ContentRow("p2"),
	}
	got, err := e.Extract(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []string{"p1", "p2"}, got[1].Paragraphs)
}

type upperTranslator struct{ seen []string }

func (u *upperTranslator) TranslateParagraph(_ context.Context, text string) string {
	u.seen = append(u.seen, text)
	return strings.ToUpper(text)
}

func TestSectionExtractor_TranslatesEachParagraph(t *testing.T) {
	tr := &upperTranslator{}
	e := NewSectionExtractor(Selectors{}, tr, nil)

	got, err := e.Extract(context.Background(), []Row{TopicRow("Titre"), ContentRow("un", "", "deux")})
	require.NoError(t, err)

	assert.Equal(t, []string{"un", "deux"}, tr.seen)
	assert.Equal(t, []string{"UN", "DEUX"}, got[1].Paragraphs)
	assert.Equal(t, "Titre", got[1].TopicLabel(), "topics are not translated")
}

func TestSectionExtractor_CancelledContextAborts(t *testing.T) {
	e := NewSectionExtractor(Selectors{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []Row{TopicRow("A")})
	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSectionExtractor_ExtractHTML(t *testing.T) {
	e := NewSectionExtractor(DefaultSelectors(), nil, nil)

	got, err := e.ExtractHTML(context.Background(), documentHTML)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Nil(t, got[0].Topic)
	assert.Equal(t, []string{"Prologue."}, got[0].Paragraphs)
	assert.Equal(t, "Opening of the sitting", got[1].TopicLabel())
	assert.Equal(t, []string{"The sitting opened at 9.00.", "Zasedání bylo zahájeno."}, got[1].Paragraphs)
	assert.Equal(t, "Closing", got[2].TopicLabel())
	assert.Empty(t, got[2].Paragraphs)

	_, err = e.ExtractHTML(context.Background(), "")
	var extractErr *ExtractError
	assert.ErrorAs(t, err, &extractErr)
}
