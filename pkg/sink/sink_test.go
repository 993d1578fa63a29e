package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-harvester/pkg/domain"
)

func sampleRecord(date string) *domain.DocumentRecord {
	return domain.NewDocumentRecord(
		domain.ListingItem{DateKey: date, Link: "https://example.org/doc?a=1&b=2"},
		[]domain.Section{
			domain.NewSection(nil),
			{Topic: domain.StringPtr("Débat <urgent>"), Paragraphs: []string{"Zasedání bylo zahájeno."}},
		},
	)
}

func TestJSONLSink_CreatesFileAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcripts.jsonl")

	s, err := OpenJSONL(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "opening creates an empty log")

	require.NoError(t, s.Append(context.Background(), sampleRecord("14-01-2019")))
	require.NoError(t, s.Close())

	// Reopening appends after existing lines.
	s, err = OpenJSONL(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sampleRecord("15-01-2019")))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Equal(t,
		`{"date":"14-01-2019","link":"https://example.org/doc?a=1&b=2","sections":[{"topic":null,"paragraphs":[]},{"topic":"Débat <urgent>","paragraphs":["Zasedání bylo zahájeno."]}]}`,
		lines[0])
	assert.Contains(t, lines[1], `"date":"15-01-2019"`)
}

func TestJSONLSink_Errors(t *testing.T) {
	s, err := OpenJSONL(filepath.Join(t.TempDir(), "log.jsonl"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Append(context.Background(), nil), errNilRecord)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(context.Background(), sampleRecord("x")), os.ErrClosed)

	_, err = OpenJSONL(filepath.Join(t.TempDir(), "missing", "log.jsonl"))
	assert.Error(t, err)
}

func TestReadRecords(t *testing.T) {
	input := sampleLine(t, "14-01-2019") + "\n" + sampleLine(t, "15-01-2019") + "\n"

	var dates []string
	err := ReadRecords(strings.NewReader(input), func(rec *domain.DocumentRecord) error {
		dates = append(dates, rec.Date)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"14-01-2019", "15-01-2019"}, dates)

	err = ReadRecords(strings.NewReader("{not json}\n"), func(*domain.DocumentRecord) error { return nil })
	assert.ErrorContains(t, err, "line 1")
}

func sampleLine(t *testing.T, date string) string {
	t.Helper()
	line, err := encodeLine(sampleRecord(date))
	require.NoError(t, err)
	return strings.TrimSpace(string(line))
}

type memorySink struct {
	records []*domain.DocumentRecord
	err     error
	closed  bool
}

func (m *memorySink) Append(_ context.Context, rec *domain.DocumentRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

type saverFunc func(context.Context, *domain.DocumentRecord) error

func (f saverFunc) SaveRecord(ctx context.Context, rec *domain.DocumentRecord) error {
	return f(ctx, rec)
}

func TestMulti(t *testing.T) {
	primary := &memorySink{}
	var mirrored []string
	good := saverFunc(func(_ context.Context, rec *domain.DocumentRecord) error {
		mirrored = append(mirrored, rec.Date)
		return nil
	})
	bad := saverFunc(func(context.Context, *domain.DocumentRecord) error { return errors.New("mongo down") })

	m := NewMulti(primary, nil, bad, good)
	require.NoError(t, m.Append(context.Background(), sampleRecord("14-01-2019")))
	assert.Len(t, primary.records, 1)
	assert.Equal(t, []string{"14-01-2019"}, mirrored)

	require.NoError(t, m.Close())
	assert.True(t, primary.closed)
}

func TestMulti_PrimaryFailureSkipsMirrors(t *testing.T) {
	boom := errors.New("disk full")
	called := false
	m := NewMulti(&memorySink{err: boom}, nil, saverFunc(func(context.Context, *domain.DocumentRecord) error {
		called = true
		return nil
	}))

	assert.ErrorIs(t, m.Append(context.Background(), sampleRecord("x")), boom)
	assert.False(t, called)
}
