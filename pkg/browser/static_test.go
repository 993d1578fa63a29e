package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/httpclient"
)

func fastTiming() Timing {
	return Timing{PollInterval: time.Millisecond, MaxPolls: 3}
}

func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStatic_Pagination(t *testing.T) {
	server := newSite(t, map[string]string{
		"/list":        `<a class="next_page" title="Display the next page" href="/list?page=2">next</a>`,
		"/list?page=2": `<p>last page</p>`,
	})

	s := NewStatic(httpclient.NewClient(httpclient.BrowserClient, httpclient.Options{}), content.Selectors{}, fastTiming(), nil)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, server.URL+"/list"))

	moved, err := s.NextPage(ctx)
	require.NoError(t, err)
	assert.True(t, moved)

	page, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/list?page=2", page.URL)
	assert.Contains(t, page.HTML, "last page")

	moved, err = s.NextPage(ctx)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestStatic_OpenDocumentAndReveal(t *testing.T) {
	server := newSite(t, map[string]string{
		"/doc":      `<a title="Full text" href="/doc/full">Full text</a><p>summary</p>`,
		"/doc/full": `<table><tr><td class="doc_title">A</td></tr></table>`,
		"/bare":     `<p>nothing to reveal</p>`,
	})

	s := NewStatic(httpclient.NewClient(httpclient.BrowserClient, httpclient.Options{}), content.Selectors{}, fastTiming(), nil)
	ctx := context.Background()

	doc, err := s.OpenDocument(ctx, server.URL+"/doc")
	require.NoError(t, err)
	require.NoError(t, doc.RevealFullText(ctx))
	html, err := doc.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "doc_title")
	require.NoError(t, doc.Close())

	bare, err := s.OpenDocument(ctx, server.URL+"/bare")
	require.NoError(t, err)
	assert.ErrorIs(t, bare.RevealFullText(ctx), ErrElementNotFound)
	html, err = bare.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "nothing to reveal")
}

func TestStatic_OpenDocumentStalls(t *testing.T) {
	s := NewStatic(httpclient.NewClient(httpclient.BrowserClient, httpclient.Options{}), content.Selectors{}, fastTiming(), nil)
	server := newSite(t, map[string]string{})

	_, err := s.OpenDocument(context.Background(), server.URL+"/gone")
	assert.ErrorIs(t, err, ErrNavigationStall)
}

type flakyFetcher struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyFetcher) Fetch(context.Context, string) (string, error) {
	if f.calls.Add(1) <= f.failures {
		return "", errors.New("not yet")
	}
	return "<p>ready</p>", nil
}

func TestStatic_OpenDocumentPollsUntilReady(t *testing.T) {
	f := &flakyFetcher{failures: 2}
	s := NewStatic(f, content.Selectors{}, fastTiming(), nil)

	doc, err := s.OpenDocument(context.Background(), "http://example.org/doc")
	require.NoError(t, err)
	html, _ := doc.HTML(context.Background())
	assert.Equal(t, "<p>ready</p>", html)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestStatic_Closed(t *testing.T) {
	s := NewStatic(&flakyFetcher{}, content.Selectors{}, fastTiming(), nil)
	require.NoError(t, s.Close())

	_, err := s.Current(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.OpenDocument(context.Background(), "http://example.org")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWaitFor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitFor(ctx, time.Millisecond, 5, func() error { return errors.New("never") })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrNavigationStall)
}
