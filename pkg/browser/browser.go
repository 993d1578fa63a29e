// Package browser drives the listing and document pages the harvester reads.
//
// Two sessions are provided: Chrome attaches to a running browser over the DevTools
// protocol, Static fetches pages over plain HTTP and follows links instead of clicking.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"transcript-harvester/pkg/content"
)

var (
	// ErrElementNotFound is returned when a control the caller asked for is absent.
	ErrElementNotFound = content.ErrElementNotFound

	// ErrNavigationStall is returned when a new browsing context never becomes ready.
	ErrNavigationStall = errors.New("navigation stalled")

	// ErrClosed is returned by operations on a closed session or document.
	ErrClosed = errors.New("browser session closed")
)

// Page is a snapshot of a rendered page.
type Page struct {
	URL  string
	HTML string
}

// Session is the listing browsing context.
//
// Sessions are not safe for concurrent use.
type Session interface {
	// Navigate loads url in the listing context.
	Navigate(ctx context.Context, url string) error

	// Current returns the listing page as currently rendered.
	Current(ctx context.Context) (Page, error)

	// NextPage activates the next-page control. It returns false when there is none.
	NextPage(ctx context.Context) (bool, error)

	// OpenDocument opens link in a new browsing context and waits for it to be ready.
	OpenDocument(ctx context.Context, link string) (Document, error)

	Close() error
}

// Document is a browsing context showing one document.
type Document interface {
	// RevealFullText activates the "full text" control. It returns ErrElementNotFound when
	// the document has none.
	RevealFullText(ctx context.Context) error

	// HTML returns the document as currently rendered.
	HTML(ctx context.Context) (string, error)

	// Close closes the context and hands focus back to the listing.
	Close() error
}

// Timing holds the fixed waits used around navigation.
type Timing struct {
	ClickDelay   time.Duration `mapstructure:"click_delay" yaml:"click_delay"`
	CloseDelay   time.Duration `mapstructure:"close_delay" yaml:"close_delay"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPolls     uint          `mapstructure:"max_polls" yaml:"max_polls"`
}

// DefaultTiming returns the waits the listing site needs.
func DefaultTiming() Timing {
	return Timing{
		ClickDelay:   3 * time.Second,
		CloseDelay:   2 * time.Second,
		PollInterval: time.Second,
		MaxPolls:     30,
	}
}

// waitFor polls ready until it succeeds, at most maxPolls times.
func waitFor(ctx context.Context, interval time.Duration, maxPolls uint, ready func() error) error {
	if maxPolls == 0 {
		maxPolls = 1
	}
	err := retry.Do(
		ready,
		retry.Context(ctx),
		retry.Attempts(maxPolls),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w after %d polls: %v", ErrNavigationStall, maxPolls, err)
}

// sleep waits for d or until ctx is done.
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
