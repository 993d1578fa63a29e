package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/logger"
)

// ChromeConfig configures a Chrome session.
type ChromeConfig struct {
	// DevToolsURL is the remote debugging endpoint of a running browser,
	// e.g. ws://127.0.0.1:9222.
	DevToolsURL string
	Selectors   content.Selectors
	Timing      Timing
}

// Chrome is a Session attached to a running browser over the DevTools protocol.
// The listing lives in its own tab; every document opens in a new tab.
type Chrome struct {
	cfg    ChromeConfig
	log    logger.Logger
	tab    context.Context
	cancel context.CancelFunc
}

// NewChrome attaches to the browser at cfg.DevToolsURL and opens the listing tab.
func NewChrome(ctx context.Context, cfg ChromeConfig, log logger.Logger) (*Chrome, error) {
	if cfg.DevToolsURL == "" {
		return nil, errors.New("devtools url is empty")
	}
	cfg.Selectors.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cfg.DevToolsURL)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run attaches to the browser and creates the tab.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("attach to browser at %s: %w", cfg.DevToolsURL, err)
	}

	return &Chrome{
		cfg: cfg,
		log: log,
		tab: tab,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

// Navigate implements Session.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return run(ctx, c.tab, chromedp.Navigate(url))
}

// Current implements Session.
func (c *Chrome) Current(ctx context.Context) (Page, error) {
	var page Page
	err := run(ctx, c.tab,
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	return page, err
}

// NextPage implements Session.
func (c *Chrome) NextPage(ctx context.Context) (bool, error) {
	err := click(ctx, c.tab, c.cfg.Selectors.NextPage, c.cfg.Timing.ClickDelay)
	if errors.Is(err, ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OpenDocument implements Session.
func (c *Chrome) OpenDocument(ctx context.Context, link string) (Document, error) {
	// A context derived from a tab context with NewContext opens a sibling tab.
	docTab, cancel := chromedp.NewContext(c.tab)
	if err := run(ctx, docTab, chromedp.Navigate(link)); err != nil {
		cancel()
		return nil, fmt.Errorf("open document %s: %w", link, err)
	}

	err := waitFor(ctx, c.cfg.Timing.PollInterval, c.cfg.Timing.MaxPolls, func() error {
		var state string
		if err := run(ctx, docTab, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return err
		}
		if state != "complete" {
			return fmt.Errorf("document state %q", state)
		}
		return nil
	})
	if err != nil {
		cancel()
		return nil, err
	}
	c.log.Debug("Document tab ready", logger.String("link", link))

	return &chromeDocument{
		chrome: c,
		tab:    docTab,
		cancel: cancel,
	}, nil
}

// Close implements Session. It closes the listing tab and detaches from the browser.
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

type chromeDocument struct {
	chrome *Chrome
	tab    context.Context
	cancel context.CancelFunc
}

func (d *chromeDocument) RevealFullText(ctx context.Context) error {
	return click(ctx, d.tab, d.chrome.cfg.Selectors.RevealFullText, d.chrome.cfg.Timing.ClickDelay)
}

func (d *chromeDocument) HTML(ctx context.Context) (string, error) {
	var html string
	err := run(ctx, d.tab, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Close closes the document tab and waits for the listing tab to settle.
func (d *chromeDocument) Close() error {
	d.cancel()
	return sleep(context.Background(), d.chrome.cfg.Timing.CloseDelay)
}

// run executes actions in the browsing context target while honouring ctx. Cancelling the
// derived context aborts the actions without closing the tab.
func run(ctx, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// click clicks the first element matching selector, then waits delay. It returns
// ErrElementNotFound without waiting when nothing matches.
func click(ctx, target context.Context, selector string, delay time.Duration) error {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return err
	}

	var present bool
	if err := run(ctx, target, chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s) !== null`, quoted), &present)); err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	if err := run(ctx, target, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return err
	}
	return sleep(ctx, delay)
}
