package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/renderscrape/bookworm/config"
)

// BrowserFetcher drives one headless Chromium session for the whole run and
// returns page HTML after JavaScript has rendered it.
type BrowserFetcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	settle        time.Duration
}

// NewBrowserFetcher launches the browser allocator. The Chromium process
// itself starts lazily on the first Fetch.
func NewBrowserFetcher(cfg *config.Config) (*BrowserFetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		slog.Debug("chromedp", slog.String("msg", fmt.Sprintf(format, args...)))
	}))

	return &BrowserFetcher{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       cfg.Timeout,
		settle:        250 * time.Millisecond,
	}, nil
}

// Fetch navigates the session tab to url, waits for waitFor to become
// visible, and captures the document's outer HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, url, waitFor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(bf.browserCtx, bf.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitFor != "" {
		actions = append(actions, chromedp.WaitVisible(waitFor, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	if bf.settle > 0 {
		actions = append(actions, chromedp.Sleep(bf.settle))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		classified := Classify(err, 0)
		if classified == err {
			classified = ErrNavigation{Err: err}
		}
		return "", classified
	}

	return html, nil
}

// Close shuts the browser down.
func (bf *BrowserFetcher) Close() error {
	bf.browserCancel()
	bf.allocCancel()
	return nil
}
