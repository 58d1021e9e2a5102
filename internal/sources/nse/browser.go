package nse

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Fetcher loads pages in a browser session and then reads a same-origin
// API path with that session's cookies.
type Fetcher interface {
	FetchJSON(ctx context.Context, pages []string, apiPath string) ([]byte, error)
}

// ChromeFetcher runs a fresh headless Chrome per call.
type ChromeFetcher struct {
	headless   bool
	execPath   string
	userAgent  string
	pageWait   time.Duration
	navTimeout time.Duration
}

// NewChromeFetcher creates a fetcher. execPath may be empty to use the
// Chrome found on PATH.
func NewChromeFetcher(headless bool, execPath, userAgent string, pageWait, timeout time.Duration) *ChromeFetcher {
	return &ChromeFetcher{
		headless:   headless,
		execPath:   execPath,
		userAgent:  userAgent,
		pageWait:   pageWait,
		navTimeout: timeout,
	}
}

func (f *ChromeFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", f.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(f.userAgent),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}
	return opts
}

// FetchJSON visits pages in order, waiting for each body, then evaluates
// an in-page fetch of apiPath and returns the response text.
func (f *ChromeFetcher) FetchJSON(ctx context.Context, pages []string, apiPath string) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if f.navTimeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, f.navTimeout*time.Duration(len(pages)+1))
		defer cancel()
	}

	actions := make([]chromedp.Action, 0, 3*len(pages)+1)
	for _, page := range pages {
		actions = append(actions,
			chromedp.Navigate(page),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(f.pageWait),
		)
	}

	var body string
	actions = append(actions, chromedp.Evaluate(fetchScript(apiPath), &body,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("browser session: %w", err)
	}
	return []byte(body), nil
}

// fetchScript reads apiPath with the page's cookies and resolves to the
// body text, rejecting non-2xx responses.
func fetchScript(apiPath string) string {
	return fmt.Sprintf(`fetch(%q, {credentials: "include", headers: {"Accept": "application/json, text/plain, */*"}})
  .then(r => r.ok ? r.text() : Promise.reject(new Error("HTTP " + r.status)))`, apiPath)
}
