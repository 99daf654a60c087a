package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultBrowserTimeout = 30 * time.Second

	// maxPageLinks caps how many anchor texts one fetch collects.
	maxPageLinks = 50
)

// PageSnapshot is what one browser fetch extracts from a page.
type PageSnapshot struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Links []string `json:"links"`
}

// PageFetcher drives a browser against one URL. Browser is the
// chromedp-backed production implementation.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*PageSnapshot, error)
}

// Browser fetches pages through headless Chrome.
type Browser struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewBrowser returns a headless-Chrome fetcher. timeoutS <= 0 falls
// back to 30 seconds.
func NewBrowser(timeoutS int, logger *slog.Logger) *Browser {
	timeout := time.Duration(timeoutS) * time.Second
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	return &Browser{timeout: timeout, logger: logger.With("component", "browser")}
}

// FetchPage navigates to url and extracts the document title and the
// first anchor texts. Each call runs its own Chrome instance; nothing
// persists between fetches.
func (b *Browser) FetchPage(ctx context.Context, url string) (*PageSnapshot, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	b.logger.Debug("fetching page", "url", url)

	var title string
	var links []string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(fmt.Sprintf(`
			(function() {
				var out = [];
				var anchors = document.querySelectorAll('a');
				for (var i = 0; i < anchors.length && out.length < %d; i++) {
					var text = (anchors[i].innerText || anchors[i].textContent || '').trim();
					if (text) out.push(text);
				}
				return out;
			})()
		`, maxPageLinks), &links),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return &PageSnapshot{URL: url, Title: title, Links: links}, nil
}
