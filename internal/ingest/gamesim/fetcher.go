package gamesim

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// UserAgent for requests
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval to prevent rate limiting
	MinRequestInterval = 2 * time.Second

	pageTimeout = 30 * time.Second
)

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// limiter spaces consecutive requests at least interval apart.
type limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

func (l *limiter) wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastRequest.IsZero() {
		if wait := l.interval - time.Since(l.lastRequest); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	l.lastRequest = time.Now()
	return nil
}

// HTTPFetcher downloads pages with a plain GET. The predictions table is
// server-rendered, so this is the default.
type HTTPFetcher struct {
	client *http.Client
	limit  *limiter
}

// NewHTTPFetcher creates a fetcher. interval <= 0 uses MinRequestInterval.
func NewHTTPFetcher(client *http.Client, interval time.Duration) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: pageTimeout}
	}
	if interval <= 0 {
		interval = MinRequestInterval
	}
	return &HTTPFetcher{client: client, limit: &limiter{interval: interval}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limit.wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty HTML content returned")
	}
	return string(body), nil
}

// BrowserFetcher renders pages in headless Chrome, for when the table is
// filled in by script or the site rejects non-browser clients.
type BrowserFetcher struct {
	limit *limiter

	// Chromedp context for headless browser
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserFetcher prepares a headless Chrome allocator. Chrome itself is
// started lazily on the first Fetch.
func NewBrowserFetcher(interval time.Duration) *BrowserFetcher {
	if interval <= 0 {
		interval = MinRequestInterval
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserFetcher{
		limit:    &limiter{interval: interval},
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close releases resources
func (f *BrowserFetcher) Close() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limit.wait(ctx); err != nil {
		return "", err
	}

	browserCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, pageTimeout)
	defer cancel()

	// stop the browser tab if the caller gives up first
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table.table`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	if html == "" {
		return "", fmt.Errorf("empty HTML content returned")
	}
	return html, nil
}
