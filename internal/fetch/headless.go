package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// ChromedpRenderer renders a page's fully loaded DOM to HTML using a
// headless Chrome instance, for pages whose static HTML carries little
// text (client-side rendered documentation sites).
type ChromedpRenderer struct {
	timeout time.Duration
	execOpt []chromedp.ExecAllocatorOption
}

// NewChromedpRenderer builds a renderer with the given navigation timeout.
func NewChromedpRenderer(timeout time.Duration) *ChromedpRenderer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	return &ChromedpRenderer{timeout: timeout, execOpt: opts}
}

// Render navigates to url, waits for the DOM to settle, and returns the
// rendered document's outer HTML.
func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.execOpt...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, r.timeout)
	defer cancelRun()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", weberrors.Transient("headless render failed", err)
	}
	return html, nil
}
