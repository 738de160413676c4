package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"citybike-sync/utils"
)

// Options configures a freshly launched browser.
type Options struct {
	Headless          bool
	ChromeBin         string
	Width             int64
	Height            int64
	SlowMo            time.Duration
	NavigationTimeout time.Duration
}

// Session owns one browser process and its single tab.
type Session struct {
	page        *ChromePage
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	once     sync.Once
	closeErr error
}

// Launch starts a new browser and attaches to its first tab.
func Launch(ctx context.Context, opts Options, logger *utils.Logger) (*Session, error) {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1024, 768
	}

	chromeBin := findChromeBinary(opts.ChromeBin)
	logger.Info("[browser] Using browser binary: %s (headless: %t)", chromeBin, opts.Headless)

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(int(opts.Width), int(opts.Height)),
	)
	if chromeBin != "" {
		execOpts = append(execOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, execOpts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	err := chromedp.Run(tabCtx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		chromedp.EmulateViewport(opts.Width, opts.Height),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		page:        NewChromePage(tabCtx, opts.SlowMo, opts.NavigationTimeout),
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Page returns the session's tab.
func (s *Session) Page() Page {
	return s.page
}

// Close shuts the browser down. Only the first call has any effect.
func (s *Session) Close() error {
	s.once.Do(func() {
		err := chromedp.Cancel(s.tabCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}

// findChromeBinary locates Chrome/Chromium binary. An explicit path wins.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
