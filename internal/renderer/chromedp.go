package renderer

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/JakeFAU/serp-harvester/internal/crawler"
)

// ChromedpConfig controls the chromedp-backed renderer.
type ChromedpConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
}

// Chromedp implements Renderer by spawning one headless Chrome per session.
type Chromedp struct {
	cfg ChromedpConfig
}

// NewChromedp builds the chromedp renderer.
func NewChromedp(cfg ChromedpConfig) *Chromedp {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	return &Chromedp{cfg: cfg}
}

// Launch starts a fresh browser process with the stealth script registered
// to run before any page script.
func (r *Chromedp) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(width, height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		ctx:        tabCtx,
		cancel:     func() { tabCancel(); allocCancel() },
		navTimeout: r.cfg.NavigationTimeout,
	}

	// Spawns the browser and registers the stealth script in one shot.
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, crawler.NewCrawlError(crawler.ErrKindLaunch, fmt.Errorf("launch browser: %w", err))
	}
	return s, nil
}

type chromedpSession struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindNavigation, fmt.Errorf("navigate %s: %w", url, err))
	}
	return nil
}

func (s *chromedpSession) WaitVisible(ctx context.Context, selector string) error {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindNavigation, fmt.Errorf("wait for %q: %w", selector, err))
	}
	return nil
}

func (s *chromedpSession) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("click %q: %w", selector, err))
	}
	return nil
}

func (s *chromedpSession) TypeText(ctx context.Context, text string, delay DelayFunc) error {
	for _, ch := range text {
		runCtx, cancel := s.bind(ctx, s.navTimeout)
		err := chromedp.Run(runCtx, chromedp.KeyEvent(string(ch)))
		cancel()
		if err != nil {
			return crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("type character: %w", err))
		}
		if delay == nil {
			continue
		}
		select {
		case <-time.After(delay()):
		case <-ctx.Done():
			return crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("typing canceled: %w", ctx.Err()))
		}
	}
	return nil
}

func (s *chromedpSession) PressEnter(ctx context.Context) error {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	// Submitting a search triggers a navigation; wait for the body of the
	// next document rather than returning mid-flight.
	err := chromedp.Run(runCtx,
		chromedp.KeyEvent(kb.Enter),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return crawler.NewCrawlError(crawler.ErrKindNavigation, fmt.Errorf("submit query: %w", err))
	}
	return nil
}

func (s *chromedpSession) Evaluate(ctx context.Context, script string, awaitPromise bool, out any) error {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()

	if out == nil {
		var discard any
		out = &discard
	}
	action := chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(awaitPromise)
	})
	if err := chromedp.Run(runCtx, action); err != nil {
		return crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("evaluate script: %w", err))
	}
	return nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	var png []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("capture screenshot: %w", err))
	}
	return png, nil
}

func (s *chromedpSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("read document html: %w", err))
	}
	return html, nil
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("read title: %w", err))
	}
	return title, nil
}

func (s *chromedpSession) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := s.bind(ctx, s.navTimeout)
	defer cancel()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", crawler.NewCrawlError(crawler.ErrKindScript, fmt.Errorf("read location: %w", err))
	}
	return loc, nil
}

func (s *chromedpSession) Close() {
	s.cancel()
}

// bind ties an operation to both the session's tab context and the caller's
// context so either cancellation interrupts the CDP call.
func (s *chromedpSession) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancelTimeout := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancelTimeout)
	return runCtx, func() {
		stop()
		cancelTimeout()
	}
}
