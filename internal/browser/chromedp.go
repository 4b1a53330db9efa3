// internal/browser/chromedp.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/steltix/newsgrab/internal/detect"
)

// Default session parameters. The command timeout bounds any single CDP
// round trip; the readiness wait is shorter because a page that has not
// reached interactive by then usually never will, and a partial snapshot
// still feeds the extractor.
const (
	DefaultCommandTimeout    = 15 * time.Second
	DefaultDOMReadyTimeout   = 10 * time.Second
	DefaultInteractionBudget = 2 * time.Second

	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 900
)

// Config tunes the Chrome session.
type Config struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Headless  bool   `yaml:"headless" json:"headless"`
	NoSandbox bool   `yaml:"no_sandbox" json:"no_sandbox"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	Lang      string `yaml:"lang" json:"lang"`

	WindowWidth  int `yaml:"window_width" json:"window_width"`
	WindowHeight int `yaml:"window_height" json:"window_height"`

	CommandTimeout    time.Duration `yaml:"command_timeout" json:"command_timeout"`
	DOMReadyTimeout   time.Duration `yaml:"dom_ready_timeout" json:"dom_ready_timeout"`
	InteractionBudget time.Duration `yaml:"interaction_budget" json:"interaction_budget"`
}

func (c *Config) applyDefaults() {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.DOMReadyTimeout == 0 {
		c.DOMReadyTimeout = DefaultDOMReadyTimeout
	}
	if c.InteractionBudget == 0 {
		c.InteractionBudget = DefaultInteractionBudget
	}
	if c.WindowWidth == 0 {
		c.WindowWidth = DefaultWindowWidth
	}
	if c.WindowHeight == 0 {
		c.WindowHeight = DefaultWindowHeight
	}
	if c.Lang == "" {
		c.Lang = "en-US"
	}
}

// stealthScript patches the most commonly probed automation tells before
// any page script runs. Belt and braces next to the allocator flags: some
// Chrome builds ignore the blink feature flag.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3]});
window.chrome = window.chrome || { runtime: {} };
`

// dismissOverlayScript clicks the first visible consent/continue control,
// if any. One attempt only; a persistent overlay is left for the parser to
// route around.
const dismissOverlayScript = `
(() => {
  const words = ['accept', 'agree', 'consent', 'continue', 'got it'];
  const candidates = document.querySelectorAll('button, [role="button"], a');
  for (const el of candidates) {
    const text = (el.textContent || '').trim().toLowerCase();
    if (text && words.some(w => text.includes(w)) && el.offsetParent !== null) {
      el.click();
      return true;
    }
  }
  return false;
})()
`

// chromeDriver is the production Driver backed by a chromedp session.
type chromeDriver struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// newChromeDriver launches Chrome. Anti-automation flags are tried first;
// if that launch fails (some Chrome builds reject unknown switches) the
// session falls back to a plain launch and relies on the injected script
// patches alone.
func newChromeDriver(cfg Config) (Driver, error) {
	d, err := launchChrome(cfg, true)
	if err == nil {
		return d, nil
	}
	return launchChrome(cfg, false)
}

func launchChrome(cfg Config, stealthFlags bool) (*chromeDriver, error) {
	opts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("lang", cfg.Lang),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if stealthFlags {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
			chromedp.Flag("disable-infobars", true),
		)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := &chromeDriver{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}

	launchCtx, cancel := context.WithTimeout(browserCtx, cfg.CommandTimeout)
	defer cancel()
	err := chromedp.Run(launchCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("chrome launch: %w", err)
	}
	return d, nil
}

// Render navigates and snapshots the rendered DOM. A page that still looks
// like a bot-interstitial after rendering comes back as *detect.BlockError.
func (d *chromeDriver) Render(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithTimeout(d.browserCtx, d.cfg.CommandTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	// Readiness is best-effort: snapshot whatever is there if the page
	// never settles.
	waitCtx, waitCancel := context.WithTimeout(runCtx, d.cfg.DOMReadyTimeout)
	_ = chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	waitCancel()

	d.humanize(runCtx)

	var dismissed bool
	_ = chromedp.Run(runCtx, chromedp.Evaluate(dismissOverlayScript, &dismissed))
	if dismissed {
		_ = chromedp.Run(runCtx, chromedp.Sleep(300*time.Millisecond))
	}

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", url, err)
	}

	// Stop any straggling subresource loads so the session is quiet for
	// the next caller.
	_ = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.StopLoading().Do(ctx)
	}))

	if detect.LooksLikeChallenge(html) {
		return "", &detect.BlockError{
			URL:     url,
			Class:   detect.BotBlocked,
			Variant: detect.VariantCloudflare,
		}
	}
	return html, nil
}

// humanize spends a bounded slice of time looking less like a batch
// client: a couple of partial scrolls with short pauses.
func (d *chromeDriver) humanize(ctx context.Context) {
	budget, cancel := context.WithTimeout(ctx, d.cfg.InteractionBudget)
	defer cancel()

	_ = chromedp.Run(budget,
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 0.4)`, nil),
		chromedp.Sleep(250*time.Millisecond),
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 0.5)`, nil),
		chromedp.Sleep(250*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
	)
}

func (d *chromeDriver) Close() error {
	d.browserCancel()
	d.allocCancel()
	return nil
}

// SessionFault reports whether an error indicates the session itself is
// unusable (dead renderer, lost devtools connection) rather than a
// page-level failure. Poison the pool on these; retrying on the same
// session just fails again.
func SessionFault(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"websocket",
		"context canceled",
		"chrome failed to start",
		"target closed",
		"session closed",
		"connection refused",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
