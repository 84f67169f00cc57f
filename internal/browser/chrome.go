package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/wolfman30/spa-availability/internal/engine"
	"github.com/wolfman30/spa-availability/internal/poll"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// DefaultUserAgent is a desktop Chrome UA; the booking widget serves a
// reduced layout to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const idleSignature = `(function(){ return document.readyState + ":" + performance.getEntriesByType("resource").length; })()`

// ChromeConfig controls the locally launched browser.
type ChromeConfig struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
	Timeout   time.Duration
}

// Chrome is an engine.Engine backed by a local Chrome via the DevTools
// protocol.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *logging.Logger
	closeOnce   sync.Once
}

var _ engine.Engine = (*Chrome)(nil)

// NewChrome launches Chrome and opens a tab.
func NewChrome(cfg ChromeConfig, logger *logging.Logger) (*Chrome, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = 1280, 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, engine.Unusable(fmt.Errorf("browser: launch chrome: %w", err))
	}

	logger.Info("chrome launched", "headless", cfg.Headless, "timeout", cfg.Timeout.String())
	return &Chrome{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     cfg.Timeout,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by the engine timeout and by ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && c.ctx.Err() != nil {
		return engine.Unusable(err)
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) QueryAll(ctx context.Context, xpath string) ([]engine.Element, error) {
	var nodes []*cdp.Node
	if err := c.run(ctx, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("browser: query: %w", err)
	}
	out := make([]engine.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{chrome: c, node: n})
	}
	return out, nil
}

func (c *Chrome) QueryOne(ctx context.Context, xpath string) (engine.Element, error) {
	els, err := c.QueryAll(ctx, xpath)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// Evaluate serializes the value in the page so undefined becomes null.
func (c *Chrome) Evaluate(ctx context.Context, expression string, out any) error {
	if out == nil {
		if err := c.run(ctx, chromedp.Evaluate(expression, nil)); err != nil {
			return fmt.Errorf("browser: evaluate: %w", err)
		}
		return nil
	}

	var raw string
	wrapped := fmt.Sprintf("JSON.stringify((function(){ return (%s); })() ?? null)", expression)
	if err := c.run(ctx, chromedp.Evaluate(wrapped, &raw)); err != nil {
		return fmt.Errorf("browser: evaluate: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("browser: decode evaluate result: %w", err)
	}
	return nil
}

// WaitForNetworkIdle treats the page as idle once the document is complete
// and the resource count has held steady for three samples.
func (c *Chrome) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) bool {
	const interval = 100 * time.Millisecond
	attempts := int(timeout / interval)
	if attempts < 1 {
		attempts = 1
	}

	last, stable := "", 0
	res, err := poll.Until(ctx, func(ctx context.Context) (bool, error) {
		var sig string
		if err := c.run(ctx, chromedp.Evaluate(idleSignature, &sig)); err != nil {
			return false, err
		}
		if !strings.HasPrefix(sig, "complete:") {
			stable = 0
			return false, nil
		}
		if sig == last {
			stable++
		} else {
			last, stable = sig, 0
		}
		return stable >= 2, nil
	}, interval, attempts)
	return err == nil && res == poll.Found
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := c.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: outer html: %w", err)
	}
	return markup, nil
}

func (c *Chrome) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (c *Chrome) DumpHTML(ctx context.Context, path string) error {
	markup, err := c.HTML(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(markup), 0o644)
}

// Close terminates the tab and the browser process. Safe to call twice.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.logger.Info("closing browser")
		c.cancel()
		c.allocCancel()
	})
	return nil
}

type chromeElement struct {
	chrome *Chrome
	node   *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Click(ctx context.Context) error {
	if err := e.chrome.run(ctx, chromedp.MouseClickNode(e.node)); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.chrome.run(ctx, chromedp.JavascriptAttribute(e.ids(), "innerText", &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return text, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := e.chrome.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, fmt.Errorf("browser: attribute %s: %w", name, err)
	}
	return value, ok, nil
}

func (e *chromeElement) TagName() string {
	return strings.ToLower(e.node.NodeName)
}
