package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/pricehawk/internal/extract"
)

var ErrClosed = errors.New("browser manager is closed")

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	Settle            time.Duration
	SelectorTimeout   time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
	TimezoneID        string
	ProxyServer       string
	ExtraHeaders      map[string]string
	MaxSessions       int
	// BlockSelectors mark anti-bot interstitials; a match fails navigation.
	BlockSelectors []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		Settle:            3 * time.Second,
		SelectorTimeout:   2 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		Locale:            "en-US",
		TimezoneID:        "America/New_York",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"DNT":             "1",
		},
		MaxSessions: 4,
		BlockSelectors: []string{
			"#captchacharacters",
			"form[action*='Captcha']",
			"form[action*='validateCaptcha']",
		},
	}
}

// withDefaults fills zero values from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.Settle < 0 {
		o.Settle = 0
	}
	if o.SelectorTimeout <= 0 {
		o.SelectorTimeout = d.SelectorTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.ViewportWidth <= 0 || o.ViewportHeight <= 0 {
		o.ViewportWidth, o.ViewportHeight = d.ViewportWidth, d.ViewportHeight
	}
	if o.Locale == "" {
		o.Locale = d.Locale
	}
	if o.TimezoneID == "" {
		o.TimezoneID = d.TimezoneID
	}
	if o.ExtraHeaders == nil {
		o.ExtraHeaders = d.ExtraHeaders
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = d.MaxSessions
	}
	if o.BlockSelectors == nil {
		o.BlockSelectors = d.BlockSelectors
	}
	return o
}

// Manager owns the playwright driver and one Chromium process for the life of
// the service. Every extraction gets its own isolated browser context.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	slots   chan struct{}
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(opts *Options, logger *slog.Logger) (*Manager, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(o.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}
	if o.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: o.ProxyServer}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Manager{
		pw:      pw,
		browser: b,
		opts:    o,
		slots:   make(chan struct{}, o.MaxSessions),
		logger:  logger.With("component", "browser"),
	}, nil
}

// WithSession opens an isolated session, navigates to url, waits for the page
// to settle and hands the page to fn. The session is closed exactly once
// before WithSession returns, whatever happens in between. settle <= 0 uses
// the configured default.
func (m *Manager) WithSession(ctx context.Context, url string, settle time.Duration, fn func(extract.Page) error) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.slots }()

	session, err := m.open()
	if err != nil {
		return err
	}

	if settle <= 0 {
		settle = m.opts.Settle
	}
	return runSession(ctx, session, url, settle, m.logger, fn)
}

func (m *Manager) open() (*Session, error) {
	bctx, err := m.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(m.opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(m.opts.Locale),
		TimezoneId:        playwright.String(m.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  m.opts.ViewportWidth,
			Height: m.opts.ViewportHeight,
		},
		ExtraHttpHeaders: m.opts.ExtraHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.opts.NavigationTimeout.Milliseconds()))

	p := &playwrightPage{page: page, timeout: float64(m.opts.SelectorTimeout.Milliseconds())}
	return newSession(p, m.navigator(page), func() error { return page.Close() }, func() error { return bctx.Close() }), nil
}

func (m *Manager) navigator(page playwright.Page) func(string) error {
	return func(url string) error {
		resp, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(m.opts.NavigationTimeout.Milliseconds())),
		})
		if err != nil {
			return err
		}
		if resp != nil && resp.Status() >= 400 {
			m.logger.Warn("page returned error status", "url", url, "status", resp.Status())
		}

		for _, selector := range m.opts.BlockSelectors {
			if count, _ := page.Locator(selector).Count(); count > 0 {
				m.logger.Warn("detected captcha/block", "url", url, "selector", selector)
				return ErrBlocked
			}
		}
		return nil
	}
}

// Healthy reports whether the browser process is still connected.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed && m.browser != nil && m.browser.IsConnected()
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	return errors.Join(errs...)
}
