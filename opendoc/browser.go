package opendoc

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig configures a BrowserFetcher.
type BrowserConfig struct {
	// RemoteURL is a DevTools websocket URL. Empty launches a local Chrome.
	RemoteURL string
	// Headful shows the browser window when launching locally.
	Headful bool
	// CookieDomain scopes the session cookies. Default ".qq.com".
	CookieDomain string
	// Timeout bounds one fetch, navigation included. Default 60s.
	Timeout time.Duration
	Cookies []*http.Cookie
	Logger  *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.CookieDomain == "" {
		c.CookieDomain = ".qq.com"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserFetcher loads the document page in a stealth Chrome tab and
// captures the opendoc response the page requests for itself. It serves
// documents whose endpoint rejects plain HTTP clients.
type BrowserFetcher struct {
	cfg BrowserConfig
}

// NewBrowserFetcher returns a fetcher driving Chrome through DevTools.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	cfg.defaults()
	return &BrowserFetcher{cfg: cfg}
}

type capturedBody struct {
	mimeType string
	body     []byte
	err      error
}

// Fetch opens docURL and returns the validated opendoc response.
func (f *BrowserFetcher) Fetch(ctx context.Context, docURL string) (*Response, error) {
	ref, err := ParseDocURL(docURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	b, cleanup, err := f.connect()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("opendoc: browser: create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if len(f.cfg.Cookies) > 0 {
		if err := page.SetCookies(cookieParams(f.cfg.Cookies, f.cfg.CookieDomain)); err != nil {
			return nil, fmt.Errorf("opendoc: browser: set cookies: %w", err)
		}
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("opendoc: browser: enable network: %w", err)
	}

	captured := make(chan capturedBody, 1)
	wait := f.watch(page, captured)
	go wait()

	start := time.Now()
	if err := page.Navigate(docURL); err != nil {
		return nil, fmt.Errorf("opendoc: browser: navigate: %w", err)
	}

	var got capturedBody
	select {
	case got = <-captured:
	case <-ctx.Done():
		return nil, fmt.Errorf("opendoc: browser: no opendoc response: %w", ctx.Err())
	}
	if got.err != nil {
		return nil, got.err
	}

	data, err := Decode(got.body, got.mimeType)
	if err != nil {
		return nil, err
	}
	f.cfg.Logger.DebugContext(ctx, "opendoc captured",
		"doc_id", ref.ID, "mime", got.mimeType, "bytes", len(got.body),
		"duration_ms", time.Since(start).Milliseconds())
	return &Response{Ref: ref, ContentType: got.mimeType, Data: data}, nil
}

// watch pairs the opendoc ResponseReceived event with its LoadingFinished
// event and reads the body once loading is done.
func (f *BrowserFetcher) watch(page *rod.Page, out chan<- capturedBody) func() {
	pending := map[proto.NetworkRequestID]string{}
	return page.EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if e.Response != nil && strings.Contains(e.Response.URL, opendocPath) {
				pending[e.RequestID] = e.Response.MIMEType
			}
		},
		func(e *proto.NetworkLoadingFinished) bool {
			mime, ok := pending[e.RequestID]
			if !ok {
				return false
			}
			res, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
			if err != nil {
				out <- capturedBody{err: fmt.Errorf("opendoc: browser: response body: %w", err)}
				return true
			}
			body := []byte(res.Body)
			if res.Base64Encoded {
				if body, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
					out <- capturedBody{err: fmt.Errorf("opendoc: browser: response body: %w", err)}
					return true
				}
			}
			out <- capturedBody{mimeType: mime, body: body}
			return true
		},
	)
}

func (f *BrowserFetcher) connect() (*rod.Browser, func(), error) {
	log := f.cfg.Logger
	wsURL := f.cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(!f.cfg.Headful).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("opendoc: browser: launch: %w", err)
		}
		wsURL = u
		log.Info("opendoc: launched local chrome", "url", wsURL)
	} else {
		log.Info("opendoc: connecting to remote browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("opendoc: browser: connect: %w", err)
	}
	// A remote browser outlives the fetch; only a launched one is closed.
	cleanup := func() {
		if l == nil {
			return
		}
		if err := b.Close(); err != nil {
			log.Warn("opendoc: browser close", "error", err)
		}
		l.Cleanup()
	}
	return b, cleanup, nil
}

func cookieParams(cookies []*http.Cookie, domain string) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		d := c.Domain
		if d == "" {
			d = domain
		}
		p := c.Path
		if p == "" {
			p = "/"
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: d,
			Path:   p,
		})
	}
	return params
}
