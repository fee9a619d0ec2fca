package opendoc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/hazyhaar/ultradoc/horosafe"
)

const (
	// DefaultBaseURL is the host serving the opendoc endpoint.
	DefaultBaseURL = "https://doc.weixin.qq.com"
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	opendocPath = "/dop-api/opendoc"
)

// Fetcher retrieves the opendoc response of a document.
type Fetcher interface {
	Fetch(ctx context.Context, docURL string) (*Response, error)
}

// Response is a validated opendoc response.
type Response struct {
	Ref         DocRef
	ContentType string
	Data        map[string]any
}

// JSON returns the merged response as a JSON envelope.
func (r *Response) JSON() ([]byte, error) {
	b, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("opendoc: encode envelope: %w", err)
	}
	return b, nil
}

// Decode parses an opendoc body: EJS framing when the content type or the
// body says so, JSON otherwise. The result is validated.
func Decode(body []byte, contentType string) (map[string]any, error) {
	var data map[string]any
	if strings.Contains(contentType, "ejs-data") || IsEJS(body) {
		m, err := ParseEJS(body)
		if err != nil {
			return nil, err
		}
		data = m
	} else {
		v, err := oj.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidResponse, err)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidResponse)
		}
		data = m
	}
	if err := ValidateResponse(data); err != nil {
		return nil, err
	}
	return data, nil
}

// HTTPFetcher calls the opendoc endpoint directly with session cookies.
type HTTPFetcher struct {
	client       *http.Client
	baseURL      string
	userAgent    string
	cookies      []*http.Cookie
	maxBody      int64
	allowPrivate bool
	logger       *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the default client. A client with its own jar
// receives cookies per request instead.
func WithHTTPClient(c *http.Client) Option { return func(f *HTTPFetcher) { f.client = c } }

// WithBaseURL points the fetcher at another host.
func WithBaseURL(u string) Option {
	return func(f *HTTPFetcher) { f.baseURL = strings.TrimRight(u, "/") }
}

func WithUserAgent(ua string) Option { return func(f *HTTPFetcher) { f.userAgent = ua } }

// WithCookies sets the session cookies sent with every request.
func WithCookies(c []*http.Cookie) Option { return func(f *HTTPFetcher) { f.cookies = c } }

func WithMaxBody(n int64) Option { return func(f *HTTPFetcher) { f.maxBody = n } }

func WithTimeout(d time.Duration) Option { return func(f *HTTPFetcher) { f.client.Timeout = d } }

// WithPrivateHosts allows base URLs on loopback or private networks.
func WithPrivateHosts(allow bool) Option { return func(f *HTTPFetcher) { f.allowPrivate = allow } }

func WithLogger(l *slog.Logger) Option { return func(f *HTTPFetcher) { f.logger = l } }

// NewHTTPFetcher returns a fetcher for the opendoc endpoint.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: 60 * time.Second},
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		maxBody:   horosafe.MaxResponseBody,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if len(f.cookies) > 0 && f.client.Jar == nil {
		jar, err := NewJar(f.baseURL, f.cookies)
		if err != nil {
			f.logger.Warn("opendoc: cookie jar unavailable, sending cookies per request", "error", err)
			return f
		}
		c := *f.client
		c.Jar = jar
		f.client = &c
		f.cookies = nil
	}
	return f
}

// Fetch downloads and validates the opendoc response for docURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, docURL string) (*Response, error) {
	ref, err := ParseDocURL(docURL)
	if err != nil {
		return nil, err
	}
	endpoint := f.baseURL + opendocPath + "?" + ref.Query().Encode()
	if !f.allowPrivate {
		if err := horosafe.ValidateURL(endpoint); err != nil {
			return nil, fmt.Errorf("opendoc: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("opendoc: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Referer", docURL)
	req.Header.Set("Accept", "text/ejs-data, application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	for _, c := range f.cookies {
		req.AddCookie(c)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opendoc: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("opendoc: status %d from %s", resp.StatusCode, opendocPath)
	}
	body, err := horosafe.LimitedReadAll(resp.Body, f.maxBody)
	if err != nil {
		return nil, fmt.Errorf("opendoc: read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	data, err := Decode(body, contentType)
	if err != nil {
		return nil, err
	}
	f.logger.DebugContext(ctx, "opendoc fetched",
		"doc_id", ref.ID, "content_type", contentType, "bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	return &Response{Ref: ref, ContentType: contentType, Data: data}, nil
}
