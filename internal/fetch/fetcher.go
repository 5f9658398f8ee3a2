// Package fetch retrieves a single web page and reduces it to plain text.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/resilience"
)

// DefaultUserAgent mimics a desktop browser. Many small business sites
// reject obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const (
	defaultTimeout = 8 * time.Second
	maxBodyBytes   = 1 << 20
)

// Page is the text content of a fetched page.
type Page struct {
	URL      string
	FinalURL string
	Title    string
	Text     string
}

// Fetcher fetches one page. The second return is false for any failure;
// callers never see an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxChars int) (Page, bool)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the first-attempt timeout. The retry uses twice this.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// Client is the net/http-backed Fetcher.
type Client struct {
	http      *http.Client
	gate      resilience.Gate
	timeout   time.Duration
	userAgent string
}

// New creates a Client that spaces its calls through gate.
func New(gate resilience.Gate, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		gate:      gate,
		timeout:   defaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var errNotPage = eris.New("fetch: not a usable page")

// Fetch retrieves targetURL and returns at most maxChars characters of
// visible text. A timeout is retried exactly once with double the timeout;
// every other failure returns false immediately.
func (c *Client) Fetch(ctx context.Context, targetURL string, maxChars int) (Page, bool) {
	log := zap.L().With(zap.String("url", targetURL))

	timeouts := []time.Duration{c.timeout, 2 * c.timeout}
	for attempt, timeout := range timeouts {
		if err := c.gate.BeforeCall(ctx, resilience.ServiceFetch); err != nil {
			return Page{}, false
		}

		start := time.Now()
		page, err := c.fetchOnce(ctx, targetURL, timeout, maxChars)
		if err == nil {
			log.Debug("fetch: page fetched",
				zap.Int("chars", len(page.Text)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return page, true
		}

		if ctx.Err() != nil || !resilience.IsTimeout(err) {
			log.Debug("fetch: page unavailable", zap.Error(err))
			return Page{}, false
		}
		if attempt < len(timeouts)-1 {
			log.Debug("fetch: timed out, retrying", zap.Duration("next_timeout", timeouts[attempt+1]))
		}
	}

	log.Debug("fetch: timed out twice")
	return Page{}, false
}

func (c *Client) fetchOnce(ctx context.Context, targetURL string, timeout time.Duration, maxChars int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return Page{}, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, eris.Wrap(err, "fetch: request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, eris.Wrapf(errNotPage, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Page{}, eris.Wrap(err, "fetch: read body")
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType, body) {
		return Page{}, eris.Wrapf(errNotPage, "content type %q", contentType)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return Page{}, eris.Wrapf(errNotPage, "blocked (%s)", kind)
	}

	title, text, err := extractText(decodeBody(body, contentType))
	if err != nil {
		return Page{}, err
	}
	if text == "" {
		return Page{}, eris.Wrap(errNotPage, "empty text")
	}

	return Page{
		URL:      targetURL,
		FinalURL: resp.Request.URL.String(),
		Title:    title,
		Text:     truncateRunes(text, maxChars),
	}, nil
}

func isHTML(contentType string, body []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
