package tracker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/dbutrimov/trackersync/internal/tracker/ratelimit"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

const maxBodySize = 10 << 20 // 10 MiB

// Page is a fetched document. URL is the final URL after redirects, so
// relative references extracted from the body resolve correctly even
// when the site bounced the request to a mirror.
type Page struct {
	URL  *url.URL
	Body []byte
}

// Resolve resolves a possibly-relative reference against the page URL.
func (p *Page) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return p.URL.ResolveReference(parsed).String(), nil
}

// Fetcher retrieves tracker pages with rate limiting and session cookie
// injection. One fetcher is shared by every site client so the per-host
// spacing holds across them.
type Fetcher struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	logger    zerolog.Logger
	userAgent string
}

// NewFetcher constructs a fetcher over the given HTTP client.
func NewFetcher(client *http.Client, limiter *ratelimit.Limiter, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:    client,
		limiter:   limiter,
		logger:    logger.With().Str("component", "fetcher").Logger(),
		userAgent: defaultUserAgent,
	}
}

// Get fetches a page. Session cookies are attached only when the
// request host belongs to the session's site; a nil session fetches
// anonymously. Any status >= 400 is a network error.
func (f *Fetcher) Get(ctx context.Context, rawURL string, sess *Session) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, NewNetworkError("", rawURL, fmt.Sprintf("invalid URL: %v", err))
	}
	return f.Do(req, sess)
}

// Do executes a prepared request with the same limiting and cookie
// rules as Get. Used for login POSTs built by site adapters.
func (f *Fetcher) Do(req *http.Request, sess *Session) (*Page, error) {
	site := ""
	if sess != nil {
		site = sess.Site()
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, NewNetworkError(site, req.URL.String(), fmt.Sprintf("rate limit wait: %v", err))
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if sess != nil {
		sess.Apply(req)
	}

	f.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Fetching page")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(site, req.URL.String(), err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewNetworkError(site, req.URL.String(), fmt.Sprintf("read body: %v", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, NewNetworkError(site, resp.Request.URL.String(),
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return &Page{URL: resp.Request.URL, Body: body}, nil
}
