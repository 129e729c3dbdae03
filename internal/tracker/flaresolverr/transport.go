package flaresolverr

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	challengeAttempts = 3
	challengeDelay    = 3 * time.Second
)

// Transport is an http.RoundTripper that clears Cloudflare challenges
// before requests go out. The first request to a protected domain is
// preceded by a FlareSolverr round; the solved clearance cookies and
// user agent are then injected into every request for that domain.
// Domains that turn out not to issue a clearance cookie are
// whitelisted so they are never challenged again.
type Transport struct {
	base   http.RoundTripper
	client *Client
	logger zerolog.Logger

	mu        sync.Mutex
	cookies   map[string][]Cookie // by registrable domain
	userAgent string
	whitelist map[string]struct{}
}

// NewTransport wraps a base round tripper with challenge clearing. A
// nil base uses the default transport.
func NewTransport(base http.RoundTripper, client *Client, logger zerolog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		client:    client,
		logger:    logger.With().Str("component", "flaresolverr-transport").Logger(),
		cookies:   make(map[string][]Cookie),
		whitelist: make(map[string]struct{}),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ensureClearance(req); err != nil {
		return nil, err
	}

	domain := registrableDomain(req.URL)

	t.mu.Lock()
	cookies := t.cookies[domain]
	userAgent := t.userAgent
	t.mu.Unlock()

	if len(cookies) > 0 || userAgent != "" {
		req = req.Clone(req.Context())
		for _, c := range cookies {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
	}

	return t.base.RoundTrip(req)
}

// ensureClearance challenges the request's domain unless it is
// whitelisted or already cleared. Failed challenges are retried a few
// times with a short pause; the last error wins.
func (t *Transport) ensureClearance(req *http.Request) error {
	domain := registrableDomain(req.URL)

	t.mu.Lock()
	if _, skip := t.whitelist[domain]; skip {
		t.mu.Unlock()
		return nil
	}
	if hasClearance(t.cookies[domain]) {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	challengeURL := req.URL.Scheme + "://" + req.URL.Host

	var lastErr error
	for attempt := 0; attempt < challengeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(challengeDelay):
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}

		solution, err := t.client.Solve(req.Context(), challengeURL)
		if err != nil {
			lastErr = err
			t.logger.Warn().Err(err).Str("domain", domain).Msg("Challenge attempt failed")
			continue
		}

		t.mu.Lock()
		t.cookies[domain] = solution.Cookies
		if solution.UserAgent != "" {
			t.userAgent = solution.UserAgent
		}
		if !hasClearance(solution.Cookies) {
			// Not actually behind Cloudflare.
			t.whitelist[domain] = struct{}{}
			t.logger.Info().Str("domain", domain).Msg("No clearance cookie issued, whitelisting domain")
		}
		t.mu.Unlock()
		return nil
	}
	return lastErr
}

func hasClearance(cookies []Cookie) bool {
	for _, c := range cookies {
		if strings.EqualFold(c.Name, ClearanceCookieName) {
			return true
		}
	}
	return false
}

// registrableDomain reduces a host to its last two labels, the scope
// Cloudflare issues clearance cookies for.
func registrableDomain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, ".")
}
