package tracker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/dbutrimov/trackersync/internal/tracker/ratelimit"
)

const (
	loginAttempts   = 5
	loginRetryDelay = 3 * time.Second

	// Sites keep sessions alive much longer, but a short horizon keeps
	// re-authentication cheap relative to debugging a half-dead cookie.
	credentialLifetime = 24 * time.Hour
)

// Session is an authenticated cookie set for one site. Cookies are
// injected only into requests whose host belongs to the site. A session
// expires together with its stored credential.
type Session struct {
	adapter   SiteAdapter
	cookies   map[string]string
	expiresAt time.Time
}

// Site returns the tracker name the session belongs to.
func (s *Session) Site() string {
	return s.adapter.Name()
}

// Apply attaches the session cookies to the request when its host
// matches the session's site. Foreign hosts are left untouched.
func (s *Session) Apply(req *http.Request) {
	if !s.adapter.MatchesHost(req.URL) {
		return
	}
	for name, value := range s.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// SessionManager hands out sessions per (site, username), reusing
// stored credentials before authenticating over the network. The
// registry is guarded by a mutex so concurrent resolutions against one
// account trigger a single login.
type SessionManager struct {
	store     *CredentialStore
	limiter   *ratelimit.Limiter
	transport http.RoundTripper
	logger    zerolog.Logger

	attempts uint
	delay    time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager constructs a session manager. transport may be nil,
// in which case the default transport is used for login requests.
func NewSessionManager(store *CredentialStore, limiter *ratelimit.Limiter, transport http.RoundTripper, logger zerolog.Logger) *SessionManager {
	return &SessionManager{
		store:     store,
		limiter:   limiter,
		transport: transport,
		logger:    logger.With().Str("component", "session-manager").Logger(),
		attempts:  loginAttempts,
		delay:     loginRetryDelay,
		sessions:  make(map[string]*Session),
	}
}

// Get returns a session for the account, in order of preference: the
// in-memory registry, the credential store, a fresh login. Transient
// login failures are retried with a fixed delay; challenge errors are
// surfaced immediately.
func (m *SessionManager) Get(ctx context.Context, adapter SiteAdapter, username, password string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := adapter.Name() + "/" + username
	if sess, exists := m.sessions[key]; exists {
		if time.Now().Before(sess.expiresAt) {
			return sess, nil
		}
		// An expired session is a registry miss even mid-process.
		delete(m.sessions, key)
	}

	cred, found, err := m.store.Find(ctx, adapter.Name(), username)
	if err != nil {
		return nil, err
	}
	if found {
		sess := &Session{adapter: adapter, cookies: cred.Cookies, expiresAt: cred.ExpiresAt}
		m.sessions[key] = sess
		return sess, nil
	}

	cookies, err := m.login(ctx, adapter, username, password)
	if err != nil {
		return nil, err
	}

	cred = &Credential{
		Username:  username,
		Cookies:   cookies,
		ExpiresAt: time.Now().Add(credentialLifetime),
	}
	if err := m.store.Save(ctx, adapter.Name(), cred); err != nil {
		return nil, err
	}

	sess := &Session{adapter: adapter, cookies: cookies, expiresAt: cred.ExpiresAt}
	m.sessions[key] = sess
	return sess, nil
}

// Invalidate drops the in-memory and stored credentials for the
// account, forcing the next Get to log in again.
func (m *SessionManager) Invalidate(ctx context.Context, adapter SiteAdapter, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, adapter.Name()+"/"+username)
	return m.store.Delete(ctx, adapter.Name(), username)
}

// Flush drops every in-memory session, optionally scoped to one site.
// Stored credentials are handled by the caller.
func (m *SessionManager) Flush(site string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.sessions {
		if site == "" || m.sessions[key].Site() == site {
			delete(m.sessions, key)
		}
	}
}

func (m *SessionManager) login(ctx context.Context, adapter SiteAdapter, username, password string) (map[string]string, error) {
	m.logger.Info().
		Str("site", adapter.Name()).
		Str("username", username).
		Msg("Authenticating")

	var cookies map[string]string
	err := retry.Do(
		func() error {
			var err error
			cookies, err = m.loginOnce(ctx, adapter, username, password)
			return err
		},
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

// loginOnce performs a single login round-trip with a fresh cookie jar,
// so stale cookies from a failed attempt never leak into the next one.
func (m *SessionManager) loginOnce(ctx context.Context, adapter SiteAdapter, username, password string) (map[string]string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Transport: m.transport, Jar: jar}

	req, err := adapter.LoginRequest(username, password)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, NewNetworkError(adapter.Name(), req.URL.String(), fmt.Sprintf("rate limit wait: %v", err))
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, NewAuthError(adapter.Name(), fmt.Sprintf("login request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewAuthError(adapter.Name(), fmt.Sprintf("read login response: %v", err))
	}

	cookies := jarCookies(jar, adapter)
	if err := adapter.CheckLogin(resp, body, cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

// jarCookies flattens the cookies the site issued during login,
// filtered to the adapter's cookie domain.
func jarCookies(jar http.CookieJar, adapter SiteAdapter) map[string]string {
	base, err := url.Parse(adapter.BaseURL())
	if err != nil {
		return nil
	}

	cookies := make(map[string]string)
	for _, c := range jar.Cookies(base) {
		cookies[c.Name] = c.Value
	}
	return cookies
}
