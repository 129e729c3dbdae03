// Package flaresolverr passes Cloudflare challenges through a
// FlareSolverr instance and injects the solved clearance cookies into
// outgoing requests.
package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// ClearanceCookieName is the cookie Cloudflare issues once the
	// challenge has been passed.
	ClearanceCookieName = "cf_clearance"

	defaultTimeout = 80 * time.Second
)

// Cookie is one browser cookie from a solved challenge.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// Solution is the browser state FlareSolverr ends up with after
// driving the page.
type Solution struct {
	URL       string   `json:"url"`
	Status    int      `json:"status"`
	Response  string   `json:"response"`
	Cookies   []Cookie `json:"cookies"`
	UserAgent string   `json:"userAgent"`
}

type solveRequest struct {
	Cmd               string `json:"cmd"`
	URL               string `json:"url"`
	ReturnOnlyCookies bool   `json:"returnOnlyCookies"`
}

type solveResponse struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Solution *Solution `json:"solution"`
}

// Error is a failed challenge reported by FlareSolverr itself.
type Error struct {
	Status  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("flaresolverr: challenge failed: %s (%s)", e.Status, e.Message)
}

// Client talks to one FlareSolverr endpoint.
type Client struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewClient constructs a client for the given endpoint, typically
// "http://localhost:8191/v1". A zero timeout gets the 80s default
// FlareSolverr itself operates with.
func NewClient(endpoint string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "flaresolverr").Logger(),
	}
}

// Solve asks FlareSolverr to pass the challenge on the given URL and
// returns the resulting browser state. Only cookies and the user agent
// are requested, not the page body.
func (c *Client) Solve(ctx context.Context, pageURL string) (*Solution, error) {
	payload, err := json.Marshal(solveRequest{
		Cmd:               "request.get",
		URL:               pageURL,
		ReturnOnlyCookies: true,
	})
	if err != nil {
		return nil, fmt.Errorf("flaresolverr: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("flaresolverr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info().Str("url", pageURL).Msg("Solving challenge")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flaresolverr: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flaresolverr: unexpected status %d", resp.StatusCode)
	}

	var result solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("flaresolverr: decode response: %w", err)
	}

	c.logger.Info().
		Str("url", pageURL).
		Str("status", result.Status).
		Str("message", result.Message).
		Msg("Challenge completed")

	if result.Status != "ok" || result.Solution == nil {
		return nil, &Error{Status: result.Status, Message: result.Message}
	}
	return result.Solution, nil
}
