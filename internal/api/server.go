// Package api exposes the resolution engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/dbutrimov/trackersync/internal/sites"
	"github.com/dbutrimov/trackersync/internal/tracker"
)

// Server handles HTTP requests for the trackersync API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger

	clients     map[string]*tracker.Client
	registry    *sites.Registry
	store       *tracker.Store
	credentials *tracker.CredentialStore
	sessions    *tracker.SessionManager

	startTime time.Time
}

// NewServer creates a new API server over the configured site clients.
func NewServer(clients map[string]*tracker.Client, registry *sites.Registry, store *tracker.Store, credentials *tracker.CredentialStore, sessions *tracker.SessionManager, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		logger:      logger,
		clients:     clients,
		registry:    registry,
		store:       store,
		credentials: credentials,
		sessions:    sessions,
		startTime:   time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)
	api.GET("/sites", s.listSites)
	api.GET("/search", s.search)
	api.POST("/rewrite", s.rewrite)
	api.POST("/cache/reset", s.resetCache)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"startTime": s.startTime.Format(time.RFC3339),
		"sites":     len(s.clients),
	})
}

type siteInfo struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Entries    int    `json:"entries"`
}

func (s *Server) listSites(c echo.Context) error {
	ctx := c.Request().Context()

	infos := make([]siteInfo, 0, len(s.registry.Names()))
	for _, name := range s.registry.Names() {
		_, configured := s.clients[name]

		entries, err := s.store.ListCatalogEntries(ctx, name)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		infos = append(infos, siteInfo{
			Name:       name,
			Configured: configured,
			Entries:    len(entries),
		})
	}
	return c.JSON(http.StatusOK, infos)
}

// search resolves one or more "<title> s05e14" queries on a site.
func (s *Server) search(c echo.Context) error {
	site := c.QueryParam("site")
	if site == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "site is required"})
	}
	client, exists := s.clients[site]
	if !exists {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown or unconfigured site"})
	}

	queries := c.QueryParams()["query"]
	if len(queries) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "at least one query is required"})
	}

	results, err := client.Search(c.Request().Context(), queries)
	if err != nil {
		return s.trackerError(c, err)
	}
	return c.JSON(http.StatusOK, results)
}

type rewriteRequest struct {
	URL string `json:"url"`
}

type rewriteResponse struct {
	URL string `json:"url"`
}

// rewrite maps a topic page URL to its download URL on whichever
// configured site the URL belongs to.
func (s *Server) rewrite(c echo.Context) error {
	var req rewriteRequest
	if err := c.Bind(&req); err != nil || req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	var client *tracker.Client
	for _, candidate := range s.sortedClients() {
		if candidate.MatchesURL(req.URL) {
			client = candidate
			break
		}
	}
	if client == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "URL does not belong to a configured site"})
	}

	downloadURL, err := client.Rewrite(c.Request().Context(), req.URL)
	if err != nil {
		return s.trackerError(c, err)
	}
	return c.JSON(http.StatusOK, rewriteResponse{URL: downloadURL})
}

// resetCache drops cached catalog data, optionally for a single site
// and optionally including stored credentials.
func (s *Server) resetCache(c echo.Context) error {
	ctx := c.Request().Context()
	site := c.QueryParam("site")

	if site != "" {
		if _, exists := s.registry.Get(site); !exists {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown site"})
		}
	}

	if err := s.store.Reset(ctx, site); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if c.QueryParam("credentials") == "true" {
		if err := s.credentials.DeleteAll(ctx, site); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		s.sessions.Flush(site)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) sortedClients() []*tracker.Client {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	clients := make([]*tracker.Client, 0, len(names))
	for _, name := range names {
		clients = append(clients, s.clients[name])
	}
	return clients
}

// trackerError maps categorized tracker errors to HTTP statuses.
func (s *Server) trackerError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	var trackerErr *tracker.Error
	if errors.As(err, &trackerErr) {
		switch trackerErr.Code {
		case tracker.ErrCodeConfiguration, tracker.ErrCodeParse:
			status = http.StatusBadRequest
		case tracker.ErrCodeAuthentication:
			status = http.StatusUnauthorized
		case tracker.ErrCodeChallenge:
			status = http.StatusServiceUnavailable
		case tracker.ErrCodeNotFound:
			status = http.StatusNotFound
		case tracker.ErrCodeNetwork, tracker.ErrCodeExtraction:
			status = http.StatusBadGateway
		}
	}

	return c.JSON(status, map[string]string{"error": err.Error()})
}
