package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutrimov/trackersync/internal/sites"
	"github.com/dbutrimov/trackersync/internal/testutil"
	"github.com/dbutrimov/trackersync/internal/tracker"
)

func newTestServer(t *testing.T, configured ...string) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	t.Cleanup(func() { tdb.Close() })

	logger := testutil.NewTestLogger(t)
	store := tracker.NewStore(tdb.Conn)
	credentials := tracker.NewCredentialStore(tdb.Conn)
	sessions := tracker.NewSessionManager(credentials, nil, nil, logger)
	fetcher := tracker.NewFetcher(nil, nil, logger)
	sync := tracker.NewSynchronizer(store, fetcher, 0, 0, logger)
	registry := sites.NewRegistry(sites.Builtin(sites.Options{})...)

	clients := make(map[string]*tracker.Client)
	for _, name := range configured {
		adapter, exists := registry.Get(name)
		if !exists {
			t.Fatalf("unknown site %q", name)
		}
		clients[name] = tracker.NewClient(adapter, store, fetcher, sessions, sync, "user", "pass", logger)
	}

	return NewServer(clients, registry, store, credentials, sessions, logger)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestListSites(t *testing.T) {
	s := newTestServer(t, "baibako")

	rec := doRequest(s, http.MethodGet, "/api/v1/sites", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []siteInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 4)
	for _, info := range infos {
		assert.Equal(t, info.Name == "baibako", info.Configured, "site %s", info.Name)
		assert.Zero(t, info.Entries, "site %s", info.Name)
	}
}

func TestSearchValidation(t *testing.T) {
	s := newTestServer(t, "baibako")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing site", "/api/v1/search?query=Fargo+2x01", http.StatusBadRequest},
		{"unconfigured site", "/api/v1/search?site=newstudio&query=Fargo+2x01", http.StatusNotFound},
		{"unknown site", "/api/v1/search?site=nosuch&query=Fargo+2x01", http.StatusNotFound},
		{"missing query", "/api/v1/search?site=baibako", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestSearchSkipsUnparsableQueries(t *testing.T) {
	s := newTestServer(t, "baibako")

	// Queries without an episode marker resolve to an empty result set
	// without touching the site.
	rec := doRequest(s, http.MethodGet, "/api/v1/search?site=baibako&query=Fargo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var results []tracker.ResolvedItem
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestRewrite(t *testing.T) {
	s := newTestServer(t, "baibako")

	// BaibaKo download URLs derive from the topic id, so this round trip
	// needs no network at all.
	rec := doRequest(s, http.MethodPost, "/api/v1/rewrite",
		`{"url": "http://baibako.tv/details.php?id=197417"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp rewriteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "http://baibako.tv/download.php?id=197417", resp.URL)
}

func TestRewriteValidation(t *testing.T) {
	s := newTestServer(t, "baibako")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty body", `{}`, http.StatusBadRequest},
		{"foreign URL", `{"url": "http://unrelated.example/details.php?id=1"}`, http.StatusNotFound},
		{"non-topic URL", `{"url": "http://baibako.tv/serials.php"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/v1/rewrite", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestResetCache(t *testing.T) {
	s := newTestServer(t, "baibako")

	if rec := doRequest(s, http.MethodPost, "/api/v1/cache/reset?site=nosuch", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown site status = %d, want 404", rec.Code)
	}
	if rec := doRequest(s, http.MethodPost, "/api/v1/cache/reset?site=baibako&credentials=true", ""); rec.Code != http.StatusOK {
		t.Errorf("scoped reset status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(s, http.MethodPost, "/api/v1/cache/reset", ""); rec.Code != http.StatusOK {
		t.Errorf("full reset status = %d, want 200", rec.Code)
	}
}
