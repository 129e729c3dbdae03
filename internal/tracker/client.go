package tracker

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/rs/zerolog"
)

// Client is the per-site engine facade: it resolves search queries to
// download URLs and rewrites topic URLs, driving the site adapter for
// everything site-specific.
type Client struct {
	adapter  SiteAdapter
	store    *Store
	fetcher  *Fetcher
	sessions *SessionManager
	sync     *Synchronizer
	logger   zerolog.Logger

	username string
	password string
}

// NewClient constructs a client for one site account.
func NewClient(adapter SiteAdapter, store *Store, fetcher *Fetcher, sessions *SessionManager, sync *Synchronizer, username, password string, logger zerolog.Logger) *Client {
	return &Client{
		adapter:  adapter,
		store:    store,
		fetcher:  fetcher,
		sessions: sessions,
		sync:     sync,
		logger:   logger.With().Str("component", "client").Str("site", adapter.Name()).Logger(),
		username: username,
		password: password,
	}
}

// Name returns the tracker name the client serves.
func (c *Client) Name() string {
	return c.adapter.Name()
}

// MatchesURL reports whether a URL belongs to the client's site.
func (c *Client) MatchesURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.adapter.MatchesHost(u)
}

// Search resolves free-text queries of the shape "<title> s05e14" (or
// "<title> 5x14") against the cached catalog. Queries that match
// neither shape are skipped without any network traffic; a query whose
// show is not in the catalog simply contributes no results. Results are
// deduplicated across queries and ordered by ascending item id.
func (c *Client) Search(ctx context.Context, queries []string) ([]ResolvedItem, error) {
	parsed := make([]*SearchQuery, 0, len(queries))
	for _, raw := range queries {
		query, ok := ParseSearchQuery(raw)
		if !ok {
			c.logger.Debug().Str("query", raw).Msg("Skipping unparsable query")
			continue
		}
		parsed = append(parsed, query)
	}
	if len(parsed) == 0 {
		return []ResolvedItem{}, nil
	}

	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.sync.EnsureCatalogFresh(ctx, c.adapter, sess); err != nil {
		return nil, err
	}

	type match struct {
		itemID int64
		result ResolvedItem
	}
	var (
		matches []match
		seen    = make(map[int64]struct{})
	)

	for _, query := range parsed {
		entry, found, err := c.store.FindEntryByTitle(ctx, c.adapter.Name(), query.Title)
		if err != nil {
			return nil, err
		}
		if !found {
			c.logger.Debug().Stringer("query", query).Msg("Show not in catalog")
			continue
		}

		if err := c.sync.EnsureItemsFresh(ctx, c.adapter, sess, entry); err != nil {
			return nil, err
		}
		items, err := c.store.ListItems(ctx, c.adapter.Name(), entry.ID)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			title, err := c.adapter.ParseTitle(item.Title)
			if err != nil {
				c.logger.Debug().
					Err(err).
					Int64("item", item.ID).
					Msg("Skipping unparsable item title")
				continue
			}
			if title.Season != query.Season || !title.ContainsEpisode(query.Episode) {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}

			episodeID := title.EpisodeID()
			matches = append(matches, match{
				itemID: item.ID,
				result: ResolvedItem{
					Title:    fmt.Sprintf("%s / %s / %s", query.Title, episodeID, title.Quality),
					URL:      c.adapter.DownloadURL(&item),
					SeriesID: episodeID,
				},
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].itemID < matches[j].itemID })

	results := make([]ResolvedItem, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.result)
	}
	return results, nil
}

// Rewrite maps a topic page URL to its download URL. Sites with a
// derivable download location answer without any network traffic;
// otherwise the topic page is fetched and the single download link (or
// magnet URI) extracted from it.
func (c *Client) Rewrite(ctx context.Context, topicURL string) (string, error) {
	topicID, ok := c.adapter.ParseTopicID(topicURL)
	if !ok {
		return "", NewParseError(c.adapter.Name(),
			fmt.Sprintf("URL %q is not a topic page", topicURL))
	}

	if direct, ok := c.adapter.DirectDownloadURL(topicID); ok {
		return direct, nil
	}

	sess, err := c.session(ctx)
	if err != nil {
		return "", err
	}

	page, err := c.fetcher.Get(ctx, topicURL, sess)
	if err != nil {
		return "", err
	}

	ref, err := c.adapter.ExtractDownloadRef(page)
	if err != nil {
		return "", err
	}

	resolved, err := page.Resolve(ref)
	if err != nil {
		return "", NewExtractionError(c.adapter.Name(), page.URL.String(),
			fmt.Sprintf("invalid download reference: %v", err))
	}
	return resolved, nil
}

// RefreshCatalog forces a staleness check of the site's catalog, used
// by the background scheduler.
func (c *Client) RefreshCatalog(ctx context.Context) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	return c.sync.EnsureCatalogFresh(ctx, c.adapter, sess)
}

func (c *Client) session(ctx context.Context) (*Session, error) {
	if c.username == "" || c.password == "" {
		return nil, NewConfigError(c.adapter.Name(), "username and password are required")
	}
	return c.sessions.Get(ctx, c.adapter, c.username, c.password)
}
