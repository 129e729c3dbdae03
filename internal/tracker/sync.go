package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Synchronizer keeps the catalog and item caches within their TTLs.
// Refresh is wholesale: a successful fetch replaces the entire
// snapshot, a failed fetch leaves the previous snapshot serving.
type Synchronizer struct {
	store   *Store
	fetcher *Fetcher
	logger  zerolog.Logger

	catalogTTL time.Duration
	itemsTTL   time.Duration
}

// NewSynchronizer constructs a synchronizer with the given TTLs.
func NewSynchronizer(store *Store, fetcher *Fetcher, catalogTTL, itemsTTL time.Duration, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		store:      store,
		fetcher:    fetcher,
		logger:     logger.With().Str("component", "synchronizer").Logger(),
		catalogTTL: catalogTTL,
		itemsTTL:   itemsTTL,
	}
}

// EnsureCatalogFresh refreshes the tracker's catalog snapshot when it
// is missing or stale. A refresh failure over an existing snapshot is
// logged and swallowed so resolution can keep serving stale data; with
// no snapshot at all the error is returned.
func (s *Synchronizer) EnsureCatalogFresh(ctx context.Context, adapter SiteAdapter, sess *Session) error {
	syncedAt, exists, err := s.store.CatalogSyncedAt(ctx, adapter.Name())
	if err != nil {
		return err
	}
	if exists && !IsStale(syncedAt, time.Now(), s.catalogTTL) {
		return nil
	}

	s.logger.Info().
		Str("site", adapter.Name()).
		Bool("initial", !exists).
		Msg("Refreshing catalog")

	entries, err := s.fetchCatalog(ctx, adapter, sess)
	if err != nil {
		if exists {
			s.logger.Warn().
				Err(err).
				Str("site", adapter.Name()).
				Msg("Catalog refresh failed, serving stale snapshot")
			return nil
		}
		return err
	}

	if err := s.store.ReplaceCatalog(ctx, adapter.Name(), entries); err != nil {
		return err
	}

	s.logger.Info().
		Str("site", adapter.Name()).
		Int("entries", len(entries)).
		Msg("Catalog refreshed")
	return nil
}

// EnsureItemsFresh refreshes one entry's item snapshot when it is
// missing or stale, with the same stale-fallback behavior as the
// catalog path.
func (s *Synchronizer) EnsureItemsFresh(ctx context.Context, adapter SiteAdapter, sess *Session, entry *CatalogEntry) error {
	syncedAt, exists, err := s.store.ItemsSyncedAt(ctx, adapter.Name(), entry.ID)
	if err != nil {
		return err
	}
	if exists && !IsStale(syncedAt, time.Now(), s.itemsTTL) {
		return nil
	}

	s.logger.Info().
		Str("site", adapter.Name()).
		Int64("entry", entry.ID).
		Bool("initial", !exists).
		Msg("Refreshing items")

	items, err := s.fetchItems(ctx, adapter, sess, entry)
	if err != nil {
		if exists {
			s.logger.Warn().
				Err(err).
				Str("site", adapter.Name()).
				Int64("entry", entry.ID).
				Msg("Item refresh failed, serving stale snapshot")
			return nil
		}
		return err
	}

	if err := s.store.ReplaceItems(ctx, adapter.Name(), entry.ID, items); err != nil {
		return err
	}

	s.logger.Info().
		Str("site", adapter.Name()).
		Int64("entry", entry.ID).
		Int("items", len(items)).
		Msg("Items refreshed")
	return nil
}

func (s *Synchronizer) fetchCatalog(ctx context.Context, adapter SiteAdapter, sess *Session) ([]CatalogEntry, error) {
	pager, paged := adapter.(CatalogPager)
	if !paged {
		page, err := s.fetcher.Get(ctx, adapter.CatalogURL(), sess)
		if err != nil {
			return nil, err
		}
		return adapter.ExtractCatalog(page)
	}

	// A short page marks the end of a paginated catalog.
	var entries []CatalogEntry
	for offset := 0; ; {
		req, err := pager.CatalogPageRequest(offset)
		if err != nil {
			return nil, err
		}
		page, err := s.fetcher.Do(req.WithContext(ctx), sess)
		if err != nil {
			return nil, err
		}
		batch, err := adapter.ExtractCatalog(page)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		if len(batch) < pager.CatalogPageSize() {
			return entries, nil
		}
		offset += len(batch)
	}
}

// fetchItems walks the entry's listing sequentially. The first page
// reports the total page count; later pages are fetched one by one so
// the rate limiter paces the whole walk.
func (s *Synchronizer) fetchItems(ctx context.Context, adapter SiteAdapter, sess *Session, entry *CatalogEntry) ([]Item, error) {
	page, err := s.fetcher.Get(ctx, adapter.ItemsURL(entry, 1), sess)
	if err != nil {
		return nil, err
	}
	list, err := adapter.ExtractItems(page)
	if err != nil {
		return nil, err
	}

	items := list.Items
	for pageNum := 2; pageNum <= list.TotalPages; pageNum++ {
		page, err := s.fetcher.Get(ctx, adapter.ItemsURL(entry, pageNum), sess)
		if err != nil {
			return nil, err
		}
		next, err := adapter.ExtractItems(page)
		if err != nil {
			return nil, err
		}
		items = append(items, next.Items...)
	}

	for i := range items {
		items[i].EntryID = entry.ID
	}
	return items, nil
}
