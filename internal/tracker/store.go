package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the persistent catalog and item cache shared by every site
// client. Rows are scoped by tracker name so sites never see each
// other's data.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// IsStale reports whether a snapshot synced at the given time has
// outlived its TTL. A snapshot exactly at the TTL boundary is still
// fresh; one second past it is not.
func IsStale(syncedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(syncedAt) > ttl
}

// CatalogSyncedAt returns the sync watermark of the catalog snapshot:
// the oldest updated_at across its rows. ok is false when no snapshot
// exists.
func (s *Store) CatalogSyncedAt(ctx context.Context, tracker string) (time.Time, bool, error) {
	return s.watermark(ctx,
		`SELECT MIN(updated_at) FROM catalog_entries WHERE tracker = ?`, tracker)
}

// ItemsSyncedAt returns the sync watermark of one entry's item
// snapshot. ok is false when the entry has never been synced.
func (s *Store) ItemsSyncedAt(ctx context.Context, tracker string, entryID int64) (time.Time, bool, error) {
	return s.watermark(ctx,
		`SELECT MIN(updated_at) FROM catalog_items WHERE tracker = ? AND entry_id = ?`, tracker, entryID)
}

func (s *Store) watermark(ctx context.Context, query string, args ...any) (time.Time, bool, error) {
	var syncedAt sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&syncedAt); err != nil {
		return time.Time{}, false, fmt.Errorf("query sync watermark: %w", err)
	}
	if !syncedAt.Valid {
		return time.Time{}, false, nil
	}
	return syncedAt.Time, true, nil
}

// ReplaceCatalog swaps in a full catalog snapshot for the tracker in
// one transaction. Every row carries the same timestamp, so the
// watermark of a healthy snapshot equals its sync time. On error the
// previous snapshot stays intact.
func (s *Store) ReplaceCatalog(ctx context.Context, tracker string, entries []CatalogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_entries WHERE tracker = ?`, tracker); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_entries (tracker, id, title, url, updated_at) VALUES (?, ?, ?, ?, ?)`,
			tracker, entry.ID, entry.Title, entry.URL, now); err != nil {
			return fmt.Errorf("insert catalog entry %d: %w", entry.ID, err)
		}
		for _, title := range entry.AlternateTitles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog_titles (tracker, entry_id, title) VALUES (?, ?, ?)`,
				tracker, entry.ID, title); err != nil {
				return fmt.Errorf("insert alternate title for entry %d: %w", entry.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog replace: %w", err)
	}
	return nil
}

// ReplaceItems swaps in a full item snapshot for one catalog entry.
// Items of other entries are untouched.
func (s *Store) ReplaceItems(ctx context.Context, tracker string, entryID int64, items []Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin items replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM catalog_items WHERE tracker = ? AND entry_id = ?`, tracker, entryID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	now := time.Now()
	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_items (tracker, entry_id, id, title, download_ref, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			tracker, entryID, item.ID, item.Title, item.DownloadRef, now); err != nil {
			return fmt.Errorf("insert item %d: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit items replace: %w", err)
	}
	return nil
}

// FindEntryByTitle looks up a catalog entry by exact title, checking
// primary titles first and alternate titles second. ok is false when
// no entry matches.
func (s *Store) FindEntryByTitle(ctx context.Context, tracker, title string) (*CatalogEntry, bool, error) {
	entry, found, err := s.scanEntry(ctx, `
		SELECT tracker, id, title, url
		FROM catalog_entries
		WHERE tracker = ? AND title = ?
		ORDER BY id
		LIMIT 1
	`, tracker, title)
	if err != nil || found {
		return entry, found, err
	}

	return s.scanEntry(ctx, `
		SELECT e.tracker, e.id, e.title, e.url
		FROM catalog_entries e
		JOIN catalog_titles t ON t.tracker = e.tracker AND t.entry_id = e.id
		WHERE e.tracker = ? AND t.title = ?
		ORDER BY e.id
		LIMIT 1
	`, tracker, title)
}

func (s *Store) scanEntry(ctx context.Context, query string, args ...any) (*CatalogEntry, bool, error) {
	var (
		entry      CatalogEntry
		rowTracker string
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&rowTracker, &entry.ID, &entry.Title, &entry.URL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find catalog entry: %w", err)
	}

	titles, err := s.alternateTitles(ctx, rowTracker, entry.ID)
	if err != nil {
		return nil, false, err
	}
	entry.AlternateTitles = titles
	return &entry, true, nil
}

func (s *Store) alternateTitles(ctx context.Context, tracker string, entryID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title FROM catalog_titles WHERE tracker = ? AND entry_id = ? ORDER BY title`,
		tracker, entryID)
	if err != nil {
		return nil, fmt.Errorf("query alternate titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan alternate title: %w", err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

// ListCatalogEntries returns the full catalog snapshot for a tracker,
// ordered by entry id.
func (s *Store) ListCatalogEntries(ctx context.Context, tracker string) ([]CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, url FROM catalog_entries WHERE tracker = ? ORDER BY id`, tracker)
	if err != nil {
		return nil, fmt.Errorf("query catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var entry CatalogEntry
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.URL); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		titles, err := s.alternateTitles(ctx, tracker, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].AlternateTitles = titles
	}
	return entries, nil
}

// ListItems returns one entry's item snapshot in ascending item id
// order, which keeps resolution results deterministic.
func (s *Store) ListItems(ctx context.Context, tracker string, entryID int64) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, title, download_ref
		FROM catalog_items
		WHERE tracker = ? AND entry_id = ?
		ORDER BY id
	`, tracker, entryID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.EntryID, &item.Title, &item.DownloadRef); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Reset drops cached catalog and item data, optionally scoped to one
// tracker. Alternate titles go with their entries via the FK cascade.
func (s *Store) Reset(ctx context.Context, tracker string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache reset: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM catalog_items`,
		`DELETE FROM catalog_entries`,
	}
	for _, stmt := range statements {
		args := []any{}
		if tracker != "" {
			stmt += ` WHERE tracker = ?`
			args = append(args, tracker)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("reset cache: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache reset: %w", err)
	}
	return nil
}
