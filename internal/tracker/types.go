package tracker

// CatalogEntry is a show/forum, the top-level searchable unit in a
// tracker's taxonomy. IDs are assigned by the site and stable.
type CatalogEntry struct {
	ID              int64
	Title           string
	AlternateTitles []string
	URL             string
}

// Item is a topic/episode release under a catalog entry. The title is
// stored raw and parsed on every resolution.
type Item struct {
	ID          int64
	EntryID     int64
	Title       string
	DownloadRef string
}

// ItemList is the result of extracting one item-list page. TotalPages
// is taken from the pagination block of the first page; zero or one
// means the listing is not paginated.
type ItemList struct {
	Items      []Item
	TotalPages int
}

// ResolvedItem is one release matching a search query.
type ResolvedItem struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	SeriesID string `json:"seriesId"`
}
