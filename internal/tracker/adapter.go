package tracker

import (
	"net/http"
	"net/url"
)

// SiteAdapter captures everything site-specific about one tracker: how
// to log in, where the catalog and item listings live, and how to pull
// structured records out of the fetched pages. The engine itself is
// site-agnostic and drives the adapter.
type SiteAdapter interface {
	// Name is the canonical lowercase tracker name ("baibako").
	Name() string

	// BaseURL is the site root without a trailing slash.
	BaseURL() string

	// MatchesHost reports whether the URL belongs to the site. Session
	// cookies are only ever injected into matching requests.
	MatchesHost(u *url.URL) bool

	// CookieDomain is the domain the authentication cookies are scoped to.
	CookieDomain() string

	// LoginRequest builds the login request for the given credentials.
	LoginRequest(username, password string) (*http.Request, error)

	// CheckLogin inspects the login response and the cookies the site
	// issued. It returns nil on success, a challenge error when the site
	// explicitly demands one, and an authentication error otherwise.
	CheckLogin(resp *http.Response, body []byte, cookies map[string]string) error

	// CatalogURL is the page listing every show/forum.
	CatalogURL() string

	// ExtractCatalog pulls catalog entries out of the fetched catalog page.
	ExtractCatalog(page *Page) ([]CatalogEntry, error)

	// ItemsURL is the item listing for one catalog entry. Pages are
	// numbered from 1; adapters for unpaginated sites ignore the page.
	ItemsURL(entry *CatalogEntry, pageNum int) string

	// ExtractItems pulls item records (and the total page count, when
	// the site paginates) out of one item-list page.
	ExtractItems(page *Page) (*ItemList, error)

	// ParseTitle parses a raw topic title into its structured form.
	// A title that does not match the site's shape is a parse error,
	// which callers skip rather than fail on.
	ParseTitle(raw string) (*ParsedTitle, error)

	// ParseTopicID extracts the topic id from a direct topic URL, used
	// by URL rewriting. ok is false when the URL has the wrong shape.
	ParseTopicID(rawURL string) (id int64, ok bool)

	// DownloadURL renders the final download URL for an item.
	DownloadURL(item *Item) string

	// DirectDownloadURL maps a topic id straight to a download URL for
	// sites whose download link is derivable without fetching the topic
	// page. ok is false when a fetch-and-extract pass is required.
	DirectDownloadURL(topicID int64) (downloadURL string, ok bool)

	// ExtractDownloadRef pulls the single download link (or magnet URI)
	// out of a fetched topic page. The returned reference may be
	// relative; the engine resolves it against the page's final URL.
	ExtractDownloadRef(page *Page) (string, error)
}

// CatalogPager is implemented by adapters whose catalog is an
// offset-paginated endpoint rather than a single page. The synchronizer
// keeps requesting pages until one comes back short of the page size.
type CatalogPager interface {
	// CatalogPageRequest builds the request for the catalog page
	// starting at the given entry offset.
	CatalogPageRequest(offset int) (*http.Request, error)

	// CatalogPageSize is the number of entries a full page carries.
	CatalogPageSize() int
}
