package tracker

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var fakeTopicIDRe = regexp.MustCompile(`topic\?id=(\d+)`)

// fakeAdapter is a minimal in-memory site adapter pointed at an
// httptest server. Extraction ignores page bodies and serves canned
// data, except ExtractDownloadRef which treats the body as the link.
type fakeAdapter struct {
	name    string
	baseURL string

	challenge bool // CheckLogin reports an explicit challenge
	denyLogin bool // CheckLogin rejects every attempt

	catalog []CatalogEntry
	items   map[int64]map[int][]Item // entry id -> page -> items
	pages   int

	direct bool // download URL derivable from the topic id
}

func newFakeAdapter(baseURL string) *fakeAdapter {
	return &fakeAdapter{
		name:    "fakesite",
		baseURL: baseURL,
		items:   make(map[int64]map[int][]Item),
	}
}

func (f *fakeAdapter) Name() string         { return f.name }
func (f *fakeAdapter) BaseURL() string      { return f.baseURL }
func (f *fakeAdapter) CookieDomain() string { return "" }

func (f *fakeAdapter) MatchesHost(u *url.URL) bool {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return false
	}
	return u.Host == base.Host
}

func (f *fakeAdapter) LoginRequest(username, password string) (*http.Request, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, f.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func (f *fakeAdapter) CheckLogin(_ *http.Response, _ []byte, cookies map[string]string) error {
	if f.challenge {
		return NewChallengeError(f.name, "captcha required")
	}
	if f.denyLogin {
		return NewAuthError(f.name, "invalid credentials")
	}
	if _, exists := cookies["uid"]; !exists {
		return NewAuthError(f.name, "no session cookie issued")
	}
	return nil
}

func (f *fakeAdapter) CatalogURL() string {
	return f.baseURL + "/catalog"
}

func (f *fakeAdapter) ExtractCatalog(_ *Page) ([]CatalogEntry, error) {
	return f.catalog, nil
}

func (f *fakeAdapter) ItemsURL(entry *CatalogEntry, pageNum int) string {
	return f.baseURL + "/items?entry=" + strconv.FormatInt(entry.ID, 10) + "&page=" + strconv.Itoa(pageNum)
}

func (f *fakeAdapter) ExtractItems(page *Page) (*ItemList, error) {
	query := page.URL.Query()
	entryID, _ := strconv.ParseInt(query.Get("entry"), 10, 64)
	pageNum, _ := strconv.Atoi(query.Get("page"))
	if pageNum < 1 {
		pageNum = 1
	}
	return &ItemList{
		Items:      f.items[entryID][pageNum],
		TotalPages: f.pages,
	}, nil
}

func (f *fakeAdapter) ParseTitle(raw string) (*ParsedTitle, error) {
	return testTitlePattern.Parse(raw)
}

func (f *fakeAdapter) ParseTopicID(rawURL string) (int64, bool) {
	match := fakeTopicIDRe.FindStringSubmatch(rawURL)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	return id, err == nil
}

func (f *fakeAdapter) DownloadURL(item *Item) string {
	return f.baseURL + "/dl?id=" + strconv.FormatInt(item.ID, 10)
}

func (f *fakeAdapter) DirectDownloadURL(topicID int64) (string, bool) {
	if !f.direct {
		return "", false
	}
	return f.baseURL + "/dl?id=" + strconv.FormatInt(topicID, 10), true
}

func (f *fakeAdapter) ExtractDownloadRef(page *Page) (string, error) {
	ref := strings.TrimSpace(string(page.Body))
	if ref == "" {
		return "", NewExtractionError(f.name, page.URL.String(), "download link not found")
	}
	return ref, nil
}

// pagedFakeAdapter serves its catalog two entries at a time through
// offset-addressed requests.
type pagedFakeAdapter struct {
	*fakeAdapter
	total int
}

func (p *pagedFakeAdapter) CatalogPageRequest(offset int) (*http.Request, error) {
	return http.NewRequest(http.MethodGet, p.baseURL+"/catalog?o="+strconv.Itoa(offset), nil)
}

func (p *pagedFakeAdapter) CatalogPageSize() int { return 2 }

func (p *pagedFakeAdapter) ExtractCatalog(page *Page) ([]CatalogEntry, error) {
	offset, _ := strconv.Atoi(page.URL.Query().Get("o"))
	var entries []CatalogEntry
	for i := offset; i < p.total && i < offset+p.CatalogPageSize(); i++ {
		id := int64(i + 1)
		entries = append(entries, CatalogEntry{ID: id, Title: "Show " + strconv.FormatInt(id, 10), URL: "u"})
	}
	return entries, nil
}
