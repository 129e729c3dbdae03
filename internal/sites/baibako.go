package sites

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

const (
	baibakoName         = "baibako"
	baibakoBaseURL      = "http://baibako.tv"
	baibakoCookieDomain = "baibako.tv"

	// DefaultBaibakoTab lists every release regardless of quality.
	DefaultBaibakoTab = "all"
)

var (
	baibakoForumIDRe = regexp.MustCompile(`(?i)serial\.php\?id=(\d+)`)
	baibakoTopicIDRe = regexp.MustCompile(`(?i)details\.php\?id=(\d+)`)
	baibakoTableRe   = regexp.MustCompile(`(?i)^table.*`)

	baibakoTitle = tracker.NewTitlePattern(baibakoName,
		`(?i)^(?P<title>[^/]*?)\s*/\s*(?P<title_orig>[^/]*?)\s*/\s*s(?P<season>\d+)(?:e(?P<episode_begin>\d+)(?:-(?P<episode_end>\d+))?)?\s*/\s*(?P<quality>[^/]*?)\s*(?:(?:/.*)|$)`)
)

// Baibako adapts the BaibaKo tracker. Its catalog lives on a single
// search page, item listings fit on one page per show, and the download
// URL is derivable straight from the topic id.
type Baibako struct {
	tab string
}

// NewBaibako constructs the adapter. An empty tab means "all".
func NewBaibako(tab string) *Baibako {
	if tab == "" {
		tab = DefaultBaibakoTab
	}
	return &Baibako{tab: tab}
}

func (b *Baibako) Name() string         { return baibakoName }
func (b *Baibako) BaseURL() string      { return baibakoBaseURL }
func (b *Baibako) CookieDomain() string { return baibakoCookieDomain }

func (b *Baibako) MatchesHost(u *url.URL) bool {
	return hostMatches(u, baibakoCookieDomain)
}

func (b *Baibako) LoginRequest(username, password string) (*http.Request, error) {
	return loginForm(baibakoBaseURL+"/takelogin.php", url.Values{
		"username": {username},
		"password": {password},
	})
}

// CheckLogin accepts the login only when the site issued its "uid"
// cookie; anything else means the credentials were rejected.
func (b *Baibako) CheckLogin(_ *http.Response, _ []byte, cookies map[string]string) error {
	if _, exists := cookies["uid"]; exists {
		return nil
	}
	return tracker.NewAuthError(baibakoName,
		"unable to obtain session cookies, check username and password")
}

func (b *Baibako) CatalogURL() string {
	return baibakoBaseURL + "/serials.php"
}

func (b *Baibako) ExtractCatalog(page *tracker.Page) ([]tracker.CatalogEntry, error) {
	doc, err := document(baibakoName, page)
	if err != nil {
		return nil, err
	}

	container := doc.Find("div.row.serialsearch")
	if container.Length() == 0 {
		return nil, tracker.NewExtractionError(baibakoName, page.URL.String(),
			"serial list container not found")
	}

	var (
		entries []tracker.CatalogEntry
		seen    = make(map[int64]struct{})
	)
	container.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := baibakoForumIDRe.FindStringSubmatch(href)
		if match == nil {
			return
		}
		id, _ := strconv.ParseInt(match[1], 10, 64)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		entries = append(entries, tracker.CatalogEntry{
			ID:    id,
			Title: strings.TrimSpace(link.Text()),
			URL:   fmt.Sprintf("%s/serial.php?id=%d", baibakoBaseURL, id),
		})
	})
	return entries, nil
}

func (b *Baibako) ItemsURL(entry *tracker.CatalogEntry, _ int) string {
	return fmt.Sprintf("%s/serial.php?id=%d&tab=%s", baibakoBaseURL, entry.ID, b.tab)
}

func (b *Baibako) ExtractItems(page *tracker.Page) (*tracker.ItemList, error) {
	doc, err := document(baibakoName, page)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return baibakoTableRe.MatchString(class)
	})
	if table.Length() == 0 {
		return nil, tracker.NewExtractionError(baibakoName, page.URL.String(),
			"topic table not found")
	}

	var (
		items []tracker.Item
		seen  = make(map[int64]struct{})
	)
	table.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := baibakoTopicIDRe.FindStringSubmatch(href)
		if match == nil {
			return
		}
		id, _ := strconv.ParseInt(match[1], 10, 64)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		items = append(items, tracker.Item{
			ID:    id,
			Title: strings.TrimSpace(link.Text()),
		})
	})
	return &tracker.ItemList{Items: items}, nil
}

func (b *Baibako) ParseTitle(raw string) (*tracker.ParsedTitle, error) {
	return baibakoTitle.Parse(raw)
}

func (b *Baibako) ParseTopicID(rawURL string) (int64, bool) {
	match := baibakoTopicIDRe.FindStringSubmatch(rawURL)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	return id, err == nil
}

func (b *Baibako) DownloadURL(item *tracker.Item) string {
	return fmt.Sprintf("%s/download.php?id=%d", baibakoBaseURL, item.ID)
}

// DirectDownloadURL short-circuits rewriting: the download endpoint
// takes the topic id itself, so no page fetch is needed.
func (b *Baibako) DirectDownloadURL(topicID int64) (string, bool) {
	return fmt.Sprintf("%s/download.php?id=%d", baibakoBaseURL, topicID), true
}

func (b *Baibako) ExtractDownloadRef(page *tracker.Page) (string, error) {
	doc, err := document(baibakoName, page)
	if err != nil {
		return "", err
	}

	var ref string
	doc.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if strings.Contains(href, "download.php?id=") {
			ref = href
			return false
		}
		return true
	})
	if ref == "" {
		return "", tracker.NewExtractionError(baibakoName, page.URL.String(),
			"download link not found")
	}
	return ref, nil
}
