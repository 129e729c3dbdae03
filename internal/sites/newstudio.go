package sites

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

const (
	newstudioName         = "newstudio"
	newstudioBaseURL      = "http://newstudio.tv"
	newstudioCookieDomain = ".newstudio.tv"

	newstudioPageSize = 50
)

var (
	newstudioForumIDRe    = regexp.MustCompile(`(?i)f=(\d+)`)
	newstudioTopicIDRe    = regexp.MustCompile(`(?i)viewtopic\.php\?t=(\d+)`)
	newstudioDownloadIDRe = regexp.MustCompile(`(?i)download\.php\?id=(\d+)`)
	newstudioPaginationRe = regexp.MustCompile(`(?i)^pagination.*`)

	// Episode markers are localized: "(Сезон 5, Серия 14-16)". A title
	// without the episode part is a whole-season release.
	newstudioEpisodeRe = regexp.MustCompile(`(?i)\([Сс]езон\s+(\d+)(?:\W+[Сс]ерия\s+(\d+)(?:-(\d+))?)?\)`)
	newstudioQualityRe = regexp.MustCompile(`(?i)^.*\)\s*(.*?)(?:\s*\|.*)?$`)
)

// NewStudio adapts the NewStudio tracker: a phpBB-style forum with
// paginated item listings and download ids distinct from topic ids.
type NewStudio struct{}

// NewNewStudio constructs the adapter.
func NewNewStudio() *NewStudio {
	return &NewStudio{}
}

func (n *NewStudio) Name() string         { return newstudioName }
func (n *NewStudio) BaseURL() string      { return newstudioBaseURL }
func (n *NewStudio) CookieDomain() string { return newstudioCookieDomain }

func (n *NewStudio) MatchesHost(u *url.URL) bool {
	return hostMatches(u, newstudioCookieDomain)
}

func (n *NewStudio) LoginRequest(username, password string) (*http.Request, error) {
	return loginForm(newstudioBaseURL+"/login.php", url.Values{
		"login_username": {username},
		"login_password": {password},
		"autologin":      {"1"},
		"login":          {"1"},
	})
}

// CheckLogin accepts the login when the site issued any session
// cookies; a rejected login redirects back to the form cookie-less.
func (n *NewStudio) CheckLogin(_ *http.Response, _ []byte, cookies map[string]string) error {
	if len(cookies) > 0 {
		return nil
	}
	return tracker.NewAuthError(newstudioName,
		"unable to obtain session cookies, check username and password")
}

func (n *NewStudio) CatalogURL() string {
	return newstudioBaseURL + "/"
}

func (n *NewStudio) ExtractCatalog(page *tracker.Page) ([]tracker.CatalogEntry, error) {
	doc, err := document(newstudioName, page)
	if err != nil {
		return nil, err
	}

	accordion := doc.Find("div.accordion#serialist")
	if accordion.Length() == 0 {
		return nil, tracker.NewExtractionError(newstudioName, page.URL.String(),
			"serial list accordion not found")
	}

	var (
		entries []tracker.CatalogEntry
		seen    = make(map[int64]struct{})
	)
	accordion.Find("div.accordion-inner a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := newstudioForumIDRe.FindStringSubmatch(href)
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
			URL:   fmt.Sprintf("%s/viewforum.php?f=%d", newstudioBaseURL, id),
		})
	})
	return entries, nil
}

// ItemsURL pages through the forum 50 topics at a time. The __ts
// parameter busts any intermediate HTTP caches.
func (n *NewStudio) ItemsURL(entry *tracker.CatalogEntry, pageNum int) string {
	query := url.Values{}
	query.Set("f", strconv.FormatInt(entry.ID, 10))
	if pageNum > 1 {
		query.Set("start", strconv.Itoa((pageNum-1)*newstudioPageSize))
	}
	query.Set("__ts", strconv.FormatInt(time.Now().Unix(), 10))
	return newstudioBaseURL + "/viewforum.php?" + query.Encode()
}

func (n *NewStudio) ExtractItems(page *tracker.Page) (*tracker.ItemList, error) {
	doc, err := document(newstudioName, page)
	if err != nil {
		return nil, err
	}

	side := doc.Find("div#sideLeft")
	if side.Length() == 0 {
		return nil, tracker.NewExtractionError(newstudioName, page.URL.String(),
			"topic list container not found")
	}
	inner := side.Find("div.accordion-inner").First()
	if inner.Length() == 0 {
		return nil, tracker.NewExtractionError(newstudioName, page.URL.String(),
			"topic list body not found")
	}

	var items []tracker.Item
	inner.Find("div.row-fluid").Each(func(_ int, row *goquery.Selection) {
		titleLink := findLink(row, newstudioTopicIDRe)
		if titleLink == nil {
			return
		}
		title := strings.TrimSpace(titleLink.Text())
		href, _ := titleLink.Attr("href")
		topicMatch := newstudioTopicIDRe.FindStringSubmatch(href)
		if title == "" || topicMatch == nil {
			return
		}

		downloadLink := findLink(row, newstudioDownloadIDRe)
		if downloadLink == nil {
			return
		}
		downloadHref, _ := downloadLink.Attr("href")
		downloadMatch := newstudioDownloadIDRe.FindStringSubmatch(downloadHref)
		if downloadMatch == nil {
			return
		}

		id, _ := strconv.ParseInt(topicMatch[1], 10, 64)
		items = append(items, tracker.Item{
			ID:          id,
			Title:       title,
			DownloadRef: downloadMatch[1],
		})
	})

	return &tracker.ItemList{
		Items:      items,
		TotalPages: n.pagesCount(doc),
	}, nil
}

// pagesCount reads the largest page number out of the pagination block;
// zero means a single page.
func (n *NewStudio) pagesCount(doc *goquery.Document) int {
	pages := 0
	doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return newstudioPaginationRe.MatchString(class)
	}).Find("li").Each(func(_ int, li *goquery.Selection) {
		number, err := strconv.Atoi(strings.TrimSpace(li.Text()))
		if err == nil && number > pages {
			pages = number
		}
	})
	return pages
}

func (n *NewStudio) ParseTitle(raw string) (*tracker.ParsedTitle, error) {
	match := newstudioEpisodeRe.FindStringSubmatch(raw)
	if match == nil {
		return nil, tracker.NewParseError(newstudioName,
			fmt.Sprintf("title %q has invalid format", raw))
	}

	season, _ := strconv.Atoi(match[1])
	beginEpisode := 0
	if match[2] != "" {
		beginEpisode, _ = strconv.Atoi(match[2])
	}
	endEpisode := beginEpisode
	if match[3] != "" {
		endEpisode, _ = strconv.Atoi(match[3])
	}
	if endEpisode < beginEpisode {
		endEpisode = beginEpisode
	}

	quality := ""
	if qualityMatch := newstudioQualityRe.FindStringSubmatch(raw); qualityMatch != nil {
		quality = strings.TrimSpace(qualityMatch[1])
	}

	return &tracker.ParsedTitle{
		Title:        raw,
		Season:       season,
		BeginEpisode: beginEpisode,
		EndEpisode:   endEpisode,
		Quality:      quality,
	}, nil
}

func (n *NewStudio) ParseTopicID(rawURL string) (int64, bool) {
	match := newstudioTopicIDRe.FindStringSubmatch(rawURL)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	return id, err == nil
}

func (n *NewStudio) DownloadURL(item *tracker.Item) string {
	return newstudioBaseURL + "/download.php?id=" + item.DownloadRef
}

func (n *NewStudio) DirectDownloadURL(int64) (string, bool) {
	return "", false
}

func (n *NewStudio) ExtractDownloadRef(page *tracker.Page) (string, error) {
	doc, err := document(newstudioName, page)
	if err != nil {
		return "", err
	}

	link := findLink(doc.Selection, newstudioDownloadIDRe)
	if link == nil {
		return "", tracker.NewExtractionError(newstudioName, page.URL.String(),
			"download link not found")
	}

	href, _ := link.Attr("href")
	match := newstudioDownloadIDRe.FindStringSubmatch(href)
	if match == nil {
		return "", tracker.NewExtractionError(newstudioName, page.URL.String(),
			"download link has invalid format")
	}
	return newstudioBaseURL + "/download.php?id=" + match[1], nil
}

// findLink returns the first anchor under the selection whose href
// matches the pattern, or nil.
func findLink(s *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	s.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if re.MatchString(href) {
			found = link
			return false
		}
		return true
	})
	return found
}
