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
	alexfilmName         = "alexfilm"
	alexfilmBaseURL      = "http://alexfilm.org"
	alexfilmCookieDomain = ".alexfilm.org"
)

var (
	alexfilmForumIDRe    = regexp.MustCompile(`(?i)f=(\d+)`)
	alexfilmTopicIDRe    = regexp.MustCompile(`(?i)viewtopic\.php\?t=(\d+)`)
	alexfilmTopicURLRe   = regexp.MustCompile(`(?i)^https?://(?:www\.)?alexfilm\.org/viewtopic\.php\?t=(\d+)`)
	alexfilmDownloadRe   = regexp.MustCompile(`(?i)dl\.php\?id=(\d+)`)
	alexfilmPanelClassRe = regexp.MustCompile(`(?i)^panel.*`)

	// Titles are localized: "Настоящий детектив / True Detective /
	// Сезон 3 / Серии 1-8 [2019, WEB-DL 1080p]". The original-language
	// title is the primary one.
	alexfilmTitle = tracker.NewTitlePattern(alexfilmName,
		`(?i)^(?P<title_orig>[^/]*?)\s*/\s*(?P<title>[^/]*?)\s/\s*[Сс]езон\s*(?P<season>\d+)\s*/\s*[Сс]ерии\s*(?P<episode_begin>\d+)-(?P<episode_end>\d+).*,\s*(?P<quality>.*)\s*\].*$`)
)

// AlexFilm adapts the AlexFilm tracker. Its catalog entries carry
// several slash-separated titles, and download links must be extracted
// from the topic page (a dl.php link or a magnet URI).
type AlexFilm struct{}

// NewAlexFilm constructs the adapter.
func NewAlexFilm() *AlexFilm {
	return &AlexFilm{}
}

func (a *AlexFilm) Name() string         { return alexfilmName }
func (a *AlexFilm) BaseURL() string      { return alexfilmBaseURL }
func (a *AlexFilm) CookieDomain() string { return alexfilmCookieDomain }

func (a *AlexFilm) MatchesHost(u *url.URL) bool {
	return hostMatches(u, alexfilmCookieDomain)
}

func (a *AlexFilm) LoginRequest(username, password string) (*http.Request, error) {
	return loginForm(alexfilmBaseURL+"/login.php", url.Values{
		"login_username": {username},
		"login_password": {password},
		"login":          {"Вход"},
		"autologin":      {"1"},
	})
}

func (a *AlexFilm) CheckLogin(_ *http.Response, _ []byte, cookies map[string]string) error {
	if len(cookies) > 0 {
		return nil
	}
	return tracker.NewAuthError(alexfilmName,
		"unable to obtain session cookies, check username and password")
}

func (a *AlexFilm) CatalogURL() string {
	return alexfilmBaseURL + "/"
}

// ExtractCatalog reads the serial list off the front page. Each link
// text holds the show's titles separated by " / "; the first becomes
// the primary title and the rest alternates.
func (a *AlexFilm) ExtractCatalog(page *tracker.Page) ([]tracker.CatalogEntry, error) {
	doc, err := document(alexfilmName, page)
	if err != nil {
		return nil, err
	}

	serials := doc.Find("ul#serials")
	if serials.Length() == 0 {
		return nil, tracker.NewExtractionError(alexfilmName, page.URL.String(),
			"serial list not found")
	}

	var (
		entries []tracker.CatalogEntry
		seen    = make(map[int64]struct{})
	)
	serials.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		match := alexfilmForumIDRe.FindStringSubmatch(href)
		if match == nil {
			return
		}
		id, _ := strconv.ParseInt(match[1], 10, 64)
		if _, dup := seen[id]; dup {
			return
		}

		titles := strings.Split(link.Text(), " / ")
		for i := range titles {
			titles[i] = strings.TrimSpace(titles[i])
		}
		if len(titles) == 0 || titles[0] == "" {
			return
		}
		seen[id] = struct{}{}

		entryURL, err := page.Resolve(href)
		if err != nil {
			entryURL = href
		}
		entries = append(entries, tracker.CatalogEntry{
			ID:              id,
			Title:           titles[0],
			AlternateTitles: titles[1:],
			URL:             entryURL,
		})
	})
	return entries, nil
}

// ItemsURL is the show's forum page stored during catalog extraction;
// listings are not paginated.
func (a *AlexFilm) ItemsURL(entry *tracker.CatalogEntry, _ int) string {
	if entry.URL != "" {
		return entry.URL
	}
	return fmt.Sprintf("%s/viewforum.php?f=%d", alexfilmBaseURL, entry.ID)
}

func (a *AlexFilm) ExtractItems(page *tracker.Page) (*tracker.ItemList, error) {
	doc, err := document(alexfilmName, page)
	if err != nil {
		return nil, err
	}

	section := doc.Find("section")
	if section.Length() == 0 {
		return nil, tracker.NewExtractionError(alexfilmName, page.URL.String(),
			"topic section not found")
	}

	var (
		items []tracker.Item
		seen  = make(map[int64]struct{})
	)
	section.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return alexfilmPanelClassRe.MatchString(class)
	}).Each(func(_ int, panel *goquery.Selection) {
		link := findLink(panel, alexfilmTopicIDRe)
		if link == nil {
			return
		}
		href, _ := link.Attr("href")
		match := alexfilmTopicIDRe.FindStringSubmatch(href)
		if match == nil {
			return
		}
		id, _ := strconv.ParseInt(match[1], 10, 64)
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		topicURL, err := page.Resolve(href)
		if err != nil {
			topicURL = href
		}
		items = append(items, tracker.Item{
			ID:          id,
			Title:       strings.TrimSpace(link.Text()),
			DownloadRef: topicURL,
		})
	})
	return &tracker.ItemList{Items: items}, nil
}

func (a *AlexFilm) ParseTitle(raw string) (*tracker.ParsedTitle, error) {
	return alexfilmTitle.Parse(raw)
}

func (a *AlexFilm) ParseTopicID(rawURL string) (int64, bool) {
	match := alexfilmTopicURLRe.FindStringSubmatch(rawURL)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	return id, err == nil
}

// DownloadURL is the topic page itself; the actual download link is
// resolved later by URL rewriting.
func (a *AlexFilm) DownloadURL(item *tracker.Item) string {
	if item.DownloadRef != "" {
		return item.DownloadRef
	}
	return fmt.Sprintf("%s/viewtopic.php?t=%d", alexfilmBaseURL, item.ID)
}

func (a *AlexFilm) DirectDownloadURL(int64) (string, bool) {
	return "", false
}

// ExtractDownloadRef prefers the dl.php link and falls back to the
// magnet anchor when the page carries no torrent file.
func (a *AlexFilm) ExtractDownloadRef(page *tracker.Page) (string, error) {
	doc, err := document(alexfilmName, page)
	if err != nil {
		return "", err
	}

	if link := findLink(doc.Selection, alexfilmDownloadRe); link != nil {
		href, _ := link.Attr("href")
		return href, nil
	}

	if magnet := doc.Find("a#magnet").First(); magnet.Length() > 0 {
		if href, exists := magnet.Attr("href"); exists && href != "" {
			return href, nil
		}
	}

	return "", tracker.NewExtractionError(alexfilmName, page.URL.String(),
		"download link not found")
}
