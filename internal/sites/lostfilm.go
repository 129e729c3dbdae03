package sites

import (
	"encoding/json"
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
	lostfilmName         = "lostfilm"
	lostfilmBaseURL      = "https://www.lostfilm.tv"
	lostfilmCookieDomain = ".lostfilm.tv"

	// The shows API serves fixed pages of ten.
	lostfilmCatalogPageSize = 10
)

var (
	lostfilmEpisodeURLRe = regexp.MustCompile(`(?i)/series/([^/]+?)/season_(\d+)/episode_(\d+)`)

	// The play button packs show, season and episode into one decimal
	// code: "PlayEpisode('251005014')" is show 251, s05e14.
	lostfilmPlayRe = regexp.MustCompile(`(?i)PlayEpisode\(\\?['"](\d+)(\d{3})(\d{3})\\?['"]\)`)

	lostfilmEpisodeRe = regexp.MustCompile(`(?i)^(\d+)\s+[Сс]езон\s+(\d+)\s+[Сс]ерия(?:\s*/\s*(.*))?$`)
)

// LostFilm adapts the LostFilm tracker. Unlike the forum sites it
// serves its catalog as a paginated JSON API behind the same endpoint
// the login goes through; item listings are per-show season pages.
type LostFilm struct{}

// NewLostFilm constructs the adapter.
func NewLostFilm() *LostFilm {
	return &LostFilm{}
}

func (l *LostFilm) Name() string         { return lostfilmName }
func (l *LostFilm) BaseURL() string      { return lostfilmBaseURL }
func (l *LostFilm) CookieDomain() string { return lostfilmCookieDomain }

func (l *LostFilm) MatchesHost(u *url.URL) bool {
	return hostMatches(u, lostfilmCookieDomain)
}

func (l *LostFilm) LoginRequest(username, password string) (*http.Request, error) {
	req, err := loginForm(lostfilmBaseURL+"/ajaxik.php", url.Values{
		"act":          {"users"},
		"type":         {"login"},
		"mail":         {username},
		"pass":         {password},
		"need_captcha": {""},
		"captcha":      {""},
		"rem":          {"1"},
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", lostfilmBaseURL+"/login")
	return req, nil
}

// CheckLogin reads the JSON the login endpoint answers with. A truthy
// need_captcha field means the account is locked behind a captcha and
// retrying a plain login cannot pass it; the user has to log in once
// with a web browser first.
func (l *LostFilm) CheckLogin(_ *http.Response, body []byte, cookies map[string]string) error {
	var result struct {
		NeedCaptcha any  `json:"need_captcha"`
		Error       any  `json:"error"`
		Success     bool `json:"success"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return tracker.NewAuthError(lostfilmName, "login response is not valid JSON")
	}

	if jsonTruthy(result.NeedCaptcha) {
		return tracker.NewChallengeError(lostfilmName,
			"captcha is required, log in once with a web browser and try again")
	}
	if result.Error != nil {
		return tracker.NewAuthError(lostfilmName,
			fmt.Sprintf("login rejected: %v", result.Error))
	}
	if result.Success && len(cookies) > 0 {
		return nil
	}
	return tracker.NewAuthError(lostfilmName,
		"unable to obtain session cookies, check username and password")
}

func (l *LostFilm) CatalogURL() string {
	return lostfilmBaseURL + "/series/?type=search&s=2&t=0"
}

// CatalogPageRequest asks the JSON API for the next ten shows, sorted
// alphabetically so the walk stays stable across pages.
func (l *LostFilm) CatalogPageRequest(offset int) (*http.Request, error) {
	form := url.Values{
		"act":  {"serial"},
		"type": {"search"},
		"o":    {strconv.Itoa(offset)},
		"s":    {"2"},
		"t":    {"0"},
	}
	req, err := http.NewRequest(http.MethodPost, lostfilmBaseURL+"/ajaxik.php", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", l.CatalogURL())
	return req, nil
}

func (l *LostFilm) CatalogPageSize() int { return lostfilmCatalogPageSize }

// ExtractCatalog decodes one page of the shows JSON. Each show carries
// a localized title plus the original one as an alternate.
func (l *LostFilm) ExtractCatalog(page *tracker.Page) ([]tracker.CatalogEntry, error) {
	var payload struct {
		Result string `json:"result"`
		Data   []struct {
			ID        json.Number `json:"id"`
			Alias     string      `json:"alias"`
			Title     string      `json:"title"`
			TitleOrig string      `json:"title_orig"`
		} `json:"data"`
	}
	if err := json.Unmarshal(page.Body, &payload); err != nil {
		return nil, tracker.NewParseError(lostfilmName, "shows response is not valid JSON")
	}
	if payload.Result != "ok" {
		return nil, tracker.NewParseError(lostfilmName,
			fmt.Sprintf("shows response result is %q", payload.Result))
	}

	entries := make([]tracker.CatalogEntry, 0, len(payload.Data))
	for _, show := range payload.Data {
		id, err := show.ID.Int64()
		if err != nil || show.Alias == "" {
			continue
		}
		entry := tracker.CatalogEntry{
			ID:    id,
			Title: show.Title,
			URL:   lostfilmBaseURL + "/series/" + show.Alias,
		}
		if show.TitleOrig != "" {
			entry.AlternateTitles = []string{show.TitleOrig}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ItemsURL is the show's seasons page; the whole episode grid is
// served on one page.
func (l *LostFilm) ItemsURL(entry *tracker.CatalogEntry, _ int) string {
	return entry.URL + "/seasons"
}

func (l *LostFilm) ExtractItems(page *tracker.Page) (*tracker.ItemList, error) {
	doc, err := document(lostfilmName, page)
	if err != nil {
		return nil, err
	}

	block := doc.Find("div.series-block")
	if block.Length() == 0 {
		return nil, tracker.NewExtractionError(lostfilmName, page.URL.String(),
			"series block not found")
	}

	var items []tracker.Item
	block.Find("table.movie-parts-list tr").Each(func(_ int, row *goquery.Selection) {
		// Rows without a play cell have not aired yet.
		play := row.Find("td.zeta")
		if play.Length() == 0 {
			return
		}
		show, season, episode, ok := playEpisodeCode(play)
		if !ok {
			return
		}

		id, err := strconv.ParseInt(show+season+episode, 10, 64)
		if err != nil {
			return
		}
		seasonNum, _ := strconv.Atoi(season)
		episodeNum, _ := strconv.Atoi(episode)

		title := fmt.Sprintf("%d Сезон %d Серия", seasonNum, episodeNum)
		if name := singleLine(row.Find("td.gamma").Text(), " / "); name != "" {
			title += " / " + name
		}

		items = append(items, tracker.Item{
			ID:          id,
			Title:       title,
			DownloadRef: show + season + episode,
		})
	})

	return &tracker.ItemList{Items: items}, nil
}

func (l *LostFilm) ParseTitle(raw string) (*tracker.ParsedTitle, error) {
	match := lostfilmEpisodeRe.FindStringSubmatch(raw)
	if match == nil {
		return nil, tracker.NewParseError(lostfilmName,
			fmt.Sprintf("title %q has invalid format", raw))
	}

	season, _ := strconv.Atoi(match[1])
	episode, _ := strconv.Atoi(match[2])

	// The trailing segment is the episode's own name; it rides in the
	// quality slot so resolution surfaces it.
	return &tracker.ParsedTitle{
		Title:        raw,
		Season:       season,
		BeginEpisode: episode,
		EndEpisode:   episode,
		Quality:      strings.TrimSpace(match[3]),
	}, nil
}

// ParseTopicID accepts the episode page URL shape. The id packs season
// and episode together; the show id only becomes known once the page
// is fetched.
func (l *LostFilm) ParseTopicID(rawURL string) (int64, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !l.MatchesHost(u) {
		return 0, false
	}
	match := lostfilmEpisodeURLRe.FindStringSubmatch(u.Path)
	if match == nil {
		return 0, false
	}
	season, _ := strconv.ParseInt(match[2], 10, 64)
	episode, _ := strconv.ParseInt(match[3], 10, 64)
	return season*1000 + episode, true
}

func (l *LostFilm) DownloadURL(item *tracker.Item) string {
	return lostfilmBaseURL + "/v_search.php?a=" + item.DownloadRef
}

func (l *LostFilm) DirectDownloadURL(int64) (string, bool) {
	return "", false
}

func (l *LostFilm) ExtractDownloadRef(page *tracker.Page) (string, error) {
	doc, err := document(lostfilmName, page)
	if err != nil {
		return "", err
	}

	overlay := doc.Find("div.overlay-pane")
	if overlay.Length() == 0 {
		return "", tracker.NewExtractionError(lostfilmName, page.URL.String(),
			"episode overlay pane not found")
	}
	show, season, episode, ok := playEpisodeCode(overlay)
	if !ok {
		return "", tracker.NewExtractionError(lostfilmName, page.URL.String(),
			"play button onclick has invalid format")
	}
	return "/v_search.php?a=" + show + season + episode, nil
}

// playEpisodeCode pulls the show/season/episode digit groups out of
// the first play button under the selection.
func playEpisodeCode(s *goquery.Selection) (show, season, episode string, ok bool) {
	var match []string
	s.Find("div.external-btn").EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		onclick, _ := btn.Attr("onclick")
		if m := lostfilmPlayRe.FindStringSubmatch(onclick); m != nil {
			match = m
			return false
		}
		return true
	})
	if match == nil {
		return "", "", "", false
	}
	return match[1], match[2], match[3], true
}

// singleLine collapses multi-line node text into one line.
func singleLine(text, separator string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, separator)
}

// jsonTruthy mirrors the loose truthiness of the site's JSON flags,
// which arrive as booleans or numbers depending on the endpoint.
func jsonTruthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		return value != "" && value != "0"
	case nil:
		return false
	default:
		return true
	}
}
