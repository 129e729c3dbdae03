package tracker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParsedTitle is the structured form of a raw topic title. It is
// derived on every resolution and never persisted.
type ParsedTitle struct {
	Title           string
	AlternateTitles []string
	Season          int
	BeginEpisode    int // 0 means a whole-season release
	EndEpisode      int
	Quality         string
}

// EpisodeID renders the canonical episode identifier: "s05" for a
// whole-season release, "s05e14" for a single episode and "s01e03-10"
// for a range.
func (t *ParsedTitle) EpisodeID() string {
	if t.BeginEpisode <= 0 {
		return fmt.Sprintf("s%02d", t.Season)
	}
	if t.EndEpisode <= t.BeginEpisode {
		return fmt.Sprintf("s%02de%02d", t.Season, t.BeginEpisode)
	}
	return fmt.Sprintf("s%02de%02d-%02d", t.Season, t.BeginEpisode, t.EndEpisode)
}

// ContainsEpisode reports whether the release covers the episode.
func (t *ParsedTitle) ContainsEpisode(episode int) bool {
	return episode >= t.BeginEpisode && episode <= t.EndEpisode
}

// TitlePattern parses slash-delimited topic titles of the shape
// "<Title> / <AlternateTitle> / s<N>[e<M>[-<K>]] / <Quality> [notes]"
// with a single anchored regular expression. Sites whose titles deviate
// from this shape implement their own parsing instead.
type TitlePattern struct {
	site string
	re   *regexp.Regexp

	titleIdx, altIdx, seasonIdx, beginIdx, endIdx, qualityIdx int
}

// NewTitlePattern compiles a named-group title pattern. The expression
// must define groups "title", "season" and may define "title_orig",
// "episode_begin", "episode_end" and "quality". Panics on an invalid
// expression, so patterns are declared as package variables.
func NewTitlePattern(site, expr string) *TitlePattern {
	re := regexp.MustCompile(expr)

	p := &TitlePattern{
		site:     site,
		re:       re,
		titleIdx: -1, altIdx: -1, seasonIdx: -1, beginIdx: -1, endIdx: -1, qualityIdx: -1,
	}
	for i, name := range re.SubexpNames() {
		switch name {
		case "title":
			p.titleIdx = i
		case "title_orig":
			p.altIdx = i
		case "season":
			p.seasonIdx = i
		case "episode_begin":
			p.beginIdx = i
		case "episode_end":
			p.endIdx = i
		case "quality":
			p.qualityIdx = i
		}
	}
	if p.titleIdx < 0 || p.seasonIdx < 0 {
		panic(fmt.Sprintf("title pattern for %s lacks required groups", site))
	}
	return p
}

// Parse matches the raw title against the pattern. A non-matching title
// yields a parse error, never a panic; one malformed entry must not
// abort a whole resolution.
func (p *TitlePattern) Parse(raw string) (*ParsedTitle, error) {
	match := p.re.FindStringSubmatch(raw)
	if match == nil {
		return nil, NewParseError(p.site, fmt.Sprintf("title %q has invalid format", raw))
	}

	season, err := strconv.Atoi(match[p.seasonIdx])
	if err != nil {
		return nil, NewParseError(p.site, fmt.Sprintf("title %q has invalid season", raw))
	}

	// A missing episode marker means a whole-season release.
	beginEpisode := 0
	if p.beginIdx >= 0 && match[p.beginIdx] != "" {
		beginEpisode, _ = strconv.Atoi(match[p.beginIdx])
	}
	endEpisode := beginEpisode
	if p.endIdx >= 0 && match[p.endIdx] != "" {
		endEpisode, _ = strconv.Atoi(match[p.endIdx])
	}
	if endEpisode < beginEpisode {
		endEpisode = beginEpisode
	}

	parsed := &ParsedTitle{
		Title:        strings.TrimSpace(match[p.titleIdx]),
		Season:       season,
		BeginEpisode: beginEpisode,
		EndEpisode:   endEpisode,
	}
	if p.altIdx >= 0 && match[p.altIdx] != "" {
		parsed.AlternateTitles = []string{strings.TrimSpace(match[p.altIdx])}
	}
	if p.qualityIdx >= 0 {
		parsed.Quality = strings.TrimSpace(match[p.qualityIdx])
	}
	return parsed, nil
}

// SearchQuery is a caller's parsed "show + season + episode" request.
type SearchQuery struct {
	Title   string
	Season  int
	Episode int
}

// Recognized query shapes, tried in order. The first match wins.
var searchQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.*?)\s*(\d+)x(\d+)$`),
	regexp.MustCompile(`(?i)^(.*?)\s*s(\d+)e(\d+)$`),
}

// ParseSearchQuery parses a free-text query of the shape
// "<title> s05e14" or "<title> 5x14", case-insensitive. ok is false for
// strings matching neither shape.
func ParseSearchQuery(s string) (query *SearchQuery, ok bool) {
	s = strings.TrimSpace(s)
	for _, re := range searchQueryPatterns {
		match := re.FindStringSubmatch(s)
		if match == nil {
			continue
		}
		season, err1 := strconv.Atoi(match[2])
		episode, err2 := strconv.Atoi(match[3])
		if err1 != nil || err2 != nil {
			continue
		}
		return &SearchQuery{
			Title:   strings.TrimSpace(match[1]),
			Season:  season,
			Episode: episode,
		}, true
	}
	return nil, false
}

// String renders the query in canonical form for logging.
func (q *SearchQuery) String() string {
	return fmt.Sprintf("%s s%02de%02d", q.Title, q.Season, q.Episode)
}
