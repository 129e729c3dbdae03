package tracker

import (
	"testing"
)

var testTitlePattern = NewTitlePattern("test",
	`(?i)^(?P<title>[^/]*?)\s*/\s*(?P<title_orig>[^/]*?)\s*/\s*s(?P<season>\d+)(?:e(?P<episode_begin>\d+)(?:-(?P<episode_end>\d+))?)?\s*/\s*(?P<quality>[^/]*?)\s*(?:(?:/.*)|$)`)

func TestTitlePatternParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ParsedTitle
		wantErr bool
	}{
		{
			name: "single episode",
			raw:  "Breaking Bad / Во все тяжкие / s05e14 / 720p",
			want: ParsedTitle{
				Title:           "Breaking Bad",
				AlternateTitles: []string{"Во все тяжкие"},
				Season:          5,
				BeginEpisode:    14,
				EndEpisode:      14,
				Quality:         "720p",
			},
		},
		{
			name: "episode range",
			raw:  "True Detective / Настоящий детектив / s01e03-10 / 1080p",
			want: ParsedTitle{
				Title:           "True Detective",
				AlternateTitles: []string{"Настоящий детектив"},
				Season:          1,
				BeginEpisode:    3,
				EndEpisode:      10,
				Quality:         "1080p",
			},
		},
		{
			name: "whole season",
			raw:  "Fargo / Фарго / s02 / HD",
			want: ParsedTitle{
				Title:           "Fargo",
				AlternateTitles: []string{"Фарго"},
				Season:          2,
				BeginEpisode:    0,
				EndEpisode:      0,
				Quality:         "HD",
			},
		},
		{
			name: "trailing segment ignored",
			raw:  "Fargo / Фарго / s02e01 / HD / extra notes",
			want: ParsedTitle{
				Title:           "Fargo",
				AlternateTitles: []string{"Фарго"},
				Season:          2,
				BeginEpisode:    1,
				EndEpisode:      1,
				Quality:         "HD",
			},
		},
		{
			name:    "missing season marker",
			raw:     "Fargo / Фарго / best show",
			wantErr: true,
		},
		{
			name:    "empty title",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testTitlePattern.Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.raw)
				}
				if !IsParseError(err) {
					t.Errorf("Parse(%q) error is not a parse error: %v", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}

			if got.Title != tt.want.Title {
				t.Errorf("Title = %q, want %q", got.Title, tt.want.Title)
			}
			if len(got.AlternateTitles) != len(tt.want.AlternateTitles) {
				t.Fatalf("AlternateTitles = %v, want %v", got.AlternateTitles, tt.want.AlternateTitles)
			}
			for i := range got.AlternateTitles {
				if got.AlternateTitles[i] != tt.want.AlternateTitles[i] {
					t.Errorf("AlternateTitles[%d] = %q, want %q", i, got.AlternateTitles[i], tt.want.AlternateTitles[i])
				}
			}
			if got.Season != tt.want.Season {
				t.Errorf("Season = %d, want %d", got.Season, tt.want.Season)
			}
			if got.BeginEpisode != tt.want.BeginEpisode {
				t.Errorf("BeginEpisode = %d, want %d", got.BeginEpisode, tt.want.BeginEpisode)
			}
			if got.EndEpisode != tt.want.EndEpisode {
				t.Errorf("EndEpisode = %d, want %d", got.EndEpisode, tt.want.EndEpisode)
			}
			if got.Quality != tt.want.Quality {
				t.Errorf("Quality = %q, want %q", got.Quality, tt.want.Quality)
			}
		})
	}
}

// Localized season/episode markers parse through the same machinery.
var localizedTitlePattern = NewTitlePattern("localized",
	`(?i)^(?P<title>[^/]*?)\s*/\s*(?P<title_orig>[^/]*?)\s*/\s*[Сс]езон\s*(?P<season>\d+)(?:\s*/\s*[Сс]ерии\s*(?P<episode_begin>\d+)(?:-(?P<episode_end>\d+))?)?\s*(?:,\s*(?P<quality>.*))?$`)

func TestTitlePatternLocalizedMarkers(t *testing.T) {
	got, err := localizedTitlePattern.Parse("Breaking Bad / Во все тяжкие / Сезон 5 / Серии 14-14, HD")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.Season != 5 || got.BeginEpisode != 14 || got.EndEpisode != 14 {
		t.Errorf("episode = s%de%d-%d, want s5e14-14", got.Season, got.BeginEpisode, got.EndEpisode)
	}
	if got.Quality != "HD" {
		t.Errorf("Quality = %q, want HD", got.Quality)
	}
	if !got.ContainsEpisode(14) || got.ContainsEpisode(15) {
		t.Error("ContainsEpisode over a single-episode range is wrong")
	}

	season, err := localizedTitlePattern.Parse("Фарго / Fargo / Сезон 2")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if season.BeginEpisode != 0 || season.EpisodeID() != "s02" {
		t.Errorf("whole season = %+v", season)
	}
}

func TestEpisodeID(t *testing.T) {
	tests := []struct {
		name  string
		title ParsedTitle
		want  string
	}{
		{"whole season", ParsedTitle{Season: 5}, "s05"},
		{"single episode", ParsedTitle{Season: 5, BeginEpisode: 14, EndEpisode: 14}, "s05e14"},
		{"range", ParsedTitle{Season: 1, BeginEpisode: 3, EndEpisode: 10}, "s01e03-10"},
		{"double digit season", ParsedTitle{Season: 12, BeginEpisode: 2, EndEpisode: 2}, "s12e02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.title.EpisodeID(); got != tt.want {
				t.Errorf("EpisodeID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainsEpisode(t *testing.T) {
	rangeTitle := ParsedTitle{Season: 1, BeginEpisode: 3, EndEpisode: 10}

	if !rangeTitle.ContainsEpisode(3) || !rangeTitle.ContainsEpisode(7) || !rangeTitle.ContainsEpisode(10) {
		t.Error("episodes inside the range should be contained")
	}
	if rangeTitle.ContainsEpisode(2) || rangeTitle.ContainsEpisode(11) {
		t.Error("episodes outside the range should not be contained")
	}

	wholeSeason := ParsedTitle{Season: 1}
	if wholeSeason.ContainsEpisode(1) {
		t.Error("a whole-season release should not match a specific episode")
	}
}

func TestParseSearchQuery(t *testing.T) {
	tests := []struct {
		raw         string
		wantTitle   string
		wantSeason  int
		wantEpisode int
		wantOK      bool
	}{
		{"Breaking Bad s05e14", "Breaking Bad", 5, 14, true},
		{"Breaking Bad S05E14", "Breaking Bad", 5, 14, true},
		{"Breaking Bad 5x14", "Breaking Bad", 5, 14, true},
		{"  Fargo 2x01  ", "Fargo", 2, 1, true},
		{"Breaking Bad", "", 0, 0, false},
		{"Breaking Bad season 5", "", 0, 0, false},
		{"", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			query, ok := ParseSearchQuery(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseSearchQuery(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if query.Title != tt.wantTitle || query.Season != tt.wantSeason || query.Episode != tt.wantEpisode {
				t.Errorf("ParseSearchQuery(%q) = %+v, want {%q %d %d}",
					tt.raw, query, tt.wantTitle, tt.wantSeason, tt.wantEpisode)
			}
		})
	}
}
