package sites

import (
	"net/http"
	"testing"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

const baibakoCatalogHTML = `
<html><body>
<div class="row serialsearch">
  <a href="serial.php?id=215">Викинги / Vikings</a>
  <a href="serial.php?id=309">Фарго / Fargo</a>
  <a href="serial.php?id=215">Викинги / Vikings</a>
  <a href="news.php?id=7">новости</a>
</div>
</body></html>`

const baibakoItemsHTML = `
<html><body>
<table class="table table-striped">
  <tr><td><a href="details.php?id=197417">Викинги / Vikings / s05e07 / 720p</a></td>
      <td><a href="download.php?id=197417">скачать</a></td></tr>
  <tr><td><a href="details.php?id=197410">Викинги / Vikings / s05e07 / 1080p</a></td></tr>
  <tr><td><a href="details.php?id=197417">дубликат</a></td></tr>
</table>
</body></html>`

func TestBaibakoExtractCatalog(t *testing.T) {
	b := NewBaibako("")

	entries, err := b.ExtractCatalog(testPage(t, "http://baibako.tv/serials.php", baibakoCatalogHTML))
	if err != nil {
		t.Fatalf("ExtractCatalog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].ID != 215 || entries[0].Title != "Викинги / Vikings" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[0].URL != "http://baibako.tv/serial.php?id=215" {
		t.Errorf("entries[0].URL = %q", entries[0].URL)
	}
	if entries[1].ID != 309 {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestBaibakoExtractCatalogMissingContainer(t *testing.T) {
	b := NewBaibako("")

	_, err := b.ExtractCatalog(testPage(t, "http://baibako.tv/serials.php", "<html><body></body></html>"))
	if err == nil {
		t.Fatal("ExtractCatalog succeeded on a page without the serial list")
	}
}

func TestBaibakoExtractItems(t *testing.T) {
	b := NewBaibako("")

	list, err := b.ExtractItems(testPage(t, "http://baibako.tv/serial.php?id=215&tab=all", baibakoItemsHTML))
	if err != nil {
		t.Fatalf("ExtractItems failed: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want 2: %+v", len(list.Items), list.Items)
	}
	if list.Items[0].ID != 197417 || list.Items[0].Title != "Викинги / Vikings / s05e07 / 720p" {
		t.Errorf("items[0] = %+v", list.Items[0])
	}
	if list.Items[1].ID != 197410 {
		t.Errorf("items[1] = %+v", list.Items[1])
	}
	// Listings fit on a single page.
	if list.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", list.TotalPages)
	}
}

func TestBaibakoItemsURLTab(t *testing.T) {
	entry := &tracker.CatalogEntry{ID: 215, Title: "Викинги / Vikings"}

	if got := NewBaibako("").ItemsURL(entry, 1); got != "http://baibako.tv/serial.php?id=215&tab=all" {
		t.Errorf("default tab URL = %q", got)
	}
	if got := NewBaibako("hd720").ItemsURL(entry, 3); got != "http://baibako.tv/serial.php?id=215&tab=hd720" {
		t.Errorf("hd720 tab URL = %q", got)
	}
}

func TestBaibakoParseTitle(t *testing.T) {
	b := NewBaibako("")

	title, err := b.ParseTitle("Викинги / Vikings / s05e07 / 720p")
	if err != nil {
		t.Fatalf("ParseTitle failed: %v", err)
	}
	if title.Title != "Викинги" || title.Season != 5 || title.BeginEpisode != 7 || title.Quality != "720p" {
		t.Errorf("parsed = %+v", title)
	}
	if len(title.AlternateTitles) != 1 || title.AlternateTitles[0] != "Vikings" {
		t.Errorf("alternates = %v", title.AlternateTitles)
	}

	if _, err := b.ParseTitle("Сезон 5 целиком"); err == nil {
		t.Error("ParseTitle accepted a malformed title")
	}
}

func TestBaibakoParseTopicID(t *testing.T) {
	b := NewBaibako("")

	if id, ok := b.ParseTopicID("http://baibako.tv/details.php?id=197417"); !ok || id != 197417 {
		t.Errorf("ParseTopicID = (%d, %v)", id, ok)
	}
	if _, ok := b.ParseTopicID("http://baibako.tv/serials.php"); ok {
		t.Error("ParseTopicID accepted a non-topic URL")
	}
}

func TestBaibakoDirectDownloadURL(t *testing.T) {
	direct, ok := NewBaibako("").DirectDownloadURL(197417)
	if !ok {
		t.Fatal("DirectDownloadURL not available")
	}
	if direct != "http://baibako.tv/download.php?id=197417" {
		t.Errorf("DirectDownloadURL = %q", direct)
	}
}

func TestBaibakoLogin(t *testing.T) {
	b := NewBaibako("")

	req, err := b.LoginRequest("alice", "secret")
	if err != nil {
		t.Fatalf("LoginRequest failed: %v", err)
	}
	if req.Method != http.MethodPost || req.URL.String() != "http://baibako.tv/takelogin.php" {
		t.Errorf("login request = %s %s", req.Method, req.URL)
	}
	form := loginFormValues(t, req)
	if form.Get("username") != "alice" || form.Get("password") != "secret" {
		t.Errorf("login form = %v", form)
	}

	if err := b.CheckLogin(nil, nil, map[string]string{"uid": "42", "pass": "x"}); err != nil {
		t.Errorf("CheckLogin with uid cookie failed: %v", err)
	}
	if err := b.CheckLogin(nil, nil, map[string]string{"PHPSESSID": "x"}); err == nil {
		t.Error("CheckLogin accepted a session without the uid cookie")
	}
}
