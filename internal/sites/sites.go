// Package sites holds the per-tracker adapters driven by the engine in
// internal/tracker.
package sites

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dbutrimov/trackersync/internal/tracker"
)

// hostMatches reports whether the URL's host is the domain itself or
// any subdomain of it, "www." included.
func hostMatches(u *url.URL, domain string) bool {
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// loginForm builds a form POST request for a site login endpoint.
func loginForm(loginURL string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// document parses a fetched page into a goquery document.
func document(site string, page *tracker.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, tracker.NewExtractionError(site, page.URL.String(), "invalid HTML document")
	}
	return doc, nil
}
