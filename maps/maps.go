// Package maps builds Google Maps links for addresses and routes.
package maps

import (
	"net/url"
	"strings"

	"github.com/pkg/browser"
)

const (
	searchURL = "https://www.google.com/maps/search/"
	dirURL    = "https://www.google.com/maps/dir/"
)

// SearchURL returns the link showing a single address.
func SearchURL(address string) string {
	return searchURL + "?" + url.Values{"api": {"1"}, "query": {address}}.Encode()
}

// RouteURL returns the directions link visiting addresses in order: the
// last one is the destination and the others are waypoints. It returns ""
// for an empty route.
func RouteURL(addresses []string) string {
	if len(addresses) == 0 {
		return ""
	}
	last := len(addresses) - 1
	// api comes first and waypoints last, as Google documents them
	q := "api=1&destination=" + url.QueryEscape(addresses[last])
	if last > 0 {
		q += "&waypoints=" + url.QueryEscape(strings.Join(addresses[:last], "|"))
	}
	return dirURL + "?" + q
}

// Opener shows a URL to the user.
type Opener interface {
	Open(url string) error
}

// BrowserOpener opens URLs in the system browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error { return browser.OpenURL(url) }
