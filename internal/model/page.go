package model

import (
	"net/url"
	"strings"
)

// PageType represents the prompt bucket a crawled page falls into.
type PageType string

const (
	PageTypeHomepage PageType = "homepage"
	PageTypeAbout    PageType = "about"
	PageTypeContact  PageType = "contact"
	PageTypeOther    PageType = "other"
)

// CrawledPage represents a page fetched from a company website.
type CrawledPage struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Text  string   `json:"text"`
	Type  PageType `json:"type"`
}

// PageIndex maps page types to their pages, preserving crawl order.
type PageIndex map[PageType][]CrawledPage

// ClassifyPath buckets a URL by its path. The root path is the homepage.
func ClassifyPath(rawURL string) PageType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageTypeOther
	}
	p := strings.ToLower(strings.Trim(u.Path, "/"))
	switch {
	case p == "" || p == "index.html" || p == "home":
		return PageTypeHomepage
	case strings.Contains(p, "about"), strings.Contains(p, "story"),
		strings.Contains(p, "history"), strings.Contains(p, "team"),
		strings.Contains(p, "leadership"):
		return PageTypeAbout
	case strings.Contains(p, "contact"):
		return PageTypeContact
	default:
		return PageTypeOther
	}
}

// IndexPages groups pages by type.
func IndexPages(pages []CrawledPage) PageIndex {
	idx := make(PageIndex)
	for _, p := range pages {
		t := p.Type
		if t == "" {
			t = ClassifyPath(p.URL)
		}
		idx[t] = append(idx[t], p)
	}
	return idx
}
