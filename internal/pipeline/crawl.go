package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/fetch"
	"github.com/sells-group/company-intel/internal/model"
)

// crawlPaths are tried after the homepage, in order, until the budget is spent.
var crawlPaths = []string{
	"about", "about-us", "our-story", "contact", "products", "brands", "team", "leadership", "history",
}

// Crawl defaults.
const (
	DefaultPageBudget = 5
	DefaultPageChars  = 4000
)

// CrawlResult is what the crawler obtained from a site.
type CrawlResult struct {
	Pages    []model.CrawledPage
	Homepage bool
}

// Confidence derives website confidence from what was fetched: the
// homepage gives high, sub-pages alone give medium, nothing gives no
// website at all.
func (r CrawlResult) Confidence() (model.Confidence, bool) {
	switch {
	case r.Homepage:
		return model.ConfidenceHigh, true
	case len(r.Pages) > 0:
		return model.ConfidenceMedium, true
	default:
		return "", false
	}
}

// SiteCrawler fetches a fixed set of well-known pages from a site.
type SiteCrawler struct {
	fetcher   fetch.Fetcher
	budget    int
	pageChars int
}

// NewSiteCrawler creates a SiteCrawler. Non-positive budget or pageChars
// fall back to the defaults.
func NewSiteCrawler(fetcher fetch.Fetcher, budget, pageChars int) *SiteCrawler {
	if budget <= 0 {
		budget = DefaultPageBudget
	}
	if pageChars <= 0 {
		pageChars = DefaultPageChars
	}
	return &SiteCrawler{fetcher: fetcher, budget: budget, pageChars: pageChars}
}

// Crawl fetches the homepage then the well-known paths, skipping pages
// that fail, until budget pages have been obtained.
func (c *SiteCrawler) Crawl(ctx context.Context, site string) CrawlResult {
	var res CrawlResult
	site = strings.TrimRight(site, "/")
	if site == "" {
		return res
	}
	log := zap.L().With(zap.String("url", site), zap.String("phase", "crawl"))
	start := time.Now()

	seen := make(map[string]bool)
	add := func(target string, typ model.PageType) bool {
		page, ok := c.fetcher.Fetch(ctx, target, c.pageChars)
		if !ok {
			return false
		}
		final := page.FinalURL
		if final == "" {
			final = target
		}
		key := strings.TrimRight(strings.ToLower(final), "/")
		if seen[key] {
			return false
		}
		seen[key] = true
		res.Pages = append(res.Pages, model.CrawledPage{
			URL:   final,
			Title: page.Title,
			Text:  page.Text,
			Type:  typ,
		})
		return true
	}

	res.Homepage = add(site+"/", model.PageTypeHomepage)
	for _, p := range crawlPaths {
		if len(res.Pages) >= c.budget || ctx.Err() != nil {
			break
		}
		target := site + "/" + p
		add(target, model.ClassifyPath(target))
	}

	log.Info("crawl: complete",
		zap.Int("pages", len(res.Pages)),
		zap.Bool("homepage", res.Homepage),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res
}
