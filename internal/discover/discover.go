// Package discover turns a company identity into candidate web results: it
// searches on the company's aliases, dedupes and filters the results, and
// picks out social profiles and news-like articles along the way.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/search"
)

const (
	// MaxSearchTerms caps the number of queries issued per company.
	MaxSearchTerms = 2
	// MaxNewsCandidates caps the news-like results handed to validation.
	MaxNewsCandidates = 5
)

// businessJournals are regional business-news domains whose URLs rarely
// carry "news" or "/article/".
var businessJournals = map[string]bool{
	"bizjournals.com":        true,
	"crainsnewyork.com":      true,
	"chicagobusiness.com":    true,
	"crainsdetroit.com":      true,
	"crainscleveland.com":    true,
	"bizwest.com":            true,
	"njbiz.com":              true,
	"mibiz.com":              true,
	"tampabay.com":           true,
	"businessinsider.com":    true,
	"prnewswire.com":         true,
	"businesswire.com":       true,
	"globenewswire.com":      true,
	"thespiritsbusiness.com": true,
	"thedrinksbusiness.com":  true,
	"brewbound.com":          true,
	"winebusiness.com":       true,
}

// Candidate is one deduplicated search result.
type Candidate struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Date    string `json:"date,omitempty"`
}

// Discovery is the Discoverer's output.
type Discovery struct {
	Candidates []Candidate   `json:"candidates"`
	Social     *model.Social `json:"social"`
	NewsLike   []Candidate   `json:"news_like"`
}

// Discoverer runs the search fan-out for one company.
type Discoverer struct {
	searcher search.Searcher
	denylist *Denylist
}

// New creates a Discoverer. A nil denylist uses the built-in domains.
func New(searcher search.Searcher, denylist *Denylist) *Discoverer {
	if denylist == nil {
		denylist = NewDenylist()
	}
	return &Discoverer{searcher: searcher, denylist: denylist}
}

// Queries returns the search queries for ref: one per alias up to
// MaxSearchTerms, plus the brand hint when fewer alias terms exist.
func Queries(ref model.CompanyRef) []string {
	terms := make([]string, 0, MaxSearchTerms)
	seen := make(map[string]bool)
	for _, a := range ref.Aliases {
		if len(terms) == MaxSearchTerms {
			break
		}
		k := strings.ToLower(a)
		if a == "" || seen[k] {
			continue
		}
		seen[k] = true
		terms = append(terms, a)
	}
	if len(terms) < MaxSearchTerms && ref.BrandHint != "" && !seen[strings.ToLower(ref.BrandHint)] {
		terms = append(terms, ref.BrandHint)
	}

	queries := make([]string, len(terms))
	for i, t := range terms {
		queries[i] = strings.TrimSpace(fmt.Sprintf("%q %s", t, ref.IndustryHint))
	}
	return queries
}

// Discover searches for ref and never fails: a query that errors
// contributes no results, and the remaining queries still count.
func (d *Discoverer) Discover(ctx context.Context, ref model.CompanyRef) Discovery {
	log := zap.L().With(zap.String("company", ref.CacheKey()), zap.String("phase", "discover"))
	start := time.Now()

	queries := Queries(ref)
	if len(queries) == 0 {
		log.Info("discover: no search terms")
		return Discovery{}
	}

	perQuery := make([][]search.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := d.searcher.Search(gctx, q)
			if err != nil {
				log.Warn("discover: query failed", zap.String("query", q), zap.Error(err))
				return nil // other queries still count
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	raw := dedupe(perQuery)

	urls := make([]string, len(raw))
	for i, r := range raw {
		urls[i] = r.URL
	}
	out := Discovery{Social: extractSocial(urls)}

	for _, r := range raw {
		if !isWebURL(r.URL) || d.denylist.Blocked(r.URL) {
			continue
		}
		c := Candidate{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
			Source:  Hostname(r.URL),
			Date:    r.Date,
		}
		out.Candidates = append(out.Candidates, c)
		if len(out.NewsLike) < MaxNewsCandidates && IsNewsLike(r.URL) {
			out.NewsLike = append(out.NewsLike, c)
		}
	}

	log.Info("discover: complete",
		zap.Int("queries", len(queries)),
		zap.Int("raw_results", len(raw)),
		zap.Int("candidates", len(out.Candidates)),
		zap.Int("news_like", len(out.NewsLike)),
		zap.Bool("social", out.Social != nil),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out
}

// dedupe merges per-query results in query order, keeping the first
// occurrence of each normalized URL.
func dedupe(perQuery [][]search.Result) []search.Result {
	seen := make(map[string]bool)
	var out []search.Result
	for _, results := range perQuery {
		for _, r := range results {
			k := urlKey(r.URL)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	return out
}

// IsNewsLike reports whether rawURL looks like an editorial article: the
// host contains "news", the path contains /article/ or /news/, or the site
// is a known business journal.
func IsNewsLike(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(host, "news"):
		return true
	case strings.Contains(path, "/article/"), strings.Contains(path, "/articles/"), strings.Contains(path, "/news/"):
		return true
	default:
		return businessJournals[RegistrableDomain(rawURL)]
	}
}
