package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-intel/internal/discover"
	"github.com/sells-group/company-intel/internal/fetch"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/anthropic"
)

// News defaults.
const (
	DefaultArticleChars    = 1500
	DefaultMaxNewsArticles = 5
)

const newsSystemPrompt = `You check whether news articles are about one specific company. You receive the company's names, its known brand when there is one, and the text of each article.

Rules:
- All listed names are the SAME legal entity.
- An article is relevant only if it is explicitly about the named company or its known brand. An article about the brand counts even when it never names the legal entity.
- Articles about a different company in the same industry, a similarly named company, or the industry in general are NOT relevant.
- When uncertain, reject: mark the article relevant false.
- date is the article's publication date as YYYY-MM-DD if it is stated in the text, otherwise null. Never guess a date.

Respond with only this JSON:
{"articles":[{"index":1,"relevant":true,"date":"2025-01-31"}]}`

type newsVerdicts struct {
	Articles []struct {
		Index    int     `json:"index"`
		Relevant bool    `json:"relevant"`
		Date     *string `json:"date"`
	} `json:"articles"`
}

// NewsValidator fetches news-like candidates and keeps only those an LLM
// confirms are about the company.
type NewsValidator struct {
	llm          llm
	fetcher      fetch.Fetcher
	articleChars int
	maxArticles  int
	now          func() time.Time
}

// NewNewsValidator creates a NewsValidator.
func NewNewsValidator(client anthropic.Client, gate resilience.Gate, model string, fetcher fetch.Fetcher, articleChars, maxArticles int) *NewsValidator {
	if articleChars <= 0 {
		articleChars = DefaultArticleChars
	}
	if maxArticles <= 0 {
		maxArticles = DefaultMaxNewsArticles
	}
	return &NewsValidator{
		llm:          newLLM(client, gate, model),
		fetcher:      fetcher,
		articleChars: articleChars,
		maxArticles:  maxArticles,
		now:          time.Now,
	}
}

type fetchedArticle struct {
	candidate discover.Candidate
	text      string
}

// Validate returns the relevant articles, newest first. Articles that
// cannot be fetched never reach the model and never appear in the output.
func (v *NewsValidator) Validate(ctx context.Context, ref model.CompanyRef, candidates []discover.Candidate) []model.NewsItem {
	if len(candidates) == 0 {
		return nil
	}
	log := zap.L().With(zap.String("company", ref.CacheKey()), zap.String("phase", "news"))

	fetched := v.fetchAll(ctx, candidates)
	if len(fetched) == 0 {
		log.Info("news: no article could be fetched", zap.Int("candidates", len(candidates)))
		return nil
	}

	answer, err := v.llm.complete(ctx, "validate_news", newsSystemPrompt, newsPrompt(ref, fetched), 400)
	if err != nil {
		log.Warn("news: llm call failed", zap.Error(err))
		return nil
	}

	items, err := v.parseVerdicts(answer, fetched)
	if err != nil {
		log.Warn("news: unparsable verdicts", zap.Error(err))
		return nil
	}

	log.Info("news: complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("fetched", len(fetched)),
		zap.Int("accepted", len(items)),
	)
	return items
}

// fetchAll fetches every candidate concurrently, preserving input order
// and dropping failures.
func (v *NewsValidator) fetchAll(ctx context.Context, candidates []discover.Candidate) []fetchedArticle {
	slots := make([]*fetchedArticle, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		g.Go(func() error {
			page, ok := v.fetcher.Fetch(gctx, c.URL, v.articleChars)
			if ok {
				slots[i] = &fetchedArticle{candidate: c, text: page.Text}
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []fetchedArticle
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func newsPrompt(ref model.CompanyRef, articles []fetchedArticle) string {
	var b strings.Builder
	names := ref.Aliases
	if len(names) == 0 {
		names = []string{ref.Name}
	}
	fmt.Fprintf(&b, "Company names (one entity): %s\n", strings.Join(names, "; "))
	if ref.BrandHint != "" {
		fmt.Fprintf(&b, "Known brand: %s\n", ref.BrandHint)
	}
	if ref.IndustryHint != "" {
		fmt.Fprintf(&b, "Industry: %s\n", ref.IndustryHint)
	}
	for i, a := range articles {
		fmt.Fprintf(&b, "\n--- Article %d ---\nTitle: %s\nSource: %s\n%s\n", i+1, a.candidate.Title, a.candidate.Source, a.text)
	}
	return b.String()
}

// parseVerdicts maps the model's verdicts back onto the fetched articles.
// Items are rebuilt from the candidate so no model text reaches the output.
func (v *NewsValidator) parseVerdicts(answer string, articles []fetchedArticle) ([]model.NewsItem, error) {
	raw, ok := extractJSON(answer)
	if !ok {
		return nil, eris.Errorf("news: no json object in %q", clipLog(answer))
	}
	var verdicts newsVerdicts
	if err := json.Unmarshal([]byte(raw), &verdicts); err != nil {
		return nil, eris.Wrap(err, "news: decode verdicts")
	}

	today := v.now().UTC().Format(dateLayout)
	used := make(map[int]bool)
	var items []model.NewsItem
	for _, vd := range verdicts.Articles {
		idx := vd.Index - 1
		if !vd.Relevant || idx < 0 || idx >= len(articles) || used[idx] {
			continue
		}
		used[idx] = true
		c := articles[idx].candidate
		items = append(items, model.NewsItem{
			Title:  c.Title,
			URL:    c.URL,
			Source: c.Source,
			Date:   parseNewsDate(vd.Date, today),
		})
	}

	sortNews(items)
	if len(items) > v.maxArticles {
		items = items[:v.maxArticles]
	}
	return items, nil
}

const dateLayout = "2006-01-02"

// parseNewsDate accepts only strict YYYY-MM-DD dates that are not in the
// future.
func parseNewsDate(s *string, today string) *string {
	if s == nil {
		return nil
	}
	d := strings.TrimSpace(*s)
	t, err := time.Parse(dateLayout, d)
	if err != nil {
		return nil
	}
	d = t.Format(dateLayout)
	if d > today {
		return nil
	}
	return &d
}

// sortNews orders items newest first with undated items last, keeping the
// model's order among equals.
func sortNews(items []model.NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Date, items[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}
