package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/discover"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/anthropic"
)

const selectSystemPrompt = `You identify the official website of a company from search results. You only see result metadata (title, URL, snippet), never page content.

Rules:
- All listed names are the SAME legal entity. A site for any one of them counts.
- Retailers, marketplaces, review sites, business directories, news outlets, social networks and government registries are automatic rejections.
- A distributor or a different company with a similar name is a rejection.
- If no result is clearly the company's own site, answer NONE.

Answer with exactly one line: the URL of the official site, or NONE.`

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// SiteSelector picks the official website from discovery candidates with
// one LLM call.
type SiteSelector struct {
	llm llm
}

// NewSiteSelector creates a SiteSelector.
func NewSiteSelector(client anthropic.Client, gate resilience.Gate, model string) *SiteSelector {
	return &SiteSelector{llm: newLLM(client, gate, model)}
}

// Select returns the homepage origin of the chosen site, or "" when there
// is no candidate, the model answers NONE, the answer is not one of the
// candidates' domains, or the call fails.
func (s *SiteSelector) Select(ctx context.Context, ref model.CompanyRef, candidates []discover.Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	log := zap.L().With(zap.String("company", ref.CacheKey()), zap.String("phase", "select"))

	answer, err := s.llm.complete(ctx, "select_site", selectSystemPrompt, selectPrompt(ref, candidates), 100)
	if err != nil {
		log.Warn("select: llm call failed", zap.Error(err))
		return ""
	}

	site := parseSelection(answer, candidates)
	log.Info("select: complete", zap.String("answer", clipLog(answer)), zap.String("site", site))
	return site
}

func selectPrompt(ref model.CompanyRef, candidates []discover.Candidate) string {
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
	b.WriteString("\nSearch results:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s | %s | %s\n", i+1, c.Title, c.URL, c.Snippet)
	}
	return b.String()
}

// parseSelection extracts the URL from the model's answer and keeps it
// only if its registrable domain matches a candidate.
func parseSelection(answer string, candidates []discover.Candidate) string {
	if strings.EqualFold(strings.TrimSpace(answer), "NONE") {
		return ""
	}
	raw := urlPattern.FindString(answer)
	if raw == "" {
		return ""
	}
	raw = strings.TrimRight(raw, ".,;")

	domain := discover.RegistrableDomain(raw)
	if domain == "" {
		return ""
	}
	var match string
	for _, c := range candidates {
		if discover.RegistrableDomain(c.URL) == domain {
			match = c.URL
			break
		}
	}
	if match == "" {
		zap.L().Warn("select: answer not among candidates", zap.String("url", raw))
		return ""
	}
	return origin(raw)
}

// origin reduces rawURL to scheme://host.
func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

func clipLog(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
