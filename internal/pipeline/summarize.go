package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/anthropic"
)

// DefaultSummaryMaxTokens bounds the summary reply.
const DefaultSummaryMaxTokens = 600

const summarySystemPrompt = `You write short factual company profiles for a filings research product.

Rules:
- Every claim must come from the FILING STATISTICS or WEBSITE CONTENT provided. Do not use outside knowledge. Do not invent founders, locations, dates, sizes or products.
- If no website content is provided, describe only what the filing statistics show: activity level, trend, category mix, brands and states. Do not write a company narrative.
- 2 to 4 sentences, neutral tone, no marketing language.
- confidence is "high" when website content clearly describes the company, "medium" when it is thin or partly ambiguous, "low" when you relied on filing statistics alone or the content may be about a different company.

Respond with only this JSON:
{"summary":"...","confidence":"high|medium|low"}`

// SummaryInput is everything the summary may draw on.
type SummaryInput struct {
	Ref     model.CompanyRef
	Filings model.CompanyFilings
	Pages   []model.CrawledPage
	Website string
	Social  *model.Social
}

// Summary is the summarizer's output. Text is nil when no summary could be
// produced.
type Summary struct {
	Text       *string
	Confidence model.Confidence
}

// LLMSummarizer writes the company summary with one LLM call.
type LLMSummarizer struct {
	llm       llm
	maxTokens int64
	pageChars int
}

// NewLLMSummarizer creates an LLMSummarizer.
func NewLLMSummarizer(client anthropic.Client, gate resilience.Gate, model string, maxTokens, pageChars int) *LLMSummarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultSummaryMaxTokens
	}
	if pageChars <= 0 {
		pageChars = DefaultPageChars
	}
	return &LLMSummarizer{llm: newLLM(client, gate, model), maxTokens: int64(maxTokens), pageChars: pageChars}
}

// Summarize never fails; any error yields a nil summary at low confidence.
func (s *LLMSummarizer) Summarize(ctx context.Context, in SummaryInput) Summary {
	failed := Summary{Confidence: model.ConfidenceLow}
	log := zap.L().With(zap.String("company", in.Ref.CacheKey()), zap.String("phase", "summarize"))

	answer, err := s.llm.complete(ctx, "summarize", summarySystemPrompt, s.prompt(in), s.maxTokens)
	if err != nil {
		log.Warn("summarize: llm call failed", zap.Error(err))
		return failed
	}

	out, ok := parseSummary(answer)
	if !ok {
		log.Warn("summarize: unparsable reply", zap.String("answer", clipLog(answer)))
		return failed
	}
	log.Info("summarize: complete",
		zap.Bool("has_summary", out.Text != nil),
		zap.String("confidence", string(out.Confidence)),
	)
	return out
}

func parseSummary(answer string) (Summary, bool) {
	raw, ok := extractJSON(answer)
	if !ok {
		return Summary{}, false
	}
	var reply struct {
		Summary    *string `json:"summary"`
		Confidence string  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Summary{}, false
	}

	out := Summary{Confidence: model.ParseConfidence(strings.ToLower(strings.TrimSpace(reply.Confidence)))}
	if reply.Summary != nil {
		if text := strings.TrimSpace(*reply.Summary); text != "" {
			out.Text = &text
		}
	}
	if out.Text == nil {
		out.Confidence = model.ConfidenceLow
	}
	return out, true
}

// pageOrder is the order buckets appear in the prompt.
var pageOrder = []model.PageType{
	model.PageTypeHomepage, model.PageTypeAbout, model.PageTypeContact, model.PageTypeOther,
}

func (s *LLMSummarizer) prompt(in SummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", in.Ref.Name)
	if len(in.Ref.Aliases) > 1 {
		fmt.Fprintf(&b, "Also known as: %s\n", strings.Join(in.Ref.Aliases[1:], "; "))
	}

	b.WriteString("\nFILING STATISTICS\n")
	writeFilingStats(&b, in.Filings)

	if in.Website != "" {
		fmt.Fprintf(&b, "\nWebsite: %s\n", in.Website)
	}
	if !in.Social.IsEmpty() {
		for _, link := range []*string{in.Social.Facebook, in.Social.Instagram, in.Social.YouTube} {
			if link != nil {
				fmt.Fprintf(&b, "Social: %s\n", *link)
			}
		}
	}

	idx := model.IndexPages(in.Pages)
	if len(in.Pages) == 0 {
		b.WriteString("\nWEBSITE CONTENT\n(none available)\n")
		return b.String()
	}
	b.WriteString("\nWEBSITE CONTENT\n")
	for _, t := range pageOrder {
		for _, p := range idx[t] {
			fmt.Fprintf(&b, "\n[%s] %s\n%s\n", t, p.URL, clipRunes(p.Text, s.pageChars))
		}
	}
	return b.String()
}

func writeFilingStats(b *strings.Builder, f model.CompanyFilings) {
	st := f.Stats
	fmt.Fprintf(b, "Total filings: %d\n", st.TotalFilings)
	if st.FirstFiling != nil {
		fmt.Fprintf(b, "First filing: %s\n", st.FirstFiling.Format(dateLayout))
	}
	if st.LastFiling != nil {
		fmt.Fprintf(b, "Latest filing: %s\n", st.LastFiling.Format(dateLayout))
	}
	fmt.Fprintf(b, "Filings in last 12 months: %d (prior 12 months: %d, last month: %d)\n",
		st.Last12Months, st.Prior12Months, st.LastMonth)
	if st.Trend != "" {
		fmt.Fprintf(b, "Trend: %s\n", st.Trend)
	}
	if len(f.Brands) > 0 {
		parts := make([]string, 0, len(f.Brands))
		for _, br := range f.Brands {
			parts = append(parts, fmt.Sprintf("%s (%d)", br.Name, br.FilingCount))
		}
		fmt.Fprintf(b, "Brands: %s\n", strings.Join(parts, ", "))
	}
	if len(f.Categories) > 0 {
		names := make([]string, 0, len(f.Categories))
		for name := range f.Categories {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if f.Categories[names[i]] != f.Categories[names[j]] {
				return f.Categories[names[i]] > f.Categories[names[j]]
			}
			return names[i] < names[j]
		})
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s (%d)", n, f.Categories[n])
		}
		fmt.Fprintf(b, "Categories: %s\n", strings.Join(parts, ", "))
	}
	if len(f.States) > 0 {
		fmt.Fprintf(b, "States: %s\n", strings.Join(f.States, ", "))
	}
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
