package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/resilience"
	anthropicmocks "github.com/sells-group/company-intel/pkg/anthropic/mocks"
)

func sampleFilings() model.CompanyFilings {
	first := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	return model.CompanyFilings{
		Stats: model.FilingStats{
			TotalFilings: 40, FirstFiling: &first, Last12Months: 15, Prior12Months: 10, LastMonth: 2,
			Trend: model.TrendGrowing,
		},
		Brands:     []model.BrandCount{{Name: "Northland IPA", FilingCount: 20}},
		Categories: map[string]int{"beer": 35, "cider": 5},
		States:     []string{"MN", "WI"},
	}
}

func TestLLMSummarizer_Summarize(t *testing.T) {
	m := llmReturning(t, "```json\n{\"summary\":\"Northland Brewing is a Duluth craft brewery.\",\"confidence\":\"high\"}\n```")
	s := NewLLMSummarizer(m, resilience.NoopGate{}, "", 0, 20)

	fb := "https://facebook.com/northland"
	out := s.Summarize(context.Background(), SummaryInput{
		Ref:     northland,
		Filings: sampleFilings(),
		Website: "https://northlandbrewing.com",
		Social:  &model.Social{Facebook: &fb},
		Pages: []model.CrawledPage{
			{URL: "https://northlandbrewing.com/contact", Text: "Call us", Type: model.PageTypeContact},
			{URL: "https://northlandbrewing.com/", Text: strings.Repeat("x", 50), Type: model.PageTypeHomepage},
		},
	})
	require.NotNil(t, out.Text)
	assert.Equal(t, "Northland Brewing is a Duluth craft brewery.", *out.Text)
	assert.Equal(t, model.ConfidenceHigh, out.Confidence)

	prompt := promptOf(m, 0)
	assert.Contains(t, prompt, "Total filings: 40")
	assert.Contains(t, prompt, "First filing: 2019-02-01")
	assert.Contains(t, prompt, "Brands: Northland IPA (20)")
	assert.Contains(t, prompt, "Categories: beer (35), cider (5)")
	assert.Contains(t, prompt, "States: MN, WI")
	assert.Contains(t, prompt, "Website: https://northlandbrewing.com")
	assert.Contains(t, prompt, "Social: https://facebook.com/northland")
	assert.Contains(t, prompt, "Also known as: Pearlhead Holdings")
	// Homepage is listed before contact and clipped to the page budget.
	assert.Less(t, strings.Index(prompt, "[homepage]"), strings.Index(prompt, "[contact]"))
	assert.Contains(t, prompt, strings.Repeat("x", 20)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("x", 21))
}

func TestLLMSummarizer_NoPagesSaysSo(t *testing.T) {
	m := llmReturning(t, `{"summary":"Files mostly beer labels.","confidence":"low"}`)
	s := NewLLMSummarizer(m, resilience.NoopGate{}, "", 0, 0)

	out := s.Summarize(context.Background(), SummaryInput{Ref: northland, Filings: sampleFilings()})
	require.NotNil(t, out.Text)
	assert.Equal(t, model.ConfidenceLow, out.Confidence)
	assert.Contains(t, promptOf(m, 0), "WEBSITE CONTENT\n(none available)")
}

func TestLLMSummarizer_Failures(t *testing.T) {
	t.Run("llm error", func(t *testing.T) {
		m := anthropicmocks.NewMockClient(t)
		m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()
		out := NewLLMSummarizer(m, nil, "", 0, 0).Summarize(context.Background(), SummaryInput{Ref: northland})
		assert.Nil(t, out.Text)
		assert.Equal(t, model.ConfidenceLow, out.Confidence)
	})
	t.Run("not json", func(t *testing.T) {
		out := NewLLMSummarizer(llmReturning(t, "I cannot help"), nil, "", 0, 0).Summarize(context.Background(), SummaryInput{Ref: northland})
		assert.Nil(t, out.Text)
		assert.Equal(t, model.ConfidenceLow, out.Confidence)
	})
}

func TestParseSummary(t *testing.T) {
	out, ok := parseSummary(`{"summary":"  ","confidence":"high"}`)
	assert.True(t, ok)
	assert.Nil(t, out.Text)
	assert.Equal(t, model.ConfidenceLow, out.Confidence)

	out, ok = parseSummary(`{"summary":null,"confidence":"medium"}`)
	assert.True(t, ok)
	assert.Nil(t, out.Text)

	out, ok = parseSummary(`{"summary":"Acme makes widgets.","confidence":"Medium"}`)
	assert.True(t, ok)
	assert.Equal(t, model.ConfidenceMedium, out.Confidence)

	out, ok = parseSummary(`{"summary":"Acme makes widgets.","confidence":"certain"}`)
	assert.True(t, ok)
	assert.Equal(t, model.ConfidenceLow, out.Confidence)

	_, ok = parseSummary(`{"summary":`)
	assert.False(t, ok)
}
