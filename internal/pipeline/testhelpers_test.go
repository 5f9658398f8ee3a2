package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/company-intel/internal/fetch"
	"github.com/sells-group/company-intel/pkg/anthropic"
	anthropicmocks "github.com/sells-group/company-intel/pkg/anthropic/mocks"
)

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

// llmReturning returns a mock client that answers every call with text.
func llmReturning(t *testing.T, text string) *anthropicmocks.MockClient {
	t.Helper()
	m := anthropicmocks.NewMockClient(t)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(text), nil)
	return m
}

// promptOf returns the user prompt of the nth recorded call.
func promptOf(m *anthropicmocks.MockClient, n int) string {
	req := m.Calls[n].Arguments.Get(1).(anthropic.MessageRequest)
	return req.Messages[0].Content
}

// fakeFetcher serves pages from a map and records every requested URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fetch.Page
	calls []string
}

func newFakeFetcher(pages map[string]fetch.Page) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, maxChars int) (fetch.Page, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	p, ok := f.pages[url]
	if !ok {
		return fetch.Page{}, false
	}
	p.URL = url
	if p.FinalURL == "" {
		p.FinalURL = url
	}
	if r := []rune(p.Text); maxChars > 0 && len(r) > maxChars {
		p.Text = string(r[:maxChars])
	}
	return p, true
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
