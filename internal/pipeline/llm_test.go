package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/anthropic"
	anthropicmocks "github.com/sells-group/company-intel/pkg/anthropic/mocks"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"prose around", `Here you go: {"s":"x"} hope that helps`, `{"s":"x"}`, true},
		{"brace in string", `{"s":"a } b","n":1}`, `{"s":"a } b","n":1}`, true},
		{"escaped quote", `{"s":"say \"hi\" }"}`, `{"s":"say \"hi\" }"}`, true},
		{"none", `NONE`, "", false},
		{"unbalanced", `{"a":`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLM_Complete(t *testing.T) {
	m := anthropicmocks.NewMockClient(t)
	m.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "test-model" &&
			req.MaxTokens == 50 &&
			req.System == "sys" &&
			req.Temperature != nil && *req.Temperature == 0 &&
			len(req.Messages) == 1 && req.Messages[0].Role == "user" && req.Messages[0].Content == "hello"
	})).Return(textResponse("  answer \n"), nil).Once()

	l := newLLM(m, resilience.NoopGate{}, "test-model")
	got, err := l.complete(context.Background(), "step", "sys", "hello", 50)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
}

func TestLLM_Complete_Error(t *testing.T) {
	m := anthropicmocks.NewMockClient(t)
	m.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	l := newLLM(m, nil, "")
	assert.Equal(t, DefaultModel, l.model)

	_, err := l.complete(context.Background(), "summarize", "", "p", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize llm call")
}

func TestLLM_Complete_NoClient(t *testing.T) {
	_, err := newLLM(nil, nil, "").complete(context.Background(), "x", "", "p", 10)
	assert.Error(t, err)
}
