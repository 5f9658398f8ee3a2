package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/anthropic"
)

// DefaultModel is used when a stage is built without an explicit model.
const DefaultModel = "claude-haiku-4-5-20251001"

// llm issues single-turn completions through the shared gate.
type llm struct {
	client anthropic.Client
	gate   resilience.Gate
	model  string
}

func newLLM(client anthropic.Client, gate resilience.Gate, model string) llm {
	if gate == nil {
		gate = resilience.NoopGate{}
	}
	if model == "" {
		model = DefaultModel
	}
	return llm{client: client, gate: gate, model: model}
}

// complete sends one user prompt at temperature zero and returns the text
// of the reply. step names the call in usage logs.
func (l llm) complete(ctx context.Context, step, system, prompt string, maxTokens int64) (string, error) {
	if l.client == nil {
		return "", eris.New("pipeline: no llm client")
	}
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, l.gate, resilience.ServiceLLM, step, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return l.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: %s llm call", step)
	}
	resp.Usage.LogCost(l.model, step)
	return strings.TrimSpace(resp.Text()), nil
}

// extractJSON returns the first balanced JSON object in s, tolerating code
// fences and prose around it.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
