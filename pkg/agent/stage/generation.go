package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/prompt"
	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/store"

	"github.com/google/uuid"
)

const (
	defaultMaxResults = 5
	maxResultsCeiling = 10
)

// GenerationAdapter wraps the Workflow Generator stage. Its output is always
// a single JSON object: either a tool_calls request for reference lookups or
// the final workflow document. Anything else is unparseable.
type GenerationAdapter struct {
	provider     llm.LLMProvider
	systemPrompt string
	cfg          Config
}

func NewGenerationAdapter(provider llm.LLMProvider, systemPrompt string, cfg Config) *GenerationAdapter {
	return &GenerationAdapter{
		provider:     provider,
		systemPrompt: systemPrompt,
		cfg:          cfg.withDefaults(),
	}
}

func (a *GenerationAdapter) Name() string { return "generation" }

func (a *GenerationAdapter) Invoke(ctx context.Context, snapshot *store.Session) agent.StageOutcome {
	messages := prompt.ForGeneration(a.systemPrompt, snapshot)
	return invokeWithRetry(ctx, a.provider, a.cfg, messages, a.parse, snapshot)
}

type toolCallSpec struct {
	Tool       string                 `json:"tool"`
	Query      string                 `json:"query"`
	MaxResults int                    `json:"max_results"`
	Filters    map[string]interface{} `json:"filters"`
}

type generationProbe struct {
	ToolCalls []toolCallSpec `json:"tool_calls"`
}

func (a *GenerationAdapter) parse(raw string, _ *store.Session) (agent.StageOutcome, error) {
	body := stripCodeFence(raw)
	if !strings.HasPrefix(body, "{") || !json.Valid([]byte(body)) {
		return agent.StageOutcome{}, fmt.Errorf("%w: generation output is not a JSON object", errUnparseable)
	}

	var probe generationProbe
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return agent.StageOutcome{}, fmt.Errorf("%w: %v", errUnparseable, err)
	}

	if len(probe.ToolCalls) == 0 {
		return agent.ProducedArtifact(json.RawMessage(body)), nil
	}

	requests := make([]store.ToolCallRequest, 0, len(probe.ToolCalls))
	for _, tc := range probe.ToolCalls {
		tool := strings.TrimSpace(tc.Tool)
		query := strings.TrimSpace(tc.Query)
		if tool == "" || query == "" {
			return agent.StageOutcome{}, fmt.Errorf("%w: tool call missing tool or query", errUnparseable)
		}
		maxResults := tc.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}
		if maxResults > maxResultsCeiling {
			maxResults = maxResultsCeiling
		}
		requests = append(requests, store.ToolCallRequest{
			ID:         uuid.New().String(),
			Tool:       tool,
			Query:      query,
			MaxResults: maxResults,
			Filters:    tc.Filters,
		})
	}
	return agent.NeedsTools(requests), nil
}

// stripCodeFence removes a surrounding markdown fence, which models add
// despite instructions not to.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// Drop a language tag like ```json.
		first := strings.TrimSpace(text[:nl])
		if first == "json" || first == "" {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
