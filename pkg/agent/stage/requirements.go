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
)

const (
	prefixComplete  = "COMPLETE:"
	prefixQuestions = "QUESTIONS:"
)

// Defaults filled in when the analyst hands back a plain-text purpose
// summary instead of the full JSON requirements object.
var (
	defaultTriggerType   = "schedule"
	defaultRequiredNodes = []string{"Schedule Trigger", "HTTP Request"}
	defaultDataFlow      = []string{"Trigger -> Process -> Output"}
)

// RequirementsAdapter wraps the Requirements Analyst stage. Beyond
// classification it validates internal completeness of the produced
// requirements: a nominal COMPLETE with open questions or a missing purpose
// is downgraded to NeedsClarification, never trusted.
type RequirementsAdapter struct {
	provider        llm.LLMProvider
	systemPrompt    string
	forceCompleteAt int
	cfg             Config
}

func NewRequirementsAdapter(provider llm.LLMProvider, systemPrompt string, forceCompleteAt int, cfg Config) *RequirementsAdapter {
	return &RequirementsAdapter{
		provider:        provider,
		systemPrompt:    systemPrompt,
		forceCompleteAt: forceCompleteAt,
		cfg:             cfg.withDefaults(),
	}
}

func (a *RequirementsAdapter) Name() string { return "requirements" }

func (a *RequirementsAdapter) Invoke(ctx context.Context, snapshot *store.Session) agent.StageOutcome {
	messages := prompt.ForRequirements(a.systemPrompt, a.forceCompleteAt, snapshot)
	outcome := invokeWithRetry(ctx, a.provider, a.cfg, messages, a.parse, snapshot)

	// After enough exchanges the conversation must move on; the generator
	// copes with missing details better than an endless interview does.
	if outcome.Kind == agent.OutcomeNeedsClarification && snapshot.UserMessageCount() >= a.forceCompleteAt {
		return agent.ProducedRequirements(forcedRequirements(snapshot))
	}
	return outcome
}

// requirementsDoc is the JSON shape the analyst may emit after COMPLETE:.
type requirementsDoc struct {
	WorkflowPurpose     string   `json:"workflow_purpose"`
	TriggerType         string   `json:"trigger_type"`
	RequiredNodes       []string `json:"required_nodes"`
	DataFlow            []string `json:"data_flow"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	IsComplete          *bool    `json:"is_complete"`
}

func (a *RequirementsAdapter) parse(raw string, snapshot *store.Session) (agent.StageOutcome, error) {
	text := strings.TrimSpace(raw)

	if rest, ok := cutPrefixFold(text, prefixQuestions); ok {
		question := strings.TrimSpace(rest)
		if question == "" {
			return agent.StageOutcome{}, fmt.Errorf("%w: QUESTIONS with no question text", errUnparseable)
		}
		return agent.NeedsClarification(question), nil
	}

	rest, ok := cutPrefixFold(text, prefixComplete)
	if !ok {
		return agent.StageOutcome{}, fmt.Errorf("%w: missing COMPLETE/QUESTIONS prefix", errUnparseable)
	}

	body := strings.TrimSpace(rest)
	req := &store.Requirements{
		UserQuery:  snapshot.LastUserMessage(),
		IsComplete: true,
	}

	if strings.HasPrefix(body, "{") {
		var doc requirementsDoc
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return agent.StageOutcome{}, fmt.Errorf("%w: COMPLETE body is not valid JSON: %v", errUnparseable, err)
		}
		req.WorkflowPurpose = strings.TrimSpace(doc.WorkflowPurpose)
		req.TriggerType = strings.TrimSpace(doc.TriggerType)
		req.RequiredNodes = doc.RequiredNodes
		req.DataFlow = doc.DataFlow
		req.ClarifyingQuestions = doc.ClarifyingQuestions
		if doc.IsComplete != nil && !*doc.IsComplete {
			// Model claims completion in the prefix but not in the document.
			return agent.NeedsClarification(clarifyFromQuestions(doc.ClarifyingQuestions)), nil
		}
	} else {
		// Plain-text summary: accept it as the purpose, fill sane defaults.
		req.WorkflowPurpose = body
	}

	if req.WorkflowPurpose == "" {
		return agent.NeedsClarification("Could you describe what the workflow should accomplish?"), nil
	}
	if len(req.ClarifyingQuestions) > 0 {
		return agent.NeedsClarification(clarifyFromQuestions(req.ClarifyingQuestions)), nil
	}

	if req.TriggerType == "" {
		req.TriggerType = defaultTriggerType
	}
	if len(req.RequiredNodes) == 0 {
		req.RequiredNodes = append([]string(nil), defaultRequiredNodes...)
	}
	if len(req.DataFlow) == 0 {
		req.DataFlow = append([]string(nil), defaultDataFlow...)
	}

	return agent.ProducedRequirements(req), nil
}

func forcedRequirements(snapshot *store.Session) *store.Requirements {
	return &store.Requirements{
		UserQuery:       snapshot.LastUserMessage(),
		WorkflowPurpose: fmt.Sprintf("Workflow based on user conversation: %s", snapshot.LastUserMessage()),
		TriggerType:     defaultTriggerType,
		RequiredNodes:   append([]string(nil), defaultRequiredNodes...),
		DataFlow:        append([]string(nil), defaultDataFlow...),
		IsComplete:      true,
	}
}

func clarifyFromQuestions(questions []string) string {
	if len(questions) == 0 {
		return "Could you share a bit more detail about what the workflow should do?"
	}
	return strings.Join(questions, "\n")
}

// cutPrefixFold is strings.CutPrefix with ASCII case-insensitive matching,
// since models are inconsistent about prefix casing.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return s, false
	}
	if strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
