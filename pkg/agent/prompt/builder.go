// Package prompt assembles provider-agnostic message histories for the two
// reasoning stages from a session snapshot.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/store"
)

// historyExcerptLen caps how much of each prior turn is replayed to the
// Requirements analyst. The latest message is always passed in full.
const historyExcerptLen = 200

// ForRequirements builds the analyst call: the stage system prompt (which
// takes the forced-completion exchange number) plus a conversation context
// block mirroring what the analyst needs to judge completeness.
func ForRequirements(systemPrompt string, forceCompleteAt int, sess *store.Session) []llm.Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Current conversation exchange: %d\n", sess.UserMessageCount())
	fmt.Fprintf(&b, "Latest user message: %s\n\n", sess.LastUserMessage())

	if len(sess.Messages) > 1 {
		b.WriteString("Previous conversation context:\n")
		for _, m := range sess.Messages[:len(sess.Messages)-1] {
			fmt.Fprintf(&b, "%s: %s\n", displayRole(m.Role), excerpt(m.Content, historyExcerptLen))
		}
	}

	return []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPrompt, forceCompleteAt)},
		{Role: "user", Content: b.String()},
	}
}

// ForGeneration builds the generator call: stage system prompt, requirements
// summary, full conversation history, and any reference material already
// retrieved this turn. Failed retrievals are included as explicit
// placeholders so the generator can reason about partial results.
func ForGeneration(systemPrompt string, sess *store.Session) []llm.Message {
	var b strings.Builder

	b.WriteString("=== REQUIREMENTS ===\n")
	if sess.Requirements != nil {
		reqJSON, err := json.Marshal(sess.Requirements)
		if err == nil {
			b.Write(reqJSON)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\n=== CONVERSATION HISTORY ===\n")
	for _, m := range sess.Messages {
		fmt.Fprintf(&b, "%s: %s\n", displayRole(m.Role), m.Content)
	}

	if len(sess.ToolOutputs) > 0 {
		b.WriteString("\n=== RETRIEVED REFERENCE MATERIAL ===\n")
		for _, res := range orderedResults(sess.ToolOutputs) {
			fmt.Fprintf(&b, "[%s] query: %q\n", res.Tool, res.Query)
			if res.Failed {
				fmt.Fprintf(&b, "(retrieval failed: %s)\n", res.Error)
				continue
			}
			for _, sn := range res.Snippets {
				fmt.Fprintf(&b, "- %s: %s\n", sn.Title, sn.Content)
			}
		}
	}

	b.WriteString("\nGenerate the workflow now, or request reference lookups first.")

	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// orderedResults returns tool results in a stable order; map iteration must
// not leak into the prompt or retries become non-reproducible.
func orderedResults(outputs map[string]store.ToolResult) []store.ToolResult {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	results := make([]store.ToolResult, 0, len(keys))
	for _, k := range keys {
		results = append(results, outputs[k])
	}
	return results
}

// excerpt truncates to at most max bytes without splitting a rune.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func displayRole(role string) string {
	switch role {
	case store.RoleUser:
		return "User"
	case store.RoleSystem:
		return "System"
	default:
		return "Assistant"
	}
}
