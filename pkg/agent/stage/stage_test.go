package stage

import (
	"context"
	"errors"
	"time"

	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/store"
)

// scriptedProvider returns canned responses in order, repeating the last one
// once the script runs out.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

var errDown = errors.New("connection refused")

// fastConfig keeps retry backoff negligible in tests.
func fastConfig() Config {
	return Config{
		MaxRetries:  2,
		MaxInterval: time.Millisecond,
		CallTimeout: time.Second,
	}
}

func sessionWithUserMessages(contents ...string) *store.Session {
	sess := &store.Session{ID: "test-session", Stage: store.StageRequirements}
	now := time.Now()
	for i, c := range contents {
		sess.AppendMessage(store.RoleUser, c, now.Add(time.Duration(i)*time.Second))
	}
	return sess
}
