// Package stage wraps the two reasoning stages behind a uniform adapter
// contract. An adapter owns the full boundary against its model: prompt
// assembly, bounded retry, and classification of raw output into a
// StageOutcome. Unstructured model text never leaves this package.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/store"

	"github.com/cenkalti/backoff/v5"
)

// Adapter is the uniform contract the orchestrator invokes. Failures are
// classified, never raised: the returned outcome is always one of the five
// variants, with OutcomeFailed covering both exhausted retries and
// unrecognizable output.
type Adapter interface {
	Name() string
	Invoke(ctx context.Context, snapshot *store.Session) agent.StageOutcome
}

// Config tunes a stage adapter's model selection and retry policy.
type Config struct {
	Model       string
	MaxRetries  uint          // retries after the first attempt
	MaxInterval time.Duration // backoff cap
	CallTimeout time.Duration // per model call
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 3 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 120 * time.Second
	}
	return c
}

// errUnparseable marks output that did not match any recognized shape.
// Parse failures are retried like transient failures (a fresh sample may
// parse), but exhaust into a distinct reason code.
var errUnparseable = errors.New("unparseable stage output")

type parseFunc func(raw string, snapshot *store.Session) (agent.StageOutcome, error)

// invokeWithRetry runs the model call + parse cycle under exponential
// backoff. It never guesses: after retries the error is folded into the
// matching Failed variant.
func invokeWithRetry(
	ctx context.Context,
	provider llm.LLMProvider,
	cfg Config,
	messages []llm.Message,
	parse parseFunc,
	snapshot *store.Session,
) agent.StageOutcome {
	var lastErr error

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = cfg.MaxInterval

	outcome, err := backoff.Retry(ctx, func() (agent.StageOutcome, error) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()

		raw, err := provider.Chat(callCtx, messages, llm.WithModel(cfg.Model))
		if err != nil {
			lastErr = fmt.Errorf("stage call: %w", err)
			return agent.StageOutcome{}, lastErr
		}

		oc, err := parse(raw, snapshot)
		if err != nil {
			lastErr = err
			return agent.StageOutcome{}, err
		}
		return oc, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(cfg.MaxRetries+1))

	if err == nil {
		return outcome
	}
	if lastErr == nil {
		lastErr = err
	}
	if errors.Is(lastErr, errUnparseable) {
		return agent.Failed(agent.ReasonUnparseableOutput, lastErr.Error())
	}
	return agent.Failed(agent.ReasonStageUnavailable, lastErr.Error())
}
