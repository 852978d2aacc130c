// Package agent talks to the external text-generation service. Replies are
// returned as raw text; structuring them is the normalizer's job.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"poetica-backend/internal/apperr"
	"poetica-backend/internal/metrics"
)

const unavailableMessage = "No response from the agent. Please try again."

// Agent sends one prompt and returns the reply text.
type Agent interface {
	Provider() string
	Call(ctx context.Context, prompt string) (string, error)
}

// Registry resolves opaque agent identifiers to configured agents.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]Agent
	timeout time.Duration
}

// NewRegistry bounds every call by timeout when it is positive.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{
		agents:  make(map[string]Agent),
		timeout: timeout,
	}
}

func (r *Registry) Register(agentID string, a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentID] = a
}

func (r *Registry) lookup(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// Call sends prompt to the agent registered as agentID. Every failure is an
// *apperr.Error of kind AgentUnavailable.
func (r *Registry) Call(ctx context.Context, agentID, prompt string) (string, error) {
	a, ok := r.lookup(agentID)
	if !ok {
		return "", apperr.Wrap(apperr.KindAgentUnavailable, unavailableMessage,
			fmt.Errorf("unknown agent %q", agentID))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := a.Call(ctx, prompt)
	metrics.AgentLatency.WithLabelValues(a.Provider()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.AgentCalls.WithLabelValues(a.Provider(), "error").Inc()
		if apperr.KindOf(err) != apperr.KindUnknown {
			return "", err
		}
		return "", apperr.Wrap(apperr.KindAgentUnavailable, unavailableMessage, err)
	case reply == "":
		metrics.AgentCalls.WithLabelValues(a.Provider(), "empty").Inc()
	default:
		metrics.AgentCalls.WithLabelValues(a.Provider(), "ok").Inc()
	}
	return reply, nil
}
