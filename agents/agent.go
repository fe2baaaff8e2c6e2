// Package agents holds the thin domain experts of the assistant.
// Each agent shapes a prompt for the hosted model and normalizes the
// free-text reply; none of them contains medical knowledge of its own.
package agents

import (
	"context"

	"med-lab/domain"
	"med-lab/knowledge"
	"med-lab/llm"
)

// Consultation is the shared input handed to every selected agent.
type Consultation struct {
	Query    string
	Language string
	History  []domain.Message
	Cards    []knowledge.Card
	Image    *llm.Image
	Caption  string
}

// Finding is one agent's contribution to the final answer.
type Finding struct {
	Agent   string
	Intent  domain.Intent
	Content string
	Model   string
	Usage   llm.Usage
}

type Agent interface {
	Name() string
	Intent() domain.Intent
	Consult(ctx context.Context, c Consultation) (Finding, error)
}

// Registry resolves intents to agents.
type Registry struct {
	agents map[domain.Intent]Agent
}

func NewRegistry(agents ...Agent) *Registry {
	byIntent := make(map[domain.Intent]Agent, len(agents))
	for _, a := range agents {
		byIntent[a.Intent()] = a
	}
	return &Registry{agents: byIntent}
}

// ForIntents returns the agents for the given intents, skipping unknowns,
// preserving the input order.
func (r *Registry) ForIntents(intents []domain.Intent) []Agent {
	var selected []Agent
	for _, intent := range intents {
		if a, ok := r.agents[intent]; ok {
			selected = append(selected, a)
		}
	}
	return selected
}

func (r *Registry) Get(intent domain.Intent) (Agent, bool) {
	a, ok := r.agents[intent]
	return a, ok
}
