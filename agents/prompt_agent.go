package agents

import (
	"context"
	"fmt"

	"med-lab/domain"
	"med-lab/llm"
)

// PromptAgent is a text-only agent: a name, an intent, and a system prompt.
// All four text intents share this implementation because the agents truly
// differ only in the instructions sent to the model.
type PromptAgent struct {
	name         string
	intent       domain.Intent
	systemPrompt string
	client       llm.Client
	temperature  float64
}

func newPromptAgent(name string, intent domain.Intent, systemPrompt string, client llm.Client) *PromptAgent {
	return &PromptAgent{
		name:         name,
		intent:       intent,
		systemPrompt: systemPrompt,
		client:       client,
		temperature:  0.2,
	}
}

func (a *PromptAgent) Name() string          { return a.name }
func (a *PromptAgent) Intent() domain.Intent { return a.intent }

func (a *PromptAgent) Consult(ctx context.Context, c Consultation) (Finding, error) {
	resp, err := a.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.systemPrompt},
			{Role: llm.RoleUser, Content: buildUserPrompt(c)},
		},
		Temperature: a.temperature,
	})
	if err != nil {
		return Finding{}, fmt.Errorf("agent %s: %w", a.name, err)
	}

	return Finding{
		Agent:   a.name,
		Intent:  a.intent,
		Content: sanitizeReply(resp.Content),
		Model:   resp.Model,
		Usage:   resp.Usage,
	}, nil
}

const sharedGuardrails = "You are part of a medical information assistant. " +
	"Give educational information only, never a diagnosis or a prescription. " +
	"Prefer the provided reference monographs over your own recall; when they " +
	"conflict, follow the monographs. If the question cannot be answered " +
	"safely without a clinician, say so plainly. Keep the answer under 200 words."

func NewGeneralAgent(client llm.Client) *PromptAgent {
	return newPromptAgent("general", domain.IntentGeneral, sharedGuardrails+
		" Explain what the medicine is, what it treats, and how it is commonly used.", client)
}

func NewDosageAgent(client llm.Client) *PromptAgent {
	return newPromptAgent("dosage", domain.IntentDosage, sharedGuardrails+
		" Focus on typical adult dosing, maximum daily amounts, and what to do "+
		"about a missed or doubled dose. State explicitly that exact dosing "+
		"depends on the prescriber's instructions.", client)
}

func NewInteractionsAgent(client llm.Client) *PromptAgent {
	return newPromptAgent("interactions", domain.IntentInteractions, sharedGuardrails+
		" Focus on interactions between the medicines mentioned, including food "+
		"and alcohol. Classify each interaction as avoid, caution, or usually fine, "+
		"and say why in one sentence.", client)
}

func NewSideEffectsAgent(client llm.Client) *PromptAgent {
	return newPromptAgent("side_effects", domain.IntentSideEffects, sharedGuardrails+
		" Focus on common and serious side effects. Separate the ones that pass "+
		"on their own from the ones that need urgent medical attention.", client)
}
