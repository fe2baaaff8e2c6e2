package agents

import (
	"context"
	"fmt"
	"strings"

	"med-lab/domain"
	"med-lab/errors"
	"med-lab/llm"
)

// visionAgent handles consultations that carry an image. It differs from
// PromptAgent in two ways: the request pins the vision-capable model, and
// the image travels inline with the user message.
type visionAgent struct {
	name         string
	intent       domain.Intent
	systemPrompt string
	client       llm.Client
	model        string
}

func (a *visionAgent) Name() string          { return a.name }
func (a *visionAgent) Intent() domain.Intent { return a.intent }

func (a *visionAgent) Consult(ctx context.Context, c Consultation) (Finding, error) {
	if c.Image == nil {
		return Finding{}, fmt.Errorf("agent %s: %w", a.name, errors.ErrInvalidPayload)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Caption))
	if b.Len() == 0 {
		b.WriteString("Describe what is on the attached picture.")
	}
	if c.Language != "" {
		b.WriteString(fmt.Sprintf("\n\nAnswer in %s.", c.Language))
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		Model: a.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.systemPrompt},
			{Role: llm.RoleUser, Content: b.String(), Images: []llm.Image{*c.Image}},
		},
		Temperature: 0.1,
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

// NewIdentificationAgent reads pill and packaging photos.
func NewIdentificationAgent(client llm.Client, model string) Agent {
	return &visionAgent{
		name:   "identification",
		intent: domain.IntentIdentification,
		systemPrompt: sharedGuardrails +
			" The user sends a photo of a pill, blister pack or medicine box. " +
			"Describe the visible imprint, shape, color and packaging text, then " +
			"name the most likely medicine and how confident you are. If the photo " +
			"is not readable enough to identify anything, say so instead of guessing.",
		client: client,
		model:  model,
	}
}

// NewDocumentAgent reads prescriptions and medical paperwork.
func NewDocumentAgent(client llm.Client, model string) Agent {
	return &visionAgent{
		name:   "document",
		intent: domain.IntentDocument,
		systemPrompt: sharedGuardrails +
			" The user sends a photo of a prescription, label or medical document. " +
			"Transcribe the medicine names, strengths and instructions you can read, " +
			"then restate them in plain language. Mark anything illegible as such " +
			"rather than inventing it.",
		client: client,
		model:  model,
	}
}
