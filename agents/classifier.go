package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"med-lab/domain"
	"med-lab/llm"
	"med-lab/triage"
)

const classifierPrompt = "You route medical questions. Reply with a comma separated " +
	"subset of these labels and nothing else: general, dosage, interactions, side_effects. " +
	"Pick every label the question touches, most relevant first."

// Classifier decides which intents a text query touches. Keyword routing
// answers most queries without a network call; the model is only asked
// when no routing keyword fires.
type Classifier struct {
	triage *triage.Triage
	client llm.Client
	log    *slog.Logger
}

func NewClassifier(t *triage.Triage, client llm.Client, log *slog.Logger) *Classifier {
	return &Classifier{triage: t, client: client, log: log}
}

// Classify never fails: when both keyword routing and the model come up
// empty, the query is treated as a general question.
func (c *Classifier) Classify(ctx context.Context, query string) []domain.Intent {
	if intents := c.triage.Intents(query); len(intents) > 0 {
		return intents
	}

	intents, err := c.classifyWithModel(ctx, query)
	if err != nil {
		c.log.Warn("intent classification fell back to general", slog.Any("error", err))
		return []domain.Intent{domain.IntentGeneral}
	}
	if len(intents) == 0 {
		return []domain.Intent{domain.IntentGeneral}
	}
	return intents
}

func (c *Classifier) classifyWithModel(ctx context.Context, query string) ([]domain.Intent, error) {
	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifierPrompt},
			{Role: llm.RoleUser, Content: strings.TrimSpace(query)},
		},
		Temperature: 0,
		MaxTokens:   32,
	})
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}
	return parseIntents(resp.Content), nil
}

// parseIntents keeps only known text intents, deduplicated, in the order
// the model listed them. Anything else the model said is dropped.
func parseIntents(reply string) []domain.Intent {
	known := make(map[domain.Intent]bool, len(domain.TextIntents()))
	for _, intent := range domain.TextIntents() {
		known[intent] = true
	}

	var intents []domain.Intent
	seen := make(map[domain.Intent]bool)
	for _, part := range strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' '
	}) {
		candidate := domain.Intent(strings.ToLower(strings.Trim(part, ".:;")))
		if known[candidate] && !seen[candidate] {
			seen[candidate] = true
			intents = append(intents, candidate)
		}
	}
	return intents
}
