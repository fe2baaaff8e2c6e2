package triage

import (
	"fmt"

	"med-lab/domain"
)

// Triage bundles the emergency matcher and the per-intent routing matchers.
type Triage struct {
	emergency Matcher
	routing   map[domain.Intent]Matcher
	languages []string
}

// New builds the automatons from the loader's keyword lists.
// Building is CPU work and is meant to happen once, during the
// orchestrator's preparation phase.
func New(loader *KeywordLoader) (*Triage, error) {
	data, err := loader.LoadAll("keywords/emergency")
	if err != nil {
		return nil, fmt.Errorf("loading emergency keywords: %w", err)
	}

	emergency, err := NewMatcher(data.Words)
	if err != nil {
		return nil, fmt.Errorf("building emergency matcher: %w", err)
	}

	lists, err := loader.LoadIntentLists("keywords/routing")
	if err != nil {
		return nil, fmt.Errorf("loading routing keywords: %w", err)
	}

	routing := make(map[domain.Intent]Matcher, len(lists))
	for name, words := range lists {
		m, err := NewMatcher(words)
		if err != nil {
			return nil, fmt.Errorf("building %s matcher: %w", name, err)
		}
		routing[domain.Intent(name)] = m
	}

	return &Triage{emergency: emergency, routing: routing, languages: data.Languages}, nil
}

// Emergency returns the urgent-care terms found in the query, if any.
func (t *Triage) Emergency(text string) []string {
	return t.emergency.Match(text)
}

// Intents returns the intents whose vocabulary the query touches,
// in the stable order of domain.TextIntents. An empty result means
// the classifier must decide.
func (t *Triage) Intents(text string) []domain.Intent {
	var intents []domain.Intent
	for _, intent := range domain.TextIntents() {
		matcher, ok := t.routing[intent]
		if !ok {
			continue
		}
		if found := matcher.Match(text); len(found) > 0 {
			intents = append(intents, intent)
		}
	}
	return intents
}

// Languages lists the emergency dictionaries that were loaded.
func (t *Triage) Languages() []string {
	return t.languages
}
