package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"med-lab/errors"
	"med-lab/llm"
)

const synthesizerPrompt = "You merge the notes of several medical assistants into one " +
	"answer for the user. Keep every concrete fact, drop repetition, keep the tone " +
	"plain and calm. Do not add information that is not in the notes. Do not add a " +
	"disclaimer, one is appended separately."

// Synthesizer turns the findings of the selected agents into the single
// reply shown to the user.
type Synthesizer struct {
	client llm.Client
	log    *slog.Logger
}

func NewSynthesizer(client llm.Client, log *slog.Logger) *Synthesizer {
	return &Synthesizer{client: client, log: log}
}

// Synthesize merges findings and appends the disclaimer exactly once.
// A single finding goes through untouched. Several findings are merged by
// the model; if that call fails the sections are concatenated instead, so
// one flaky request never loses the work of the agents that succeeded.
func (s *Synthesizer) Synthesize(ctx context.Context, query, language string, findings []Finding) (string, error) {
	if len(findings) == 0 {
		return "", errors.ErrEmptyAnswer
	}

	if len(findings) == 1 {
		return withDisclaimer(findings[0].Content), nil
	}

	merged, err := s.merge(ctx, query, language, findings)
	if err != nil {
		s.log.Warn("answer merge failed, concatenating sections", slog.Any("error", err))
		merged = concatenate(findings)
	}
	return withDisclaimer(merged), nil
}

func (s *Synthesizer) merge(ctx context.Context, query, language string, findings []Finding) (string, error) {
	var b strings.Builder
	b.WriteString("## Question\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\n## Assistant notes\n")
	for _, f := range findings {
		b.WriteString(fmt.Sprintf("### %s\n%s\n", f.Agent, f.Content))
	}
	if language != "" {
		b.WriteString(fmt.Sprintf("\nAnswer in %s.\n", language))
	}

	resp, err := s.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: synthesizerPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("merge findings: %w", err)
	}
	merged := sanitizeReply(resp.Content)
	if merged == "" {
		return "", errors.ErrEmptyAnswer
	}
	return merged, nil
}

func concatenate(findings []Finding) string {
	sections := make([]string, 0, len(findings))
	for _, f := range findings {
		sections = append(sections, fmt.Sprintf("**%s**\n%s", sectionTitle(f.Agent), f.Content))
	}
	return strings.Join(sections, "\n\n")
}

func sectionTitle(agent string) string {
	title := strings.ReplaceAll(agent, "_", " ")
	if title == "" {
		return title
	}
	return strings.ToUpper(title[:1]) + title[1:]
}

func withDisclaimer(answer string) string {
	answer = strings.TrimSpace(answer)
	if strings.Contains(answer, Disclaimer) {
		return answer
	}
	return answer + "\n\n" + Disclaimer
}
