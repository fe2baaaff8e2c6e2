package agents

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// historyDepth bounds how many transcript entries feed the prompt.
	historyDepth = 6
	// cardExcerpt bounds how much of a monograph goes into the prompt.
	cardExcerpt = 800
)

// Disclaimer is appended to every synthesized answer, exactly once.
const Disclaimer = "This information is educational and is not a substitute for professional " +
	"medical advice. Always consult a doctor or pharmacist before taking or changing any medicine."

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\n?(.*?)\n?```$")

// buildUserPrompt assembles the query plus grounding context the way the
// remote model expects it: question first, then knowledge excerpts, then a
// short history window, then the language directive.
func buildUserPrompt(c Consultation) string {
	var b strings.Builder
	b.WriteString("## Question\n")
	b.WriteString(strings.TrimSpace(c.Query))
	b.WriteString("\n")

	if len(c.Cards) > 0 {
		b.WriteString("\n## Reference monographs\n")
		for i, card := range c.Cards {
			b.WriteString(fmt.Sprintf("[%d] %s: %s\n", i+1, card.Title, truncate(card.Content, cardExcerpt)))
		}
	}

	if len(c.History) > 0 {
		b.WriteString("\n## Recent conversation\n")
		start := 0
		if len(c.History) > historyDepth {
			start = len(c.History) - historyDepth
		}
		for _, msg := range c.History[start:] {
			b.WriteString(fmt.Sprintf("%s: %s\n", msg.Role, truncate(msg.Content, 200)))
		}
	}

	if c.Language != "" {
		b.WriteString(fmt.Sprintf("\nAnswer in %s.\n", c.Language))
	}
	return b.String()
}

// sanitizeReply normalizes the model's free-text output for display:
// unwraps code fences, trims whitespace, collapses blank-line runs.
func sanitizeReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if m := fenceRe.FindStringSubmatch(reply); m != nil {
		reply = strings.TrimSpace(m[1])
	}
	for strings.Contains(reply, "\n\n\n") {
		reply = strings.ReplaceAll(reply, "\n\n\n", "\n\n")
	}
	return reply
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
