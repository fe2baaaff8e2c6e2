// Package llm defines the contract with the hosted chat-completion provider.
// The provider owns all reasoning; this package only shapes requests and
// responses.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline picture attached to a user message for
// vision-capable models.
type Image struct {
	Mime string
	Data []byte
}

type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// Request describes one chat-completion call.
// Model overrides the client default when non-empty.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Content string
	Model   string
	Usage   Usage
}

type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
