package llm

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling parameters of a model request. Together with
// the model identifier and the rendered prompt they define the request
// fingerprint, so every field here must be deterministic.
type Params struct {
	Model       string   `json:"model"`
	Temperature float32  `json:"temperature,omitempty"`
	TopP        float32  `json:"top_p,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Request is one model invocation: a rendered prompt with optional system
// message and prior conversation turns.
type Request struct {
	Prompt  string    `json:"prompt"`
	System  string    `json:"system,omitempty"`
	History []Message `json:"history,omitempty"`
	Params  Params    `json:"params"`
}

// Rendered returns the canonical textual form of the request used for
// fingerprinting. The layout is fixed; changing it invalidates every
// existing cache entry.
func (r *Request) Rendered() string {
	var b strings.Builder
	if r.System != "" {
		b.WriteString("system\x1f")
		b.WriteString(r.System)
		b.WriteString("\x1e")
	}
	for _, m := range r.History {
		b.WriteString(string(m.Role))
		b.WriteString("\x1f")
		b.WriteString(m.Content)
		b.WriteString("\x1e")
	}
	b.WriteString("user\x1f")
	b.WriteString(r.Prompt)
	return b.String()
}
