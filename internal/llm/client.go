package llm

import (
	"context"
)

// Format selects how the model is asked to shape its reply.
type Format string

// Response formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Role identifies the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role
	Content string
}

// UserMessage is shorthand for a single user turn.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Gateway is the request/response boundary to a completion service.
// Every method returns the raw model text; callers extract payloads with
// ExtractBlock, ExtractMarkdown or ParseJSON.
type Gateway interface {
	CompleteText(ctx context.Context, messages []Message, format Format) (string, error)
	CompleteVision(ctx context.Context, imagePath, prompt string, format Format) (string, error)
	TranscribeAudio(ctx context.Context, audioPath string) (string, error)
}
