package domain

import "strings"

// ChatRole identifies who authored a chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// UIMessagePart is one part of a message sent by the chat frontend.
type UIMessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// UIMessage is a chat turn as sent by the chat frontend.
type UIMessage struct {
	ID    string          `json:"id,omitempty"`
	Role  string          `json:"role"`
	Parts []UIMessagePart `json:"parts"`
}

// Text joins the non-blank text parts of the message.
func (m *UIMessage) Text() string {
	var chunks []string
	for _, p := range m.Parts {
		if p.Type != "text" || strings.TrimSpace(p.Text) == "" {
			continue
		}
		chunks = append(chunks, p.Text)
	}
	return strings.TrimSpace(strings.Join(chunks, "\n"))
}

// ChatRequest is the body of a chat call.
type ChatRequest struct {
	Messages []UIMessage `json:"messages"`
}

// ChatMessage is a normalised conversation turn.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatMessagesFromUI keeps user and assistant turns that carry text.
func ChatMessagesFromUI(messages []UIMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages))
	for i := range messages {
		role := ChatRole(strings.ToLower(strings.TrimSpace(messages[i].Role)))
		if role != ChatRoleUser && role != ChatRoleAssistant {
			continue
		}
		content := messages[i].Text()
		if content == "" {
			continue
		}
		out = append(out, ChatMessage{Role: role, Content: content})
	}
	return out
}

// ChatCompletionRequest is sent to a streaming chat backend.
type ChatCompletionRequest struct {
	SystemInstruction string
	Messages          []ChatMessage
	Grounding         bool
}

// GroundingKind distinguishes web citations from map citations.
type GroundingKind string

const (
	GroundingWeb  GroundingKind = "web"
	GroundingMaps GroundingKind = "maps"
)

// GroundingChunk is a single citation returned alongside a chat answer.
type GroundingChunk struct {
	Kind  GroundingKind `json:"kind"`
	Title string        `json:"title"`
	URI   string        `json:"uri"`
}

// Grounding is the citation metadata of a chat answer.
type Grounding struct {
	Chunks []GroundingChunk `json:"chunks"`
}
