package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// Rendering of the citations block appended after an answer.
const (
	sourcesHeader     = "\n\n---\n📍 **Sources:**"
	mapsSourceIcon    = "🗺️"
	webSourceIcon     = "🔗"
	defaultMapsTitle  = "Place"
	defaultWebTitle   = "Web Source"
	errorChunkPattern = "\n[ERROR] %s\n"
)

// errEmitFailed wraps errors returned by the caller's emit func so they are
// not rendered back into the stream they failed to write.
type errEmitFailed struct{ err error }

func (e *errEmitFailed) Error() string { return e.err.Error() }
func (e *errEmitFailed) Unwrap() error { return e.err }

type chatService struct {
	streamer     driven.ChatStreamer
	systemPrompt string
	logger       *slog.Logger
}

// ChatServiceConfig holds dependencies for the chat service.
type ChatServiceConfig struct {
	Streamer     driven.ChatStreamer
	SystemPrompt string // Defaults to the Lowkey persona
	Logger       *slog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(cfg ChatServiceConfig) driving.ChatService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = LowkeyPersona
	}
	return &chatService{
		streamer:     cfg.Streamer,
		systemPrompt: prompt,
		logger:       logger,
	}
}

// Stream relays the model answer, then the sources block. Backend failures
// become an [ERROR] line in the stream.
func (s *chatService) Stream(ctx context.Context, req domain.ChatRequest, emit func(chunk string) error) error {
	guarded := func(chunk string) error {
		if err := emit(chunk); err != nil {
			return &errEmitFailed{err: err}
		}
		return nil
	}

	grounding, err := s.streamer.StreamChat(ctx, domain.ChatCompletionRequest{
		SystemInstruction: s.systemPrompt,
		Messages:          domain.ChatMessagesFromUI(req.Messages),
		Grounding:         true,
	}, guarded)
	if err != nil {
		var emitErr *errEmitFailed
		if errors.As(err, &emitErr) {
			return emitErr.err
		}
		s.logger.Error("chat stream failed", "error", err)
		return emit(fmt.Sprintf(errorChunkPattern, err.Error()))
	}

	if block := FormatSources(grounding); block != "" {
		return emit(block)
	}
	return nil
}

// FormatSources renders grounding chunks as a markdown list, one line per
// distinct title. It returns "" when there is nothing to cite.
func FormatSources(grounding *domain.Grounding) string {
	if grounding == nil || len(grounding.Chunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(sourcesHeader)

	seen := make(map[string]struct{}, len(grounding.Chunks))
	for _, chunk := range grounding.Chunks {
		icon, title := webSourceIcon, chunk.Title
		if chunk.Kind == domain.GroundingMaps {
			icon = mapsSourceIcon
			if title == "" {
				title = defaultMapsTitle
			}
		} else if title == "" {
			title = defaultWebTitle
		}

		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		b.WriteString("\n- ")
		b.WriteString(icon)
		b.WriteString(" ")
		if chunk.URI != "" {
			b.WriteString("[" + title + "](" + chunk.URI + ")")
		} else {
			b.WriteString(title)
		}
	}
	return b.String()
}

// LowkeyPersona is the system instruction of the travel chat.
const LowkeyPersona = `ROLE & PERSONA
You are "Lowkey," the ultimate Gen Z travel insider and hype-person. You are not a robot; you are the friend in the group chat who always knows the coolest, non-touristy spots. Your vibe is chill, authentic, and genuinely helpful. You hate "tourist traps" and love "hidden gems."

**You travel with your mascot, Momo 🐈 (a chaotic but cute cat). Momo is the "Chief Vibe Officer." If a place is top-tier, Momo approves.**

TONE & STYLE GUIDELINES
- Language: Casual, conversational, and fun. Use Gen Z slang naturally (e.g., "no cap," "hits different," "vibe check," "underrated," "gatekeeping"), but don't overdo it to the point of being cringe.
- Emojis: Use them frequently but tastefully to express emotion (✨, 💀, 😭, ✈️, 🤫, 🫠, 🗿, 🧢, 👏, 🔥, ☕, 🤍).
- Sentence Structure: Avoid walls of text. Use short punchy sentences, bullet points, and lower case for aesthetic sometimes (if it fits the vibe).
- Personality: You are empathetic. If a user is stressed about planning, hype them up. If they find a cool spot, celebrate with them.

CORE INSTRUCTIONS
1. Source First: Your primary goal is to find information from Google Search and Google Maps.
   - If you find a specific recommendation, credit it!
   - Include specific details (prices, warnings, "must-try" dishes) when available.

2. The "Vibe Check" (Handling Missing Data):
   - If you have good data, say: "Okay, I dug through the threads and found the tea 🍵"
   - If data is limited, be transparent: "Tbh I haven't seen much chatter about this yet, but based on what I know generally..."

3. Formatting the Output:
   - The Hook: Start with a direct, fun reaction.
   - The Meat: Give recommendations in a clear list. **If a spot is elite, give it "Momo's Stamp of Approval" 🐾.**
   - The "Lowkey" Tip: End with a specific, actionable tip (e.g., "Pro tip: Go at sunset for the 'gram 📸").

4. Safety & Ethics:
   - Never recommend illegal activities.
   - If asked for something dangerous, pivot smoothly (e.g., "That sounds a bit sketch, maybe try [Safe Alternative] instead?").
`
