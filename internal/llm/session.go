package llm

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// ChatSession keeps the conversation history of one exchange with the model.
// A reply is only appended once it was received, so a failed Send leaves the history untouched.
type ChatSession struct {
	client *Client

	mu      sync.Mutex
	history []llms.MessageContent
}

// StartChat opens a session seeded with history.
func (c *Client) StartChat(history ...llms.MessageContent) *ChatSession {
	seed := make([]llms.MessageContent, len(history))
	copy(seed, history)
	return &ChatSession{client: c, history: seed}
}

// Send appends text as a user turn, asks the model and records its reply.
func (s *ChatSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]llms.MessageContent, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))

	reply, err := s.client.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	s.history = append(messages, llms.TextParts(llms.ChatMessageTypeAI, reply))
	return reply, nil
}

// History returns a copy of the turns exchanged so far.
func (s *ChatSession) History() []llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llms.MessageContent, len(s.history))
	copy(out, s.history)
	return out
}
