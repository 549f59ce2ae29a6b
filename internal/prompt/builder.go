package prompt

import (
	"fmt"
	"strings"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// DefaultTokenLimit bounds the assembled prompt when the caller supplies no
// budget of its own.
const DefaultTokenLimit = 4000

// MessageBuilder accumulates a system message and a bounded set of
// conversation turns while tracking the running token estimate of the whole
// sequence. One builder serves exactly one in-flight request and is never
// shared across goroutines.
//
// Messages are inserted newest-first directly after the system message, so the
// exposed sequence is always chronological: system message first, history
// oldest to newest, current user turn last. The system message sits at index 0
// and is never evicted.
type MessageBuilder struct {
	counter  Counter
	messages []models.Message
	tokens   int
}

// NewMessageBuilder creates a builder seeded with the system message, counting
// tokens under the named tokenizer model.
func NewMessageBuilder(systemPrompt, tokenModel string) *MessageBuilder {
	return NewMessageBuilderWithCounter(systemPrompt, NewTokenCounter(tokenModel))
}

// NewMessageBuilderWithCounter is the injection point for tests and callers
// that already hold a Counter.
func NewMessageBuilderWithCounter(systemPrompt string, counter Counter) *MessageBuilder {
	b := &MessageBuilder{
		counter:  counter,
		messages: []models.Message{{Role: models.RoleSystem, Content: systemPrompt}},
	}
	b.tokens = counter.CountMessage(models.RoleSystem, systemPrompt)
	return b
}

// AppendMessage inserts a message at index 1, right after the system message,
// and adds its token estimate to the running total. Callers append the current
// user turn first and then walk prior history newest to oldest, which keeps
// the sequence chronological without a final re-sort.
//
// Role is not validated beyond the three accepted values; anything else is a
// caller contract violation.
func (b *MessageBuilder) AppendMessage(role models.Role, content string) {
	b.messages = append(b.messages, models.Message{})
	copy(b.messages[2:], b.messages[1:])
	b.messages[1] = models.Message{Role: role, Content: content}
	b.tokens += b.counter.CountMessage(role, content)
}

// PopMessage removes the message at index 1 (the most recently appended turn)
// and subtracts its token estimate. With fewer than two messages it is a
// no-op: the system message is never removed.
func (b *MessageBuilder) PopMessage() {
	if len(b.messages) < 2 {
		return
	}
	removed := b.messages[1]
	b.messages = append(b.messages[:1], b.messages[2:]...)
	b.tokens -= b.counter.CountMessage(removed.Role, removed.Content)
}

// Messages returns the assembled sequence in chronological order, ready to be
// handed to the generation call. It has no side effects.
func (b *MessageBuilder) Messages() []models.Message {
	return b.messages
}

// TokenCount reports the running token estimate across all current messages.
func (b *MessageBuilder) TokenCount() int {
	return b.tokens
}

// String renders the assembled conversation for logging and debugging.
func (b *MessageBuilder) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "prompt (%d tokens):\n", b.tokens)
	for _, m := range b.messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return sb.String()
}

// BuildChatMessages assembles the bounded prompt for one request: the current
// question combined with the retrieved source passages, then as much recent
// history as fits under tokenLimit.
//
// History is walked newest to oldest. The first append that pushes the running
// total over the budget is undone and the walk stops there; older history is
// discarded even when a smaller message further back would still have fit.
func BuildChatMessages(b *MessageBuilder, question string, sources []string, history []models.Message, tokenLimit int) []models.Message {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	// The current turn carries the retrieved context and is never evicted.
	b.AppendMessage(models.RoleUser, questionWithSources(question, sources))
	for i := len(history) - 1; i >= 0; i-- {
		b.AppendMessage(history[i].Role, history[i].Content)
		if b.TokenCount() > tokenLimit {
			b.PopMessage()
			break
		}
	}
	return b.Messages()
}

func questionWithSources(question string, sources []string) string {
	if len(sources) == 0 {
		return question
	}
	return question + "\n\nSources:\n" + strings.Join(sources, "\n")
}
