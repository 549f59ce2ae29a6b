package prompt

import (
	"strings"
	"testing"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// wordCounter makes token math deterministic in tests: one token per word,
// no role or separator overhead.
type wordCounter struct{}

func (wordCounter) CountMessage(role models.Role, content string) int {
	return len(strings.Fields(content))
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

func TestNewMessageBuilderSeedsSystemMessage(t *testing.T) {
	b := NewMessageBuilderWithCounter(words(10), wordCounter{})

	msgs := b.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem {
		t.Fatalf("expected system role at index 0, got %s", msgs[0].Role)
	}
	if msgs[0].Content != words(10) {
		t.Fatalf("system content mismatch")
	}
	if b.TokenCount() != 10 {
		t.Fatalf("expected 10 tokens, got %d", b.TokenCount())
	}
}

func TestAppendMessageAccumulatesTokens(t *testing.T) {
	b := NewMessageBuilderWithCounter(words(4), wordCounter{})

	b.AppendMessage(models.RoleUser, words(7))
	b.AppendMessage(models.RoleAssistant, words(5))
	b.AppendMessage(models.RoleUser, words(2))

	if got := b.TokenCount(); got != 4+7+5+2 {
		t.Fatalf("expected %d tokens, got %d", 4+7+5+2, got)
	}
	if len(b.Messages()) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(b.Messages()))
	}
}

func TestAppendKeepsChronologicalOrder(t *testing.T) {
	b := NewMessageBuilderWithCounter("sys", wordCounter{})

	// Current turn first, then history newest to oldest.
	b.AppendMessage(models.RoleUser, "current")
	b.AppendMessage(models.RoleAssistant, "newest-answer")
	b.AppendMessage(models.RoleUser, "newest-question")
	b.AppendMessage(models.RoleAssistant, "oldest-answer")

	want := []string{"sys", "oldest-answer", "newest-question", "newest-answer", "current"}
	msgs := b.Messages()
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, content := range want {
		if msgs[i].Content != content {
			t.Fatalf("position %d: expected %q, got %q", i, content, msgs[i].Content)
		}
	}
	if msgs[0].Role != models.RoleSystem {
		t.Fatalf("system message not first")
	}
}

func TestPopMessageRoundTrip(t *testing.T) {
	b := NewMessageBuilderWithCounter(words(3), wordCounter{})
	b.AppendMessage(models.RoleUser, words(6))

	before := b.TokenCount()
	b.PopMessage()
	if got := b.TokenCount(); got != 3 {
		t.Fatalf("expected 3 tokens after pop, got %d", got)
	}
	b.AppendMessage(models.RoleUser, words(6))
	if got := b.TokenCount(); got != before {
		t.Fatalf("round trip mismatch: before %d, after %d", before, got)
	}
}

func TestPopMessageNeverRemovesSystemMessage(t *testing.T) {
	b := NewMessageBuilderWithCounter(words(5), wordCounter{})

	b.PopMessage()
	b.PopMessage()

	msgs := b.Messages()
	if len(msgs) != 1 || msgs[0].Role != models.RoleSystem {
		t.Fatalf("system message was removed: %#v", msgs)
	}
	if b.TokenCount() != 5 {
		t.Fatalf("expected token count unchanged, got %d", b.TokenCount())
	}
}

func TestBuildChatMessagesTruncatesAtFirstOverflow(t *testing.T) {
	// Budget 50: system 10, current user turn 20, three history turns of 15.
	// The newest history turn fits (total 45); the next one overflows (60),
	// is popped, and the walk stops.
	b := NewMessageBuilderWithCounter(words(10), wordCounter{})
	history := []models.Message{
		{Role: models.RoleUser, Content: "h1 " + words(14)},
		{Role: models.RoleAssistant, Content: "h2 " + words(14)},
		{Role: models.RoleUser, Content: "h3 " + words(14)},
	}

	msgs := BuildChatMessages(b, words(20), nil, history, 50)

	if len(msgs) != 3 {
		t.Fatalf("expected system + 1 history + current, got %d messages", len(msgs))
	}
	if !strings.HasPrefix(msgs[1].Content, "h3") {
		t.Fatalf("expected newest history turn to survive, got %q", msgs[1].Content)
	}
	if msgs[2].Role != models.RoleUser || msgs[2].Content != words(20) {
		t.Fatalf("current user turn must be last: %#v", msgs[2])
	}
	if b.TokenCount() != 45 {
		t.Fatalf("expected 45 tokens, got %d", b.TokenCount())
	}
}

func TestBuildChatMessagesNeverSkipsOverflowingTurn(t *testing.T) {
	// The second-newest turn overflows; the oldest turn would fit but must
	// never be tried.
	b := NewMessageBuilderWithCounter(words(10), wordCounter{})
	history := []models.Message{
		{Role: models.RoleUser, Content: "tiny"},
		{Role: models.RoleAssistant, Content: "huge " + words(99)},
		{Role: models.RoleUser, Content: "recent " + words(9)},
	}

	msgs := BuildChatMessages(b, words(20), nil, history, 50)

	for _, m := range msgs {
		if m.Content == "tiny" {
			t.Fatalf("older history must not be retried after an overflow")
		}
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
}

func TestBuildChatMessagesKeepsCurrentTurnOverBudget(t *testing.T) {
	b := NewMessageBuilderWithCounter(words(10), wordCounter{})

	msgs := BuildChatMessages(b, words(100), nil, nil, 50)

	if len(msgs) != 2 {
		t.Fatalf("expected system + current turn, got %d messages", len(msgs))
	}
	if msgs[1].Content != words(100) {
		t.Fatalf("current turn must never be evicted")
	}
}

func TestBuildChatMessagesCombinesSources(t *testing.T) {
	b := NewMessageBuilderWithCounter("sys", wordCounter{})

	msgs := BuildChatMessages(b, "what is the plan?", []string{"doc1.txt: stretch daily", "doc2.txt: rest on sunday"}, nil, 0)

	content := msgs[len(msgs)-1].Content
	if !strings.Contains(content, "what is the plan?") {
		t.Fatalf("question missing from current turn: %q", content)
	}
	if !strings.Contains(content, "Sources:\ndoc1.txt: stretch daily\ndoc2.txt: rest on sunday") {
		t.Fatalf("sources missing from current turn: %q", content)
	}
}

func TestMessagesIsReadOnly(t *testing.T) {
	b := NewMessageBuilderWithCounter("sys", wordCounter{})
	b.AppendMessage(models.RoleUser, "hello")

	first := b.Messages()
	tokens := b.TokenCount()
	second := b.Messages()

	if len(first) != len(second) {
		t.Fatalf("repeated calls disagree on length")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated calls disagree at index %d", i)
		}
	}
	if b.TokenCount() != tokens {
		t.Fatalf("Messages mutated token count")
	}
}

func TestStringRendersConversation(t *testing.T) {
	b := NewMessageBuilderWithCounter("be concise", wordCounter{})
	b.AppendMessage(models.RoleUser, "hi")

	out := b.String()
	if !strings.Contains(out, "system: be concise") || !strings.Contains(out, "user: hi") {
		t.Fatalf("unexpected rendering: %q", out)
	}
}
