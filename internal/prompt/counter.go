package prompt

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// Per-message overhead following the OpenAI token counting guidance:
// every message costs a fixed separator overhead on top of its role and
// content tokens.
const tokensPerMessage = 3

// Counter estimates the token cost of a single chat message, including the
// role/separator overhead the tokenizer model defines.
type Counter interface {
	CountMessage(role models.Role, content string) int
}

// TokenCounter estimates token counts with tiktoken for a given model name.
// When the model's encoding cannot be resolved it degrades to a character
// based estimate.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// NewTokenCounter resolves the encoding for the supplied model name,
// falling back to cl100k_base for unknown models.
func NewTokenCounter(model string) *TokenCounter {
	c := &TokenCounter{model: model}
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return c
		}
	}
	c.encoding = encoding
	return c
}

// Count returns the token count of the given text.
func (c *TokenCounter) Count(text string) int {
	if c.encoding == nil {
		return estimateTokens(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessage returns the token estimate for one chat message.
func (c *TokenCounter) CountMessage(role models.Role, content string) int {
	return tokensPerMessage + c.Count(string(role)) + c.Count(content)
}

// estimateTokens is the degraded path when no encoding is available:
// roughly four characters per token for English text.
func estimateTokens(text string) int {
	return len(text) / 4
}

var _ Counter = (*TokenCounter)(nil)
