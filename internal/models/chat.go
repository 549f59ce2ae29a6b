package models

import (
	"errors"
	"fmt"
	"strings"
)

// ChatRequest is the typed body accepted by the chat endpoints. Malformed
// payloads are rejected here, before any prompt assembly happens.
type ChatRequest struct {
	SessionID  int64     `json:"session_id"`
	Question   string    `json:"question"`
	History    []Message `json:"history"`
	TokenLimit int       `json:"token_limit"`
	TopK       int       `json:"top_k"`
}

// Validate checks the request against the boundary schema.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return errors.New("question is required")
	}
	if r.SessionID < 0 {
		return errors.New("session_id cannot be negative")
	}
	if r.TokenLimit < 0 {
		return errors.New("token_limit cannot be negative")
	}
	if r.TopK < 0 {
		return errors.New("top_k cannot be negative")
	}
	for i := range r.History {
		m := &r.History[i]
		if !m.Role.IsValid() {
			return fmt.Errorf("history[%d]: invalid role %q", i, m.Role)
		}
		if m.Role == RoleSystem {
			return fmt.Errorf("history[%d]: system messages are not accepted in history", i)
		}
		if m.Content == "" {
			return fmt.Errorf("history[%d]: content is required", i)
		}
	}
	return nil
}

// SourceRef describes one retrieved passage that grounded the answer.
type SourceRef struct {
	DocumentID int64   `json:"document_id"`
	Document   string  `json:"document"`
	Score      float32 `json:"score"`
}

// ChatResponse is the single-completion reply.
type ChatResponse struct {
	SessionID    int64       `json:"session_id"`
	Answer       string      `json:"answer"`
	Sources      []SourceRef `json:"sources,omitempty"`
	PromptTokens int         `json:"prompt_tokens"`
	Title        string      `json:"title,omitempty"`
}

// StreamChunk is one line of the NDJSON stream. Exactly one of Delta, Error or
// Done carries the payload.
type StreamChunk struct {
	Delta        string      `json:"delta,omitempty"`
	Done         bool        `json:"done,omitempty"`
	SessionID    int64       `json:"session_id,omitempty"`
	Answer       string      `json:"answer,omitempty"`
	Sources      []SourceRef `json:"sources,omitempty"`
	PromptTokens int         `json:"prompt_tokens,omitempty"`
	Title        string      `json:"title,omitempty"`
	Error        string      `json:"error,omitempty"`
}
