package assistant

import (
	"context"
	"database/sql"

	"github.com/ryanjzheng/Le-Coach/internal/config"
	"github.com/ryanjzheng/Le-Coach/internal/models"
	"github.com/ryanjzheng/Le-Coach/internal/prompt"
	"github.com/ryanjzheng/Le-Coach/internal/retrieval"
)

// Completer is the completion surface the assistant needs from the AI layer.
type Completer interface {
	Generate(ctx context.Context, msgs []models.Message) (string, error)
	Stream(ctx context.Context, msgs []models.Message, callback func(delta string) error) (string, error)
}

// PassageRetriever finds the passages relevant to a question.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.SearchResult, error)
}

// Service owns chat orchestration and session persistence. Every dependency
// is injected; a nil retriever disables grounding and the chat runs on
// history alone.
type Service struct {
	db        *sql.DB
	ai        Completer
	retriever PassageRetriever
	counter   prompt.Counter
	promptCfg config.PromptConfig
}

// NewService builds the assistant. A nil counter falls back to the token
// model named in promptCfg.
func NewService(db *sql.DB, ai Completer, retriever PassageRetriever, promptCfg config.PromptConfig, counter prompt.Counter) *Service {
	if counter == nil {
		counter = prompt.NewTokenCounter(promptCfg.TokenModel)
	}
	return &Service{
		db:        db,
		ai:        ai,
		retriever: retriever,
		counter:   counter,
		promptCfg: promptCfg,
	}
}
