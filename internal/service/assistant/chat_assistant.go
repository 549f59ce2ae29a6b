package assistant

import (
	"context"
	"fmt"
	"log"

	"github.com/ryanjzheng/Le-Coach/internal/models"
	"github.com/ryanjzheng/Le-Coach/internal/prompt"
)

// turn carries everything prepared for one chat exchange before the model
// is called.
type turn struct {
	session    *models.Session
	newSession bool
	msgs       []models.Message
	tokens     int
	refs       []models.SourceRef
}

// Chat answers one question in a session, grounding it on retrieved passages
// and persisting both sides of the exchange.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	tc, err := s.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := s.ai.Generate(ctx, tc.msgs)
	if err != nil {
		return nil, err
	}

	title, err := s.finishTurn(ctx, tc, req.Question, answer)
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{
		SessionID:    tc.session.ID,
		Answer:       answer,
		Sources:      tc.refs,
		PromptTokens: tc.tokens,
		Title:        title,
	}, nil
}

// StreamChat answers one question with streaming output. Each content delta
// is sent as its own chunk; the final chunk carries the full answer, the
// source passages, and Done set. When ctx is cancelled mid-stream no final
// chunk is sent and nothing is persisted.
func (s *Service) StreamChat(ctx context.Context, req models.ChatRequest, send func(models.StreamChunk) error) error {
	tc, err := s.prepareTurn(ctx, req)
	if err != nil {
		return err
	}

	answer, err := s.ai.Stream(ctx, tc.msgs, func(delta string) error {
		return send(models.StreamChunk{SessionID: tc.session.ID, Delta: delta})
	})
	if err != nil {
		return err
	}

	title, err := s.finishTurn(ctx, tc, req.Question, answer)
	if err != nil {
		return err
	}
	return send(models.StreamChunk{
		SessionID:    tc.session.ID,
		Done:         true,
		Answer:       answer,
		Sources:      tc.refs,
		PromptTokens: tc.tokens,
		Title:        title,
	})
}

// prepareTurn validates the request, resolves the session and its history,
// retrieves grounding passages, and assembles the prompt.
func (s *Service) prepareTurn(ctx context.Context, req models.ChatRequest) (*turn, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tc := &turn{}
	history := req.History
	if req.SessionID > 0 {
		session, stored, err := s.GetSessionWithMessages(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		tc.session = session
		if len(history) == 0 {
			history = stored
		}
	} else {
		session, err := s.CreateSession(ctx, "")
		if err != nil {
			return nil, err
		}
		tc.session = session
		tc.newSession = true
	}

	var sources []string
	if s.retriever != nil {
		results, err := s.retriever.Retrieve(ctx, req.Question, req.TopK)
		if err != nil {
			return nil, fmt.Errorf("retrieve passages: %w", err)
		}
		for _, res := range results {
			sources = append(sources, fmt.Sprintf("%s: %s", res.Document, res.Chunk.Content))
			tc.refs = append(tc.refs, models.SourceRef{
				DocumentID: res.Chunk.DocumentID,
				Document:   res.Document,
				Score:      res.Score,
			})
		}
	}

	limit := req.TokenLimit
	if limit <= 0 {
		limit = s.promptCfg.TokenLimit
	}
	builder := prompt.NewMessageBuilderWithCounter(s.promptCfg.SystemPrompt, s.counter)
	tc.msgs = prompt.BuildChatMessages(builder, req.Question, sources, history, limit)
	tc.tokens = builder.TokenCount()
	return tc, nil
}

// finishTurn persists the exchange and titles new sessions.
func (s *Service) finishTurn(ctx context.Context, tc *turn, question, answer string) (string, error) {
	userMsg, err := s.AddMessage(ctx, models.Message{
		SessionID: tc.session.ID,
		Role:      models.RoleUser,
		Content:   question,
	})
	if err != nil {
		return "", err
	}
	assistantMsg, err := s.AddMessage(ctx, models.Message{
		SessionID: tc.session.ID,
		Role:      models.RoleAssistant,
		Content:   answer,
	})
	if err != nil {
		return "", err
	}

	if !tc.newSession && tc.session.Title != "" {
		return tc.session.Title, nil
	}
	title, err := s.GenerateTitle(ctx, []models.Message{*userMsg, *assistantMsg})
	if err != nil {
		log.Printf("generate session title: %v", err)
		return "", nil
	}
	if err := s.UpdateSessionTitle(ctx, tc.session.ID, title); err != nil {
		log.Printf("update session title: %v", err)
	}
	return title, nil
}
