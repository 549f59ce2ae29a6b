package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

// ErrEmptyPrompt is returned when a completion is requested with no messages.
var ErrEmptyPrompt = errors.New("prompt has no messages")

// Service wraps a chat model behind a small completion API. The model is
// injected by the caller, so tests can swap in a fake and the provider choice
// stays out of this package.
type Service struct {
	chatModel model.ToolCallingChatModel
}

func NewService(chatModel model.ToolCallingChatModel) *Service {
	return &Service{chatModel: chatModel}
}

// Generate runs one non-streaming completion over the prompt messages.
func (s *Service) Generate(ctx context.Context, msgs []models.Message) (string, error) {
	if len(msgs) == 0 {
		return "", ErrEmptyPrompt
	}
	resp, err := s.chatModel.Generate(ctx, convertMessages(msgs))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	return resp.Content, nil
}

// Stream runs a streaming completion, invoking callback with each content
// delta as it arrives. The accumulated answer is returned; when ctx is
// cancelled mid-stream the partial answer is returned with ctx.Err().
func (s *Service) Stream(ctx context.Context, msgs []models.Message, callback func(delta string) error) (string, error) {
	if len(msgs) == 0 {
		return "", ErrEmptyPrompt
	}
	reader, err := s.chatModel.Stream(ctx, convertMessages(msgs))
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer reader.Close()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return full.String(), ctx.Err()
			}
			return full.String(), fmt.Errorf("read completion stream: %w", err)
		}
		if chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if callback != nil {
			if err := callback(chunk.Content); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func convertMessages(msgs []models.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, msg := range msgs {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}
