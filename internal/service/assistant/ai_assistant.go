package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanjzheng/Le-Coach/internal/models"
)

const defaultSessionTitle = "New Conversation"

const titlePrompt = "You are a conversation title generator. " +
	"Based on the dialogue between the user and the AI, generate a concise and accurate title for the conversation. " +
	"The title should be within 10 words and summarize the main topic of the conversation. " +
	"Output only the title; do not include any additional content."

// GenerateTitle asks the model for a short title summarizing the exchange.
func (s *Service) GenerateTitle(ctx context.Context, messages []models.Message) (string, error) {
	if len(messages) == 0 {
		return defaultSessionTitle, nil
	}
	var conversation strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&conversation, "User: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&conversation, "Assistant: %s\n", msg.Content)
		}
	}

	title, err := s.ai.Generate(ctx, []models.Message{
		{Role: models.RoleSystem, Content: titlePrompt},
		{Role: models.RoleUser, Content: fmt.Sprintf("Please generate a clean title using following conversation messages:\n\n%s", conversation.String())},
	})
	if err != nil {
		return "", fmt.Errorf("generate title failed: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultSessionTitle, nil
	}
	return title, nil
}
