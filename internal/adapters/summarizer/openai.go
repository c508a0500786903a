package summarizer

import (
	"context"
	"errors"
	"fmt"

	"tg-topic-digest/internal/domain"
	openai "tg-topic-digest/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует domain.Summarizer через Chat Completions.
type OpenAI struct {
	client chatClient
	model  string
	prompt string
}

// NewOpenAI создаёт провайдер суммаризации.
func NewOpenAI(client chatClient, model, prompt string) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	return &OpenAI{client: client, model: model, prompt: prompt}
}

// Summarize отправляет текст одним пользовательским сообщением и возвращает первый ответ.
func (s *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.2,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: "Ты помощник-редактор. Сохраняй факты из текста и не выдумывай ничего нового."},
			{Role: openai.RoleUser, Content: buildPrompt(s.prompt, text)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarization, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarization, errors.New("openai: пустой ответ"))
	}
	return resp.Choices[0].Message.Content, nil
}
