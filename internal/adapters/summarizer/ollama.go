package summarizer

import (
	"context"
	"fmt"
	"strings"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/ollama"
)

type generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

// Ollama реализует domain.Summarizer через локальную модель.
type Ollama struct {
	client generator
	model  string
	prompt string
}

// NewOllama создаёт суммаризатор. prompt ставится перед текстом сообщений.
func NewOllama(client generator, model, prompt string) *Ollama {
	if model == "" {
		model = "gpt-oss:20b"
	}
	return &Ollama{client: client, model: model, prompt: prompt}
}

// Summarize возвращает ответ модели без изменений.
func (s *Ollama) Summarize(ctx context.Context, text string) (string, error) {
	out, err := s.client.Generate(ctx, ollama.GenerateRequest{
		Model:  s.model,
		Prompt: buildPrompt(s.prompt, text),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarization, err)
	}
	return out, nil
}

func buildPrompt(prefix, text string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return text
	}
	return prefix + "\n\n" + text
}
