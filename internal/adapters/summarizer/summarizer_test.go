package summarizer

import (
	"context"
	"errors"
	"testing"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/ollama"
	openai "tg-topic-digest/internal/infra/openai"
)

type fakeGenerator struct {
	req ollama.GenerateRequest
	out string
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req ollama.GenerateRequest) (string, error) {
	f.req = req
	return f.out, f.err
}

func TestOllamaPrependsPrompt(t *testing.T) {
	gen := &fakeGenerator{out: "  итог  "}
	s := NewOllama(gen, "", "Сделай саммари:")
	out, err := s.Summarize(context.Background(), "[chat] anon: hi")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out != "  итог  " {
		t.Fatalf("ответ модели должен возвращаться без изменений, получили %q", out)
	}
	if gen.req.Prompt != "Сделай саммари:\n\n[chat] anon: hi" {
		t.Fatalf("неожиданный промпт %q", gen.req.Prompt)
	}
	if gen.req.Model != "gpt-oss:20b" {
		t.Fatalf("ожидали модель по умолчанию, получили %q", gen.req.Model)
	}
}

func TestOllamaWrapsError(t *testing.T) {
	s := NewOllama(&fakeGenerator{err: errors.New("connection refused")}, "m", "")
	_, err := s.Summarize(context.Background(), "text")
	if !errors.Is(err, domain.ErrSummarization) {
		t.Fatalf("ожидали ErrSummarization, получили %v", err)
	}
}

type fakeChat struct {
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return f.resp, f.err
}

func TestOpenAIEmptyChoices(t *testing.T) {
	s := NewOpenAI(&fakeChat{}, "", "")
	_, err := s.Summarize(context.Background(), "text")
	if !errors.Is(err, domain.ErrSummarization) {
		t.Fatalf("ожидали ErrSummarization, получили %v", err)
	}
}

func TestOpenAIReturnsFirstChoice(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: "SUMMARY"}}},
	}
	s := NewOpenAI(&fakeChat{resp: resp}, "m", "p")
	out, err := s.Summarize(context.Background(), "text")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out != "SUMMARY" {
		t.Fatalf("ожидали SUMMARY, получили %q", out)
	}
}
