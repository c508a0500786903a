package main

import (
	"bytes"
	"context"
	"flag"
	"testing"

	"tg-topic-digest/internal/domain"
)

type stubLister []domain.ChatMeta

func (s stubLister) ListChats(context.Context) ([]domain.ChatMeta, error) { return s, nil }

func TestPrintChats(t *testing.T) {
	var out bytes.Buffer
	chats := stubLister{
		{ID: -1009876543210, Title: "News"},
		{ID: 7, FirstName: "Alice"},
	}
	if err := printChats(context.Background(), chats, &out); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := "- News :: -1009876543210\n- Alice :: 7\n"
	if out.String() != want {
		t.Fatalf("ожидали %q, получили %q", want, out.String())
	}
}

func TestTopicFlagRepeats(t *testing.T) {
	var names topicNames
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.Var(&names, "topic", "")
	if err := fs.Parse([]string{"-topic", "Work", "-topic", "Personal"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(names) != 2 || names[0] != "Work" || names[1] != "Personal" {
		t.Fatalf("неожиданные темы: %v", names)
	}
}
