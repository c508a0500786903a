package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestSendDisablesPreview(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcher(s, zerolog.Nop())

	if err := d.Send(context.Background(), -100123, "дайджест"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("ожидали одно сообщение, получили %d", len(s.sent))
	}
	msg := s.sent[0]
	if msg.ChatID != -100123 || msg.Text != "дайджест" || !msg.DisableWebPagePreview {
		t.Fatalf("неожиданное сообщение: %+v", msg)
	}
}

func TestSendSplitsLongText(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcher(s, zerolog.Nop())

	if err := d.Send(context.Background(), 1, strings.Repeat("ссылка\n", 1200)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(s.sent) < 2 {
		t.Fatalf("ожидали несколько частей, получили %d", len(s.sent))
	}
}

func TestSendWrapsError(t *testing.T) {
	d := NewDispatcher(&fakeSender{err: errors.New("chat not found")}, zerolog.Nop())
	if err := d.Send(context.Background(), 1, "текст"); !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("ожидали ErrDispatch, получили %v", err)
	}
}
