package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/adapters/telegram"
	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

// Sender отправляет сообщения через Bot API. Реализуется *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ Sender = (*tgbotapi.BotAPI)(nil)

// Dispatcher доставляет дайджесты от имени бота.
type Dispatcher struct {
	bot Sender
	log zerolog.Logger
}

var _ domain.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт отправителя поверх бота.
func NewDispatcher(bot Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{bot: bot, log: log}
}

// Connect авторизует бота по токену.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("bot: не задан TG_BOT_TOKEN")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: авторизация: %w", err)
	}
	return api, nil
}

// Send отправляет текст частями без превью ссылок.
func (d *Dispatcher) Send(ctx context.Context, chatID int64, text string) error {
	for _, part := range telegram.SplitMessage(text) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := d.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			d.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить сообщение")
			return fmt.Errorf("%w: отправка в %d: %w", domain.ErrDispatch, chatID, err)
		}
	}
	return nil
}
