package mtproto

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/domain"
)

// Credentials описывает пользовательский аккаунт MTProto.
type Credentials struct {
	APIID    int
	APIHash  string
	Phone    string
	Password string
}

// Client запускает MTProto-сессию пользователя и выдаёт Source внутри неё.
type Client struct {
	client *telegram.Client
	creds  Credentials
	codeIn io.Reader
	log    zerolog.Logger
}

// NewClient создаёт MTProto клиента с заданным хранилищем сессии.
func NewClient(creds Credentials, storage session.Storage, log zerolog.Logger) (*Client, error) {
	if creds.APIID == 0 || creds.APIHash == "" {
		return nil, fmt.Errorf("mtproto: не заданы TG_API_ID и TG_API_HASH")
	}
	client := telegram.NewClient(creds.APIID, creds.APIHash, telegram.Options{SessionStorage: storage})
	return &Client{client: client, creds: creds, codeIn: os.Stdin, log: log}, nil
}

// Run подключается, при необходимости проходит авторизацию по коду и вызывает fn.
// Source действителен только внутри fn.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context, source *Source) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.authorize(ctx); err != nil {
			return err
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return fmt.Errorf("mtproto: текущий пользователь: %w", err)
		}
		c.log.Info().Int64("user_id", self.ID).Str("username", self.Username).Msg("mtproto: сессия активна")
		return fn(ctx, NewSource(c.client.API(), self, c.log))
	})
}

func (c *Client) authorize(ctx context.Context) error {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("mtproto: статус авторизации: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if c.creds.Phone == "" {
		return fmt.Errorf("%w: задайте TG_PHONE для входа или импортируйте сессию", domain.ErrNotAuthorized)
	}
	c.log.Info().Msg("mtproto: требуется вход, код будет запрошен в терминале")
	flow := auth.NewFlow(
		auth.Constant(c.creds.Phone, c.creds.Password, auth.CodeAuthenticatorFunc(c.readCode)),
		auth.SendCodeOptions{},
	)
	if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
		return fmt.Errorf("mtproto: авторизация: %w", err)
	}
	return nil
}

func (c *Client) readCode(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Fprint(os.Stderr, "Введите код из Telegram: ")
	line, err := bufio.NewReader(c.codeIn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("чтение кода: %w", err)
	}
	return strings.TrimSpace(line), nil
}
