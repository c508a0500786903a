package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable возвращается, когда метаданные или история источника недоступны.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSummarization возвращается при ошибке суммаризатора.
	ErrSummarization = errors.New("summarization failed")
	// ErrDispatch возвращается, когда дайджест не удалось отправить.
	ErrDispatch = errors.New("dispatch failed")
	// ErrPeerNotFound возвращается, если аккаунт не видит чат с таким идентификатором.
	ErrPeerNotFound = errors.New("peer not found")
	// ErrNotAuthorized возвращается, если MTProto-сессия не авторизована.
	ErrNotAuthorized = errors.New("mtproto session is not authorized")
)

// ChatSource выдаёт метаданные и историю чатов.
type ChatSource interface {
	ChatMeta(ctx context.Context, chatID int64) (ChatMeta, error)
	History(ctx context.Context, chatID int64, limit int) ([]Message, error)
	MarkRead(ctx context.Context, chatID int64) error
}

// ChatLister перечисляет все чаты, доступные аккаунту.
type ChatLister interface {
	ListChats(ctx context.Context) ([]ChatMeta, error)
}

// Summarizer сворачивает произвольный текст в краткое содержание.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Dispatcher отправляет готовый дайджест в чат без раскрытия превью ссылок.
type Dispatcher interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// AuditLog принимает записи аудита по темам.
type AuditLog interface {
	Record(ctx context.Context, record AuditRecord) error
}

// DeliveryGuard выполняет fn не чаще одного раза на ключ в пределах ttl.
// Delivered проверяет ключ без захвата. ran=false из Once означает, что ключ уже был занят.
type DeliveryGuard interface {
	Delivered(ctx context.Context, key string) (bool, error)
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (ran bool, err error)
}

// SessionRepo хранит MTProto-сессии.
type SessionRepo interface {
	LoadMTProtoSession(ctx context.Context, name string) ([]byte, error)
	StoreMTProtoSession(ctx context.Context, name string, data []byte) error
}
