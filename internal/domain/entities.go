package domain

import (
	"fmt"
	"time"
)

// AnonAuthor подставляется, когда у сообщения нет автора-пользователя.
const AnonAuthor = "anon"

// Topic описывает тему дайджеста: набор источников и чат назначения.
type Topic struct {
	Name    string
	Sources []int64
	// Destination равен нулю, если чат назначения не задан и используется владелец.
	Destination int64
}

// ChatMeta содержит метаданные чата-источника.
type ChatMeta struct {
	ID        int64
	Title     string
	FirstName string
	Username  string
}

// DisplayName возвращает имя чата для заголовков дайджеста.
func (c ChatMeta) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("ID %d", c.ID)
}

// ListName возвращает имя чата для списка доступных чатов.
func (c ChatMeta) ListName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.FirstName
}

// Message представляет сообщение источника в пределах одного запуска.
type Message struct {
	ID     int
	Date   time.Time
	Author string
	Text   string
}

// LinkGroup хранит строки ссылок одного источника в порядке появления.
type LinkGroup struct {
	Title string
	Links []string
}

// TopicDigest содержит результат агрегации темы за день.
type TopicDigest struct {
	Topic       string
	Destination int64
	Date        time.Time
	Texts       []string
	Groups      []LinkGroup
	Summary     string
	LinkCount   int
	Omitted     int
	Text        string
}

// Empty сообщает, что за день не найдено ни одного сообщения.
func (d TopicDigest) Empty() bool {
	return len(d.Texts) == 0
}

// Collected возвращает количество собранных сообщений.
func (d TopicDigest) Collected() int {
	return len(d.Texts)
}

// AuditRecord фиксирует итог обработки темы.
type AuditRecord struct {
	RunID       string `json:"run_id"`
	Topic       string `json:"topic"`
	Date        string `json:"date"`
	Collected   int    `json:"collected"`
	Destination int64  `json:"destination"`

	// AlreadyDelivered отмечает тему, дайджест которой за дату уже был отправлен.
	AlreadyDelivered bool      `json:"already_delivered,omitempty"`
	At               time.Time `json:"at"`
}

// Line формирует строку аудита в формате журнала.
func (r AuditRecord) Line() string {
	if r.AlreadyDelivered {
		return fmt.Sprintf("%s: already delivered to %d", r.Topic, r.Destination)
	}
	if r.Collected == 0 {
		return fmt.Sprintf("%s: no messages found", r.Topic)
	}
	return fmt.Sprintf("%s: collected %d → sent to %d", r.Topic, r.Collected, r.Destination)
}
