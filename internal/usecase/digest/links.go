package digest

import (
	"fmt"
	"strconv"
	"strings"

	"tg-topic-digest/internal/domain"
)

const (
	previewRunes = 20
	// длина префикса "-100" у идентификаторов каналов и супергрупп
	privatePrefixLen = 4
)

// MessageLink строит постоянную ссылку на сообщение.
// Для чата без публичного имени и с идентификатором короче префикса возвращает пустую строку.
func MessageLink(chat domain.ChatMeta, messageID int) string {
	if chat.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chat.Username, messageID)
	}
	internalID := InternalID(chat.ID)
	if internalID == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", internalID, messageID)
}

// InternalID отбрасывает четыре первых символа строкового идентификатора чата.
func InternalID(chatID int64) string {
	raw := strconv.FormatInt(chatID, 10)
	if len(raw) <= privatePrefixLen {
		return ""
	}
	return raw[privatePrefixLen:]
}

// Preview обрезает текст до 20 символов и заменяет переводы строк пробелами.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return strings.ReplaceAll(string(runes), "\n", " ")
}

// LinkLine формирует строку блока ссылок: превью и ссылку на сообщение.
func LinkLine(chat domain.ChatMeta, msg domain.Message) string {
	line := "- " + Preview(msg.Text) + "..."
	if link := MessageLink(chat, msg.ID); link != "" {
		line += " " + link
	}
	return line
}

// TextLine формирует строку текста для суммаризатора.
func TextLine(chatName string, msg domain.Message) string {
	author := msg.Author
	if author == "" {
		author = domain.AnonAuthor
	}
	return fmt.Sprintf("[%s] %s: %s", chatName, author, msg.Text)
}
